package chatbot

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// Scoring and routing constants.
const (
	MatchThreshold     = 0.5
	substringScore     = 2
	wholeWordScore     = 1
	minWholeWordLength = 3
	confidenceDivisor  = 4.0

	IntentLanguageSwitch = "language_switch"
	IntentFallback       = "llm_response"
	IntentUnknown        = "unknown"

	fallbackConfidence = 0.9
	unknownConfidence  = 0.1
)

var hindiHints = []string{"नमस्ते", "धन्यवाद", "मदद", "कैसे", "क्या", "हिंदी"}

// FallbackFunc answers messages the knowledge base cannot match. It is
// nil unless an external model is configured; an empty answer or an
// error falls through to the unknown reply.
type FallbackFunc func(ctx context.Context, message string, history []Turn) (string, error)

// Match is a knowledge base hit.
type Match struct {
	Intent     string
	Response   string
	Confidence float64
}

// Reply is the outcome of Process.
type Reply struct {
	Response     string
	Intent       string
	Confidence   float64
	Language     string
	QuickReplies []string
	Context      Context
}

// Engine routes a message to an intent and remembers the session.
type Engine struct {
	kb           *KnowledgeBase
	store        SessionStore
	historyLimit int
	log          *zap.Logger
	now          func() time.Time

	Fallback FallbackFunc
}

// NewEngine builds an engine. historyLimit caps stored turns (user and
// bot entries count separately).
func NewEngine(kb *KnowledgeBase, store SessionStore, historyLimit int, log *zap.Logger) *Engine {
	if historyLimit < 2 {
		historyLimit = 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{kb: kb, store: store, historyLimit: historyLimit, log: log, now: time.Now}
}

// DetectLanguage returns hi for Devanagari text or common Hindi words,
// en otherwise.
func DetectLanguage(message string) string {
	for _, r := range message {
		if unicode.Is(unicode.Devanagari, r) {
			return LangHindi
		}
	}
	lower := strings.ToLower(message)
	for _, w := range hindiHints {
		if strings.Contains(lower, w) {
			return LangHindi
		}
	}
	return LangEnglish
}

// LanguageSwitch reports an explicit request to change language.
func LanguageSwitch(message string) (string, bool) {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "hindi"), strings.Contains(lower, "हिंदी"):
		return LangHindi, true
	case strings.Contains(lower, "english"):
		return LangEnglish, true
	}
	return "", false
}

// Score rates an intent against a lower-cased message: +2 for every
// keyword found as a substring and +1 more when a keyword of at least
// three characters is also a whole word.
func Score(in *Intent, lowerMessage string, words map[string]bool) int {
	score := 0
	for _, k := range in.Keywords {
		if k == "" {
			continue
		}
		if strings.Contains(lowerMessage, k) {
			score += substringScore
		}
		if len([]rune(k)) >= minWholeWordLength && words[k] {
			score += wholeWordScore
		}
	}
	return score
}

// Detect finds the best scoring intent. The first intent wins ties. A
// match below MatchThreshold is reported as not found.
func (e *Engine) Detect(message, lang string) (Match, bool) {
	lower := strings.ToLower(message)
	words := make(map[string]bool)
	for _, w := range strings.Fields(lower) {
		words[w] = true
	}
	var (
		best    *Intent
		highest int
	)
	for i := range e.kb.Intents {
		if s := Score(&e.kb.Intents[i], lower, words); s > highest {
			best, highest = &e.kb.Intents[i], s
		}
	}
	if best == nil {
		return Match{}, false
	}
	conf := math.Min(float64(highest)/confidenceDivisor, 1)
	if conf < MatchThreshold {
		return Match{}, false
	}
	return Match{Intent: best.Name, Response: best.Response(lang), Confidence: conf}, true
}

// Process answers message within sessionID and stores the updated
// context. Store failures are logged and do not fail the reply.
func (e *Engine) Process(ctx context.Context, sessionID, message string) Reply {
	prev, found, err := e.store.Get(ctx, sessionID)
	if err != nil {
		e.log.Warn("chat context unavailable", zap.String("session_id", sessionID), zap.Error(err))
	}
	lang := prev.Language
	if !found || lang == "" {
		lang = DetectLanguage(message)
	}

	var m Match
	if forced, ok := LanguageSwitch(message); ok {
		lang = forced
		m = Match{Intent: IntentLanguageSwitch, Confidence: 1}
		if in, ok := e.kb.Intent(IntentLanguageSwitch); ok {
			m.Response = in.Response(lang)
		}
	} else if hit, ok := e.Detect(message, lang); ok {
		m = hit
	} else {
		m = e.fallback(ctx, message, prev.History, lang)
	}

	history := make([]Turn, 0, len(prev.History)+2)
	history = append(history, prev.History...)
	history = append(history, Turn{Role: "user", Text: message}, Turn{Role: "bot", Text: m.Response})
	if len(history) > e.historyLimit {
		history = history[len(history)-e.historyLimit:]
	}
	next := Context{
		LastIntent:   m.Intent,
		Language:     lang,
		History:      history,
		MessageCount: prev.MessageCount + 1,
		UpdatedAt:    e.now().UTC(),
	}
	if err := e.store.Put(ctx, sessionID, next); err != nil {
		e.log.Warn("chat context not saved", zap.String("session_id", sessionID), zap.Error(err))
	}

	return Reply{
		Response:     m.Response,
		Intent:       m.Intent,
		Confidence:   m.Confidence,
		Language:     lang,
		QuickReplies: e.kb.QuickReplies(m.Intent, lang),
		Context:      next,
	}
}

func (e *Engine) fallback(ctx context.Context, message string, history []Turn, lang string) Match {
	if e.Fallback != nil {
		answer, err := e.Fallback(ctx, message, history)
		if err != nil {
			e.log.Warn("chat fallback failed", zap.Error(err))
		} else if strings.TrimSpace(answer) != "" {
			return Match{Intent: IntentFallback, Response: answer, Confidence: fallbackConfidence}
		}
	}
	return Match{Intent: IntentUnknown, Response: e.kb.fallback(lang), Confidence: unknownConfidence}
}

// Forget drops a session's context.
func (e *Engine) Forget(ctx context.Context, sessionID string) error {
	return e.store.Delete(ctx, sessionID)
}
