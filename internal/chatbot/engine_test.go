package chatbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	kb, err := LoadKnowledgeBase("")
	require.NoError(t, err)
	store := NewMemoryStore(30 * time.Minute)
	return NewEngine(kb, store, 10, nil), store
}

func TestEmbeddedKnowledgeBase(t *testing.T) {
	kb, err := LoadKnowledgeBase("")
	require.NoError(t, err)
	assert.Len(t, kb.Intents, 17)
	for _, in := range kb.Intents {
		assert.NotEmpty(t, in.Responses[LangHindi], in.Name)
		assert.NotEmpty(t, in.Keywords, in.Name)
	}
}

func TestParseKnowledgeBaseRejects(t *testing.T) {
	_, err := ParseKnowledgeBase([]byte("intents: []"))
	assert.Error(t, err)

	_, err = ParseKnowledgeBase([]byte(`
fallback: {en: "?"}
intents:
  - name: a
    keywords: [x]
    responses: {en: "a"}
  - name: a
    keywords: [y]
    responses: {en: "b"}
`))
	assert.ErrorContains(t, err, "duplicate")
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LangHindi, DetectLanguage("पार्किंग कहाँ है"))
	assert.Equal(t, LangEnglish, DetectLanguage("where can I park"))
}

func TestScore(t *testing.T) {
	in := &Intent{Keywords: []string{"book", "booking", "rc"}}
	words := map[string]bool{"book": true, "a": true, "slot": true}
	// "book" substring +2 and whole word +1; "booking" absent; "rc" absent.
	assert.Equal(t, 3, Score(in, "book a slot", words))

	words = map[string]bool{"my": true, "rc": true}
	// two-letter keywords never get the whole-word bonus
	assert.Equal(t, 2, Score(in, "my rc", words))
}

func TestDetect(t *testing.T) {
	e, _ := newTestEngine(t)

	m, ok := e.Detect("how do I book a slot", LangEnglish)
	require.True(t, ok)
	assert.Equal(t, "booking_info", m.Intent)
	assert.Equal(t, 1.0, m.Confidence)

	m, ok = e.Detect("wallet balance", LangHindi)
	require.True(t, ok)
	assert.Equal(t, "wallet_help", m.Intent)
	assert.Contains(t, m.Response, "वॉलेट")

	_, ok = e.Detect("zzz", LangEnglish)
	assert.False(t, ok)
}

func TestProcessLanguageSwitchSticks(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	r := e.Process(ctx, "s1", "please speak in hindi")
	assert.Equal(t, IntentLanguageSwitch, r.Intent)
	assert.Equal(t, LangHindi, r.Language)
	assert.Equal(t, "भाषा बदल दी गई है! अब मैं हिंदी में बात करूंगा।", r.Response)

	r = e.Process(ctx, "s1", "wallet balance")
	assert.Equal(t, LangHindi, r.Language)
	assert.Equal(t, []string{"रिचार्ज करें", "लेनदेन इतिहास", "बुकिंग मदद"}, r.QuickReplies)
	assert.Equal(t, 2, r.Context.MessageCount)
}

func TestProcessUnknownAndFallbackHook(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	r := e.Process(ctx, "s1", "zzz")
	assert.Equal(t, IntentUnknown, r.Intent)
	assert.Equal(t, 0.1, r.Confidence)
	assert.Equal(t, []string{"Parking rules", "Violations", "Register", "Payment help"}, r.QuickReplies)

	var seen []Turn
	e.Fallback = func(_ context.Context, msg string, history []Turn) (string, error) {
		seen = history
		return "answer for " + msg, nil
	}
	r = e.Process(ctx, "s1", "qqq")
	assert.Equal(t, IntentFallback, r.Intent)
	assert.Equal(t, "answer for qqq", r.Response)
	assert.Len(t, seen, 2)

	e.Fallback = func(context.Context, string, []Turn) (string, error) { return "", errors.New("down") }
	r = e.Process(ctx, "s1", "qqq")
	assert.Equal(t, IntentUnknown, r.Intent)
}

func TestProcessCapsHistory(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		e.Process(ctx, "s1", "hello")
	}
	c, ok, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, c.History, 10)
	assert.Equal(t, 7, c.MessageCount)
	assert.Equal(t, "user", c.History[0].Role)
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(30 * time.Minute)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "a", Context{Language: LangEnglish}))
	require.NoError(t, s.Put(ctx, "b", Context{Language: LangHindi}))

	now = now.Add(20 * time.Minute)
	require.NoError(t, s.Put(ctx, "b", Context{Language: LangHindi}))

	now = now.Add(15 * time.Minute)
	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok, "a expired after 35m idle")
	c, ok, _ := s.Get(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, LangHindi, c.Language)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, "b"))
	assert.Equal(t, 0, s.Len())
}
