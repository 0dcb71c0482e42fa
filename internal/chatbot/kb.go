// Package chatbot implements the keyword-scored parking assistant and
// the stores that keep its short-lived conversation context.
package chatbot

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Languages understood by the assistant.
const (
	LangEnglish = "en"
	LangHindi   = "hi"
)

//go:embed kb.yaml
var defaultKB []byte

// Intent is one knowledge base entry.
type Intent struct {
	Name         string              `yaml:"name"`
	Keywords     []string            `yaml:"keywords"`
	Responses    map[string]string   `yaml:"responses"`
	QuickReplies map[string][]string `yaml:"quick_replies"`
}

// KnowledgeBase is the parsed kb.yaml document.
type KnowledgeBase struct {
	Intents              []Intent            `yaml:"intents"`
	Fallback             map[string]string   `yaml:"fallback"`
	FallbackQuickReplies map[string][]string `yaml:"fallback_quick_replies"`
}

// LoadKnowledgeBase reads a YAML knowledge base from path, or the
// embedded one when path is empty.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	if path == "" {
		return ParseKnowledgeBase(defaultKB)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return ParseKnowledgeBase(b)
}

// ParseKnowledgeBase decodes and validates a knowledge base. Keywords
// are lower-cased once here.
func ParseKnowledgeBase(data []byte) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	if len(kb.Intents) == 0 {
		return nil, errors.New("knowledge base has no intents")
	}
	seen := make(map[string]bool, len(kb.Intents))
	for i := range kb.Intents {
		in := &kb.Intents[i]
		if in.Name == "" {
			return nil, fmt.Errorf("intent %d has no name", i)
		}
		if seen[in.Name] {
			return nil, fmt.Errorf("duplicate intent %q", in.Name)
		}
		seen[in.Name] = true
		if in.Responses[LangEnglish] == "" {
			return nil, fmt.Errorf("intent %q has no english response", in.Name)
		}
		for j, k := range in.Keywords {
			in.Keywords[j] = strings.ToLower(strings.TrimSpace(k))
		}
	}
	if kb.Fallback[LangEnglish] == "" {
		return nil, errors.New("knowledge base has no english fallback")
	}
	return &kb, nil
}

// Intent returns the named intent.
func (kb *KnowledgeBase) Intent(name string) (*Intent, bool) {
	for i := range kb.Intents {
		if kb.Intents[i].Name == name {
			return &kb.Intents[i], true
		}
	}
	return nil, false
}

// Response picks the reply in lang, falling back to English.
func (in *Intent) Response(lang string) string {
	if r := in.Responses[lang]; r != "" {
		return r
	}
	return in.Responses[LangEnglish]
}

func (kb *KnowledgeBase) fallback(lang string) string {
	if r := kb.Fallback[lang]; r != "" {
		return r
	}
	return kb.Fallback[LangEnglish]
}

// QuickReplies returns the suggestions for an intent, or the generic
// ones when the intent has none.
func (kb *KnowledgeBase) QuickReplies(intent, lang string) []string {
	if in, ok := kb.Intent(intent); ok {
		if r := in.QuickReplies[lang]; len(r) > 0 {
			return r
		}
	}
	if r := kb.FallbackQuickReplies[lang]; len(r) > 0 {
		return r
	}
	return kb.FallbackQuickReplies[LangEnglish]
}
