package classifier

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Lexicon holds the phrase lists the classifier matches against.
type Lexicon struct {
	Affirmative   []string `yaml:"affirmative"`
	Negative      []string `yaml:"negative"`
	Frustration   []string `yaml:"frustration"`
	LowConfidence []string `yaml:"low_confidence"`
}

// LoadLexicon reads the lexicon at path, or the built-in one when path is empty.
func LoadLexicon(path string) (*Lexicon, error) {
	data := defaultLexicon
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read lexicon %s: %w", path, err)
		}
		data = raw
	}
	return ParseLexicon(data)
}

// ParseLexicon decodes a YAML lexicon. Every list must be non-empty.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	for name, list := range map[string][]string{
		"affirmative":    lex.Affirmative,
		"negative":       lex.Negative,
		"frustration":    lex.Frustration,
		"low_confidence": lex.LowConfidence,
	} {
		if len(list) == 0 {
			return nil, fmt.Errorf("lexicon: %s list is empty", name)
		}
	}
	return &lex, nil
}
