package narration

import (
	"fmt"
	"os"
	"regexp"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Pronunciation rewrites a word or phrase before it is sent to a provider.
type Pronunciation struct {
	Original string `yaml:"original"`
	Phonetic string `yaml:"phonetic"`
}

// Dictionary is applied in order, so earlier entries see the original text
// and later entries see the result of earlier substitutions.
type Dictionary []Pronunciation

type dictionaryFile struct {
	Pronunciations Dictionary `yaml:"pronunciations"`
}

// LoadDictionary reads a YAML file of the form
//
//	pronunciations:
//	  - original: Goku
//	    phonetic: Go-koo
func LoadDictionary(path string) (Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	var f dictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary %s: %w", path, err)
	}
	return f.Pronunciations, nil
}

// Apply replaces whole-word, case-insensitive occurrences of each original.
func (d Dictionary) Apply(text string) string {
	for _, p := range d {
		if p.Original == "" {
			continue
		}
		text = wordPattern(p.Original).ReplaceAllLiteralString(text, p.Phonetic)
	}
	return text
}

// wordPattern anchors on word boundaries only where the phrase itself starts
// or ends with a word character; \b never matches next to punctuation or CJK.
func wordPattern(phrase string) *regexp.Regexp {
	expr := regexp.QuoteMeta(phrase)
	first, _ := utf8.DecodeRuneInString(phrase)
	last, _ := utf8.DecodeLastRuneInString(phrase)
	if isWordRune(first) {
		expr = `\b` + expr
	}
	if isWordRune(last) {
		expr += `\b`
	}
	return regexp.MustCompile("(?i)" + expr)
}

func isWordRune(r rune) bool {
	return r < utf8.RuneSelf && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}
