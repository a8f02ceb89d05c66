package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks censored words in message text. A nil *Moderator, or one
// built from an empty list, leaves every text unchanged.
type Moderator struct {
	log          *slog.Logger
	matcher      *goahocorasick.Machine
	censoredChar rune
}

type TextMapping struct {
	Normalized []rune
	OrigIdx    []int
}

// NewModerator initializes the Aho-Corasick automaton with a normalized version of the provided censored words list.
// Words made only of noise normalize to nothing and are ignored.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if pattern := normalizeRunes([]rune(word)); len(pattern) > 0 {
			patterns = append(patterns, pattern)
		}
	}

	mod := &Moderator{log: log, censoredChar: censoredChar}
	if len(patterns) == 0 {
		log.Debug("Moderation disabled, no censored word")
		return mod, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	mod.matcher = m
	log.Debug("Moderation enabled", "patterns", len(patterns))
	return mod, nil
}

// Censor replaces every character of a censored word with the censored
// character, noise between letters included, and returns the matched words.
func (m *Moderator) Censor(original string) (string, []string) {
	if m == nil || m.matcher == nil {
		return original, nil
	}
	mapping := m.normalize(original)
	if len(mapping.Normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.Normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var words []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)

		if normStart < 0 || normEnd > len(mapping.OrigIdx) {
			continue
		}

		origStart := mapping.OrigIdx[normStart]
		origEnd := mapping.OrigIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
		words = append(words, string(span.Word))
	}

	if len(words) > 0 {
		m.log.Debug("Message censored", "words", len(words))
	}
	return string(origRunes), words
}

// mentionMark starts a mention of another participant. A mention is kept
// verbatim: names were validated at registration and are never censored.
const mentionMark = '@'

// wordBreak stands in for a skipped mention in the folded text. Spaces are
// noise, so no folded pattern contains one and no match can span a mention.
const wordBreak = ' '

// leet maps look-alike characters back to the letter they stand for.
var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
	'7': 't',
}

// normalize folds a message text, skipping mentions.
func (m *Moderator) normalize(input string) TextMapping {
	return fold([]rune(input), true)
}

func normalizeRunes(input []rune) []rune {
	return fold(input, false).Normalized
}

// fold lowercases letters, undoes leet substitutions and drops noise, keeping
// for every folded rune its index in input.
func fold(input []rune, mentions bool) TextMapping {
	mapping := TextMapping{
		Normalized: make([]rune, 0, len(input)),
		OrigIdx:    make([]int, 0, len(input)),
	}
	for i := 0; i < len(input); i++ {
		if mentions && isMention(input, i) {
			mapping.Normalized = append(mapping.Normalized, wordBreak)
			mapping.OrigIdx = append(mapping.OrigIdx, i)
			for i+1 < len(input) && !unicode.IsSpace(input[i+1]) {
				i++
			}
			continue
		}
		r := input[i]
		if plain, ok := leet[r]; ok {
			r = plain
		}
		if isNoise(r) {
			continue
		}
		mapping.Normalized = append(mapping.Normalized, unicode.ToLower(r))
		mapping.OrigIdx = append(mapping.OrigIdx, i)
	}
	return mapping
}

// isMention reports whether input[i] opens a word like "@Ana".
func isMention(input []rune, i int) bool {
	if input[i] != mentionMark || i+1 >= len(input) || !unicode.IsLetter(input[i+1]) {
		return false
	}
	return i == 0 || unicode.IsSpace(input[i-1])
}

// isNoise covers separators people slip between letters, combining accents
// included.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) || unicode.Is(unicode.Mn, r)
}
