package student

import (
	"strings"
	"unicode"
)

// Level is the educational tier a student belongs to. It selects the
// thresholds and whether letter grades apply.
type Level string

const (
	// LevelPrimary is "Level A", the lower cycle.
	LevelPrimary Level = "primary"
	// LevelSecondary is "Level B", the upper cycle.
	LevelSecondary Level = "secondary"
	// LevelMixed is only valid as a session setting: the dataset holds both
	// tiers and every record must carry a recognisable tag.
	LevelMixed Level = "mixed"
)

// AllLevels lists the concrete record levels in display order.
var AllLevels = []Level{LevelPrimary, LevelSecondary}

// IsConcrete reports whether l can be assigned to a record.
func (l Level) IsConcrete() bool {
	return l == LevelPrimary || l == LevelSecondary
}

// IsValidSessionLevel reports whether l is an acceptable session setting.
func (l Level) IsValidSessionLevel() bool {
	return l.IsConcrete() || l == LevelMixed
}

// Label returns the human-facing name.
func (l Level) Label() string {
	switch l {
	case LevelPrimary:
		return "Level A (Primary)"
	case LevelSecondary:
		return "Level B (Secondary)"
	case LevelMixed:
		return "Mixed"
	default:
		return "Unknown"
	}
}

func (l Level) String() string { return string(l) }

// LevelSource records how a record's level was decided.
type LevelSource string

const (
	// SourceTagged means the row carried a recognised level tag.
	SourceTagged LevelSource = "tagged"
	// SourceSessionDefault means the tag was absent or unrecognised and the
	// session level was applied instead.
	SourceSessionDefault LevelSource = "session_default"
)

// Keyword tables for ParseLevel. Keywords match whole words of the
// lower-cased tag, so "1ro Primaria" and "SECUNDARIA 3" both resolve while
// "Sección" is not read as "sec".
var (
	primaryKeywords   = []string{"primaria", "primary", "prim", "level a", "nivel a"}
	secondaryKeywords = []string{"secundaria", "secondary", "sec", "level b", "nivel b"}
)

// ParseLevel maps a free-text tag to a concrete level. The boolean is false
// when the tag matches neither tier; ParseLevel never guesses.
func ParseLevel(tag string) (Level, bool) {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == "" {
		return "", false
	}
	switch t {
	case "a":
		return LevelPrimary, true
	case "b":
		return LevelSecondary, true
	}

	words := " " + strings.Join(strings.FieldsFunc(t, isSeparator), " ") + " "
	isPrimary := hasKeyword(words, primaryKeywords)
	isSecondary := hasKeyword(words, secondaryKeywords)
	switch {
	case isPrimary && !isSecondary:
		return LevelPrimary, true
	case isSecondary && !isPrimary:
		return LevelSecondary, true
	default:
		return "", false
	}
}

// ParseSessionLevel parses a configured session level, accepting "mixed".
func ParseSessionLevel(s string) (Level, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == string(LevelMixed) || t == "mixto" {
		return LevelMixed, true
	}
	return ParseLevel(t)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// hasKeyword reports whether any keyword appears as a run of whole words in
// words, which must be space-separated and space-padded.
func hasKeyword(words string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(words, " "+kw+" ") {
			return true
		}
	}
	return false
}
