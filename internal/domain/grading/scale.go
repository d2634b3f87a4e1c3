// Package grading holds the deterministic core of the gradebook: the letter
// scale, per-level thresholds and the per-record aggregation.
// Everything here is a pure function of its arguments.
package grading

import (
	"fmt"

	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// NotApplicable is the letter shown when classification is disabled for a level.
const NotApplicable = "N/A"

// Band is one closed interval of the scale.
type Band struct {
	Lower float64 `json:"lower" koanf:"lower"`
	Upper float64 `json:"upper" koanf:"upper"`
	Label string  `json:"label" koanf:"label"`
}

// Scale is an ordered set of bands covering [0, 20].
//
// Integer scores fall inside a band. Between two bands there may be a gap
// of at most one point (10 < x < 11); such a score belongs to the lower band,
// so 10.5 is "C" and 17.5 is "A" on the default scale.
type Scale struct {
	bands []Band
}

// DefaultScale returns C/B/A/AD, lowest to highest.
func DefaultScale() Scale {
	return Scale{bands: []Band{
		{Lower: 0, Upper: 10, Label: "C"},
		{Lower: 11, Upper: 13, Label: "B"},
		{Lower: 14, Upper: 17, Label: "A"},
		{Lower: 18, Upper: 20, Label: "AD"},
	}}
}

// NewScale validates bands and builds a Scale.
func NewScale(bands []Band) (Scale, error) {
	if len(bands) == 0 {
		return Scale{}, shared.WrapError("grading", "NewScale", shared.ErrInvalidInput, "scale has no bands", shared.ErrInvalidScale)
	}
	fail := func(format string, args ...any) (Scale, error) {
		return Scale{}, shared.WrapError("grading", "NewScale", shared.ErrInvalidInput, fmt.Sprintf(format, args...), shared.ErrInvalidScale)
	}

	if bands[0].Lower != shared.MinScoreValue {
		return fail("first band must start at %v", shared.MinScoreValue)
	}
	if bands[len(bands)-1].Upper != shared.MaxScoreValue {
		return fail("last band must end at %v", shared.MaxScoreValue)
	}

	seen := make(map[string]bool, len(bands))
	for i, b := range bands {
		if b.Label == "" || b.Label == NotApplicable {
			return fail("band %d has an invalid label %q", i, b.Label)
		}
		if seen[b.Label] {
			return fail("label %q is used twice", b.Label)
		}
		seen[b.Label] = true

		if b.Lower > b.Upper {
			return fail("band %q has lower bound above upper bound", b.Label)
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1]
		if b.Lower <= prev.Upper {
			return fail("band %q overlaps %q", b.Label, prev.Label)
		}
		if b.Lower-prev.Upper > 1 {
			return fail("gap between %q and %q is wider than one point", prev.Label, b.Label)
		}
	}

	out := make([]Band, len(bands))
	copy(out, bands)
	return Scale{bands: out}, nil
}

// Bands returns a copy of the bands, lowest first.
func (s Scale) Bands() []Band {
	out := make([]Band, len(s.bands))
	copy(out, s.bands)
	return out
}

// Labels returns the band labels, lowest first.
func (s Scale) Labels() []string {
	out := make([]string, len(s.bands))
	for i, b := range s.bands {
		out[i] = b.Label
	}
	return out
}

// Classify returns the label of the band that score falls in, or
// NotApplicable when enabled is false. Callers pass the rounded average.
func (s Scale) Classify(score float64, enabled bool) string {
	if !enabled || len(s.bands) == 0 {
		return NotApplicable
	}
	last := len(s.bands) - 1
	for i := 0; i < last; i++ {
		if score < s.bands[i+1].Lower {
			return s.bands[i].Label
		}
	}
	return s.bands[last].Label
}
