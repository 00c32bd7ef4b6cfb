// Package expression defines facial expression labels and picks the
// dominant one from a classifier's per-label scores.
package expression

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknown is returned by Parse for names outside the canonical set.
var ErrUnknown = errors.New("unknown expression")

// Label names a facial expression, e.g. "happy".
type Label string

// Canonical labels, in classifier order.
const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Fearful   Label = "fearful"
	Disgusted Label = "disgusted"
	Surprised Label = "surprised"
)

// None is the zero label, used when no face was seen.
const None Label = ""

// Canonical is the fixed label order used to break ties.
var Canonical = []Label{Neutral, Happy, Sad, Angry, Fearful, Disgusted, Surprised}

// Known reports whether l is one of the canonical labels.
func (l Label) Known() bool {
	for _, c := range Canonical {
		if c == l {
			return true
		}
	}
	return false
}

// Parse reads a canonical label, ignoring case and surrounding space.
// "none" and the empty string parse to None.
func Parse(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if l == None || l == "none" {
		return None, nil
	}
	if !l.Known() {
		return None, fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return l, nil
}

func (l Label) String() string {
	if l == None {
		return "none"
	}
	return string(l)
}

// Scores maps a label to its confidence in [0,1].
type Scores map[Label]float64

// Ordered returns the labels present in s: canonical ones first in canonical
// order, then any others sorted lexically.
func (s Scores) Ordered() []Label {
	out := make([]Label, 0, len(s))
	for _, l := range Canonical {
		if _, ok := s[l]; ok {
			out = append(out, l)
		}
	}

	var extra []Label
	for l := range s {
		if !l.Known() {
			extra = append(extra, l)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(out, extra...)
}

// Dominant returns the highest scoring label. Ties go to the label that
// comes first in Ordered. Returns false for empty scores.
func Dominant(s Scores) (Label, bool) {
	best := None
	bestScore := 0.0
	found := false

	for _, l := range s.Ordered() {
		score := s[l]
		if !found || score > bestScore {
			best, bestScore, found = l, score, true
		}
	}

	return best, found
}
