// Package gesture turns the per-frame expression signal into keyboard
// actions. A held expression fires once; it has to change before the
// same action can fire again.
package gesture

import (
	"github.com/teslashibe/go-tango/pkg/expression"
)

// Action is a committed keyboard command.
type Action int

const (
	// NoAction means the frame produced nothing to do.
	NoAction Action = iota

	// SelectLeft narrows to the left half.
	SelectLeft

	// SelectRight narrows to the right half.
	SelectRight

	// Delete removes the last output character.
	Delete
)

// String returns a human-readable action name.
func (a Action) String() string {
	switch a {
	case SelectLeft:
		return "select_left"
	case SelectRight:
		return "select_right"
	case Delete:
		return "delete"
	default:
		return "none"
	}
}

// ActionFor maps an expression to its action.
func ActionFor(l expression.Label) Action {
	switch l {
	case expression.Happy:
		return SelectRight
	case expression.Angry:
		return SelectLeft
	case expression.Surprised:
		return Delete
	default:
		return NoAction
	}
}

// Debouncer is edge triggered: it emits when the settled label changes
// into a mapped one. A label settles after StableFrames consecutive frames.
// Not safe for concurrent use; it lives on the detection loop.
type Debouncer struct {
	stableFrames int

	settled   expression.Label
	candidate expression.Label
	run       int
}

// NewDebouncer returns a debouncer. stableFrames < 1 is treated as 1.
func NewDebouncer(stableFrames int) *Debouncer {
	if stableFrames < 1 {
		stableFrames = 1
	}
	return &Debouncer{stableFrames: stableFrames}
}

// Observe feeds one frame's signal. present is false when no face was seen;
// such frames are ignored and do not break a held expression.
func (d *Debouncer) Observe(label expression.Label, present bool) Action {
	if !present {
		return NoAction
	}

	if label == d.candidate {
		d.run++
	} else {
		d.candidate = label
		d.run = 1
	}

	if d.run < d.stableFrames || d.candidate == d.settled {
		return NoAction
	}

	d.settled = d.candidate
	return ActionFor(d.settled)
}

// Settled returns the label the debouncer currently considers held.
func (d *Debouncer) Settled() expression.Label {
	return d.settled
}

// Reset forgets all history, so the next mapped label fires.
func (d *Debouncer) Reset() {
	d.settled = expression.None
	d.candidate = expression.None
	d.run = 0
}
