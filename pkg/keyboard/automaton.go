package keyboard

import (
	"github.com/teslashibe/go-tango/pkg/gesture"
)

// Result describes what one Apply did.
type Result struct {
	// Action is the action that was applied.
	Action gesture.Action

	// Committed is the token that reached the output, or "" if none did.
	Committed Token

	// Deleted is true when a rune was removed from the output.
	Deleted bool

	// Left and Right are the partition after the action.
	Left, Right Set
}

// Automaton narrows the alphabet one half at a time.
// It is not safe for concurrent use.
type Automaton struct {
	alphabet Set
	current  Set
	left     Set
	right    Set
	output   Buffer
}

// New starts an automaton on the given alphabet.
func New(alphabet Set) (*Automaton, error) {
	alpha, err := NewSet(alphabet...)
	if err != nil {
		return nil, err
	}

	a := &Automaton{alphabet: alpha}
	a.Reset()
	return a, nil
}

// Apply runs one committed action.
func (a *Automaton) Apply(action gesture.Action) Result {
	res := Result{Action: action}

	switch action {
	case gesture.SelectLeft:
		res.Committed, res.Deleted = a.narrow(a.left)
	case gesture.SelectRight:
		res.Committed, res.Deleted = a.narrow(a.right)
	case gesture.Delete:
		res.Deleted = a.output.DeleteLast()
	}

	res.Left, res.Right = a.Partition()
	return res
}

// narrow moves to half. A singleton is committed straight away.
func (a *Automaton) narrow(half Set) (Token, bool) {
	if len(a.current) > 1 {
		a.setCurrent(half)
	}
	if len(a.current) != 1 {
		return "", false
	}

	tok := a.current[0]
	deleted := a.commit(tok)
	a.Reset()
	return tok, deleted
}

// commit applies a single token to the output.
func (a *Automaton) commit(tok Token) bool {
	if tok.Kind() == TokenDelete {
		return a.output.DeleteLast()
	}
	a.output.Append(tok.Text())
	return false
}

func (a *Automaton) setCurrent(s Set) {
	a.current = s
	a.left, a.right = s.Split()
}

// Reset returns to the full alphabet. The output is kept.
func (a *Automaton) Reset() {
	a.setCurrent(append(Set(nil), a.alphabet...))
}

// Clear empties the output.
func (a *Automaton) Clear() {
	a.output.Clear()
}

// Current returns a copy of the live candidate set.
func (a *Automaton) Current() Set {
	return append(Set(nil), a.current...)
}

// Partition returns copies of the current left and right halves.
func (a *Automaton) Partition() (left, right Set) {
	return append(Set(nil), a.left...), append(Set(nil), a.right...)
}

// Alphabet returns a copy of the full alphabet.
func (a *Automaton) Alphabet() Set {
	return append(Set(nil), a.alphabet...)
}

// Output returns the typed text.
func (a *Automaton) Output() string {
	return a.output.String()
}
