package keyboard

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/teslashibe/go-tango/pkg/gesture"
)

func tokens(ss ...string) Set {
	out := make(Set, len(ss))
	for i, s := range ss {
		out[i] = Token(s)
	}
	return out
}

func letters(n int) Set {
	out := make(Set, n)
	for i := range out {
		out[i] = Token(fmt.Sprintf("k%02d", i))
	}
	return out
}

func mustNew(t *testing.T, alphabet Set) *Automaton {
	t.Helper()
	a, err := New(alphabet)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func equalSets(a, b Set) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSet_Split(t *testing.T) {
	for n := 1; n <= 40; n++ {
		s := letters(n)
		left, right := s.Split()

		wantLeft := int(math.Ceil(float64(n) / 2))
		if len(left) != wantLeft {
			t.Errorf("n=%d: len(left) = %d, want %d", n, len(left), wantLeft)
		}
		if len(right) != n-len(left) {
			t.Errorf("n=%d: len(right) = %d, want %d", n, len(right), n-len(left))
		}

		joined := append(append(Set(nil), left...), right...)
		if !equalSets(joined, s) {
			t.Errorf("n=%d: left++right = %v, want %v", n, joined, s)
		}
	}
}

func TestSet_SplitDoesNotAlias(t *testing.T) {
	s := tokens("A", "B", "C", "D")
	left, _ := s.Split()
	left[0] = "Z"
	if s[0] != "A" {
		t.Error("Split should copy, original was modified")
	}
}

func TestNewSet(t *testing.T) {
	if _, err := NewSet(); !errors.Is(err, ErrEmptySet) {
		t.Errorf("empty set: got %v, want ErrEmptySet", err)
	}
	if _, err := NewSet("A", "B", "A"); !errors.Is(err, ErrDuplicateToken) {
		t.Errorf("duplicates: got %v, want ErrDuplicateToken", err)
	}
	s, err := ParseSet([]string{"x", "y"})
	if err != nil || !equalSets(s, tokens("x", "y")) {
		t.Errorf("ParseSet: got %v, %v", s, err)
	}
}

func TestDefaultAlphabet(t *testing.T) {
	alpha := DefaultAlphabet()
	if _, err := NewSet(alpha...); err != nil {
		t.Fatalf("default alphabet invalid: %v", err)
	}
	if alpha[0] != "A" || alpha[25] != "Z" {
		t.Errorf("alphabet should start with A-Z, got %v", alpha[:3])
	}
	if len(alpha) != 29 {
		t.Errorf("len = %d, want 29", len(alpha))
	}
}

func TestToken_Semantics(t *testing.T) {
	tests := []struct {
		tok      Token
		wantKind Token
		wantText string
	}{
		{"A", "", "A"},
		{"Space", TokenSpace, " "},
		{"space", TokenSpace, " "},
		{"Enter", TokenEnter, "\n"},
		{"DELETE", TokenDelete, ""},
		{"é", "", "é"},
	}

	for _, tc := range tests {
		t.Run(string(tc.tok), func(t *testing.T) {
			if got := tc.tok.Kind(); got != tc.wantKind {
				t.Errorf("Kind() = %q, want %q", got, tc.wantKind)
			}
			if got := tc.tok.Text(); got != tc.wantText {
				t.Errorf("Text() = %q, want %q", got, tc.wantText)
			}
		})
	}
}

func TestAutomaton_FiveLetterScenario(t *testing.T) {
	a := mustNew(t, tokens("A", "B", "C", "D", "E"))

	left, right := a.Partition()
	if !equalSets(left, tokens("A", "B", "C")) || !equalSets(right, tokens("D", "E")) {
		t.Fatalf("initial partition = %v | %v", left, right)
	}

	res := a.Apply(gesture.SelectRight)
	if res.Committed != "" {
		t.Errorf("first step should not commit, got %q", res.Committed)
	}
	if !equalSets(a.Current(), tokens("D", "E")) {
		t.Errorf("current = %v, want [D E]", a.Current())
	}
	if !equalSets(res.Left, tokens("D")) || !equalSets(res.Right, tokens("E")) {
		t.Errorf("partition = %v | %v, want [D] | [E]", res.Left, res.Right)
	}

	res = a.Apply(gesture.SelectRight)
	if res.Committed != "E" {
		t.Errorf("Committed = %q, want E", res.Committed)
	}
	if a.Output() != "E" {
		t.Errorf("Output = %q, want E", a.Output())
	}
	if !equalSets(a.Current(), tokens("A", "B", "C", "D", "E")) {
		t.Errorf("current after commit = %v, want full alphabet", a.Current())
	}
	if !equalSets(res.Left, tokens("A", "B", "C")) || !equalSets(res.Right, tokens("D", "E")) {
		t.Errorf("partition after commit = %v | %v", res.Left, res.Right)
	}
}

func TestAutomaton_DeleteActionKeepsPartition(t *testing.T) {
	a := mustNew(t, DefaultAlphabet())
	typeWord(t, a, "HI")
	if a.Output() != "HI" {
		t.Fatalf("Output = %q, want HI", a.Output())
	}

	a.Apply(gesture.SelectLeft)
	beforeL, beforeR := a.Partition()
	beforeCur := a.Current()

	res := a.Apply(gesture.Delete)
	if !res.Deleted {
		t.Error("Deleted should be true")
	}
	if a.Output() != "H" {
		t.Errorf("Output = %q, want H", a.Output())
	}

	afterL, afterR := a.Partition()
	if !equalSets(beforeL, afterL) || !equalSets(beforeR, afterR) || !equalSets(beforeCur, a.Current()) {
		t.Error("Delete action should not change the selection state")
	}
}

func TestAutomaton_DeleteOnEmptyBuffer(t *testing.T) {
	a := mustNew(t, tokens("A", "B"))

	for i := 0; i < 3; i++ {
		res := a.Apply(gesture.Delete)
		if res.Deleted {
			t.Error("Deleted should be false on empty buffer")
		}
	}
	if a.Output() != "" {
		t.Errorf("Output = %q, want empty", a.Output())
	}
}

func TestAutomaton_SpecialTokens(t *testing.T) {
	a := mustNew(t, tokens("A", "Space", "Enter", "Delete"))

	// [A Space] | [Enter Delete]
	a.Apply(gesture.SelectLeft)
	a.Apply(gesture.SelectLeft) // A
	a.Apply(gesture.SelectLeft)
	a.Apply(gesture.SelectRight) // Space
	a.Apply(gesture.SelectRight)
	a.Apply(gesture.SelectLeft) // Enter
	if a.Output() != "A \n" {
		t.Fatalf("Output = %q, want %q", a.Output(), "A \n")
	}

	a.Apply(gesture.SelectRight)
	res := a.Apply(gesture.SelectRight) // Delete token
	if res.Committed != "Delete" || !res.Deleted {
		t.Errorf("Delete token: got %+v", res)
	}
	if a.Output() != "A " {
		t.Errorf("Output = %q, want %q", a.Output(), "A ")
	}
}

func TestAutomaton_SingletonAlphabet(t *testing.T) {
	a := mustNew(t, tokens("X"))

	res := a.Apply(gesture.SelectRight)
	if res.Committed != "X" || a.Output() != "X" {
		t.Errorf("got %+v, output %q", res, a.Output())
	}
	res = a.Apply(gesture.SelectLeft)
	if res.Committed != "X" || a.Output() != "XX" {
		t.Errorf("got %+v, output %q", res, a.Output())
	}
	if !equalSets(a.Current(), tokens("X")) {
		t.Errorf("current = %v, want [X]", a.Current())
	}
}

func TestAutomaton_WorstCaseSteps(t *testing.T) {
	for n := 2; n <= 64; n++ {
		a := mustNew(t, letters(n))

		steps := 0
		for {
			steps++
			if res := a.Apply(gesture.SelectLeft); res.Committed != "" {
				break
			}
			if steps > n {
				t.Fatalf("n=%d: no commit after %d steps", n, steps)
			}
		}

		want := int(math.Ceil(math.Log2(float64(n))))
		if steps != want {
			t.Errorf("n=%d: steps = %d, want %d", n, steps, want)
		}
	}
}

func TestAutomaton_ReachesEveryToken(t *testing.T) {
	alpha := DefaultAlphabet()
	limit := int(math.Ceil(math.Log2(float64(len(alpha)))))

	for _, target := range alpha {
		a := mustNew(t, alpha)
		steps, res := navigate(t, a, target)
		if res.Committed != target {
			t.Errorf("target %q: committed %q", target, res.Committed)
		}
		if steps > limit {
			t.Errorf("target %q: %d steps, limit %d", target, steps, limit)
		}
		if !equalSets(a.Current(), alpha) {
			t.Errorf("target %q: not reset after commit", target)
		}
	}
}

func TestAutomaton_ResetAndClear(t *testing.T) {
	a := mustNew(t, DefaultAlphabet())
	typeWord(t, a, "GO")

	a.Apply(gesture.SelectRight)
	a.Reset()
	if !equalSets(a.Current(), a.Alphabet()) {
		t.Error("Reset should restore the full alphabet")
	}
	if a.Output() != "GO" {
		t.Errorf("Reset should keep output, got %q", a.Output())
	}

	a.Clear()
	if a.Output() != "" {
		t.Errorf("Clear: output = %q", a.Output())
	}
}

func TestNew_RejectsInvalidAlphabet(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrEmptySet) {
		t.Errorf("got %v, want ErrEmptySet", err)
	}
}

func TestBuffer(t *testing.T) {
	var b Buffer
	b.Append("héllo")
	if b.Len() != 5 {
		t.Errorf("Len = %d, want 5", b.Len())
	}
	b.DeleteLast()
	if b.String() != "héll" {
		t.Errorf("String = %q", b.String())
	}
	b.Clear()
	if b.DeleteLast() {
		t.Error("DeleteLast on empty buffer should report false")
	}
}

// navigate picks whichever half holds target until it is committed.
func navigate(t *testing.T, a *Automaton, target Token) (int, Result) {
	t.Helper()
	for steps := 1; steps <= 64; steps++ {
		left, _ := a.Partition()
		action := gesture.SelectRight
		for _, tok := range left {
			if tok == target {
				action = gesture.SelectLeft
				break
			}
		}
		if res := a.Apply(action); res.Committed != "" {
			return steps, res
		}
	}
	t.Fatalf("never committed %q", target)
	return 0, Result{}
}

func typeWord(t *testing.T, a *Automaton, word string) {
	t.Helper()
	for _, r := range word {
		navigate(t, a, Token(string(r)))
	}
}
