package tango

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/teslashibe/go-tango/pkg/expression"
	"github.com/teslashibe/go-tango/pkg/gesture"
	"github.com/teslashibe/go-tango/pkg/keyboard"
	"github.com/teslashibe/go-tango/pkg/session"
)

// maxRepeat bounds "label*N" so a typo cannot allocate forever.
const maxRepeat = 10000

// Signal is one recorded frame of the gesture signal.
type Signal struct {
	Label   expression.Label
	Present bool
}

// ReadScript parses a label script: one frame per word, words separated by
// spaces, commas or newlines. "#" starts a comment. "none" or "-" is a
// frame with no face, and "happy*5" holds happy for five frames.
func ReadScript(r io.Reader) ([]Signal, error) {
	var out []Signal

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		words := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		for _, word := range words {
			sigs, err := parseWord(word)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out = append(out, sigs...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return out, nil
}

func parseWord(word string) ([]Signal, error) {
	name, count := word, 1
	if i := strings.IndexByte(word, '*'); i >= 0 {
		n, err := strconv.Atoi(word[i+1:])
		if err != nil || n < 1 || n > maxRepeat {
			return nil, fmt.Errorf("bad repeat count in %q", word)
		}
		name, count = word[:i], n
	}

	var sig Signal
	if name != "-" {
		label, err := expression.Parse(name)
		if err != nil {
			return nil, err
		}
		sig = Signal{Label: label, Present: label != expression.None}
	}

	out := make([]Signal, count)
	for i := range out {
		out[i] = sig
	}
	return out, nil
}

// Step is what one replayed frame did.
type Step struct {
	Index  int
	Signal Signal
	Action gesture.Action
	Result keyboard.Result
}

// Replay feeds signals through the session's debouncer and keyboard.
// each, if set, sees every frame that fired an action.
func Replay(sess *session.Session, signals []Signal, each func(Step)) string {
	for i, sig := range signals {
		action, res := sess.Observe(sig.Label, sig.Present)
		if each != nil && action != gesture.NoAction {
			each(Step{Index: i, Signal: sig, Action: action, Result: res})
		}
	}
	return sess.Snapshot().Output
}
