package profile

import "hotscribe/output"

// reconciler keeps the text typed for the current utterance in sync with the
// backend's latest hypothesis. Only the part after the longest common prefix
// is retyped.
type reconciler struct {
	buffer []rune
}

// edit is the keystrokes that move typed text to a new hypothesis.
type edit struct {
	backspaces int
	text       string
}

func (e edit) applyTo(out output.Simulator) error {
	if e.backspaces > 0 {
		if err := out.Backspace(e.backspaces); err != nil {
			return err
		}
	}
	if e.text != "" {
		return out.Typewrite(e.text)
	}
	return nil
}

// diff advances the buffer to text and returns the edit for it. On utterance
// end the buffer resets so the next utterance never diffs against finished
// text.
func (r *reconciler) diff(text string, utteranceEnd bool) edit {
	defer func() {
		if utteranceEnd {
			r.buffer = r.buffer[:0]
		}
	}()
	if text == "" {
		return edit{}
	}
	next := []rune(text)
	common := commonPrefix(r.buffer, next)
	e := edit{backspaces: len(r.buffer) - common, text: string(next[common:])}
	r.buffer = next
	return e
}

func (r *reconciler) reset() { r.buffer = r.buffer[:0] }

func commonPrefix(a, b []rune) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
