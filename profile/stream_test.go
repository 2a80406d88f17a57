package profile

import (
	"reflect"
	"testing"

	"hotscribe/output"
)

// typist types every edit into a Recorder.
type typist struct {
	reconciler
	out *output.Recorder
}

func (t *typist) apply(text string, utteranceEnd bool) {
	t.diff(text, utteranceEnd).applyTo(t.out)
}

func TestReconcilerGrowingHypothesis(t *testing.T) {
	rec := &output.Recorder{}
	r := &typist{out: rec}
	r.apply("hel", false)
	r.apply("hello", false)
	r.apply("hello world", true)

	want := []string{"type:hel", "type:lo", "type: world"}
	if got := rec.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %q, want %q", got, want)
	}
	if len(r.buffer) != 0 {
		t.Errorf("buffer = %q after utterance end", string(r.buffer))
	}

	r.apply("next", false)
	if got := rec.Text(); got != "hello worldnext" {
		t.Errorf("screen = %q", got)
	}
}

func TestReconcilerRevision(t *testing.T) {
	rec := &output.Recorder{}
	r := &typist{out: rec}
	r.apply("hello wold", false)
	r.apply("hello world", false)
	r.apply("hello", false)

	want := []string{"type:hello wold", "backspace:2", "type:rld", "backspace:6"}
	if got := rec.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %q, want %q", got, want)
	}
	if got := rec.Text(); got != "hello" {
		t.Errorf("screen = %q", got)
	}
}

func TestReconcilerCountsRunes(t *testing.T) {
	rec := &output.Recorder{}
	r := &typist{out: rec}
	r.apply("café", false)
	r.apply("cafe", false)
	want := []string{"type:café", "backspace:1", "type:e"}
	if got := rec.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %q, want %q", got, want)
	}
}

func TestReconcilerEmptyText(t *testing.T) {
	rec := &output.Recorder{}
	r := &typist{out: rec}
	r.apply("partial", false)
	r.apply("", false)
	if len(r.buffer) == 0 {
		t.Fatal("empty partial cleared the buffer")
	}
	r.apply("", true)
	if len(r.buffer) != 0 {
		t.Fatal("utterance end without text kept the buffer")
	}
	if got := rec.Ops(); len(got) != 1 {
		t.Errorf("ops = %q, want only the first typewrite", got)
	}
}

func TestCommonPrefix(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 0},
		{"abc", "abd", 2},
		{"abc", "abcdef", 3},
		{"xyz", "abc", 0},
	}
	for _, tt := range tests {
		if got := commonPrefix([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("commonPrefix(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
