package postproc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type trailingSpace struct{}

func (trailingSpace) Name() string { return "add_trailing_space" }

func (trailingSpace) Process(text string) string {
	if text == "" {
		return ""
	}
	return text + " "
}

// capitalize upper-cases the first character and lower-cases the rest.
type capitalize struct{}

func (capitalize) Name() string { return "capitalize" }

func (capitalize) Process(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if size == 0 {
		return text
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(text[size:])
}

// removePunctuation strips ASCII punctuation only.
type removePunctuation struct{}

func (removePunctuation) Name() string { return "remove_punctuation" }

func (removePunctuation) Process(text string) string {
	return strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && unicode.IsPunct(r) || strings.ContainsRune("$+<=>^`|~", r) {
			return -1
		}
		return r
	}, text)
}
