package output

// Linux input event codes from input-event-codes.h.
const (
	keyBackspace = 14
	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47
)

// a..z
var letterKeys = [26]uint16{
	30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
	37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
	22, 47, 17, 45, 21, 44,
}

// 0..9
var digitKeys = [10]uint16{11, 2, 3, 4, 5, 6, 7, 8, 9, 10}

type keyStroke struct {
	code  uint16
	shift bool
}

var symbolKeys = map[rune]keyStroke{
	' ': {57, false}, '\n': {28, false}, '\t': {15, false},
	'.': {52, false}, ',': {51, false}, '/': {53, false},
	';': {39, false}, '\'': {40, false}, '[': {26, false},
	']': {27, false}, '-': {12, false}, '=': {13, false},
	'\\': {43, false}, '`': {41, false},
	'!': {2, true}, '@': {3, true}, '#': {4, true},
	'$': {5, true}, '%': {6, true}, '^': {7, true},
	'&': {8, true}, '*': {9, true}, '(': {10, true},
	')': {11, true}, '_': {12, true}, '+': {13, true},
	'{': {26, true}, '}': {27, true}, '|': {43, true},
	':': {39, true}, '"': {40, true}, '<': {51, true},
	'>': {52, true}, '?': {53, true}, '~': {41, true},
}

// lookupKey maps a character to a US layout keystroke. Characters outside
// ASCII have no key and are skipped by the uinput typer.
func lookupKey(c rune) (keyStroke, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return keyStroke{letterKeys[c-'a'], false}, true
	case c >= 'A' && c <= 'Z':
		return keyStroke{letterKeys[c-'A'], true}, true
	case c >= '0' && c <= '9':
		return keyStroke{digitKeys[c-'0'], false}, true
	}
	k, ok := symbolKeys[c]
	return k, ok
}
