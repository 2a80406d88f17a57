package hotkey

import (
	"strconv"
	"strings"
)

// KeyCode is a backend independent key identifier.
type KeyCode int

const (
	KeyUnknown KeyCode = iota

	KeyCtrlLeft
	KeyCtrlRight
	KeyShiftLeft
	KeyShiftRight
	KeyAltLeft
	KeyAltRight
	KeyMetaLeft
	KeyMetaRight

	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyF13
	KeyF14
	KeyF15
	KeyF16
	KeyF17
	KeyF18
	KeyF19
	KeyF20
	KeyF21
	KeyF22
	KeyF23
	KeyF24

	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9

	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ

	KeySpace
	KeyEnter
	KeyTab
	KeyBackspace
	KeyEsc
	KeyInsert
	KeyDelete
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyCapsLock
	KeyNumLock
	KeyScrollLock
	KeyPause
	KeyPrintScreen

	KeyUp
	KeyDown
	KeyLeft
	KeyRight

	KeyNumpad0
	KeyNumpad1
	KeyNumpad2
	KeyNumpad3
	KeyNumpad4
	KeyNumpad5
	KeyNumpad6
	KeyNumpad7
	KeyNumpad8
	KeyNumpad9
	KeyNumpadAdd
	KeyNumpadSubtract
	KeyNumpadMultiply
	KeyNumpadDivide
	KeyNumpadDecimal
	KeyNumpadEnter

	KeyMinus
	KeyEquals
	KeyLeftBracket
	KeyRightBracket
	KeySemicolon
	KeyQuote
	KeyBackquote
	KeyBackslash
	KeyComma
	KeyPeriod
	KeySlash

	KeyMute
	KeyVolumeDown
	KeyVolumeUp
	KeyPlayPause
	KeyNextTrack
	KeyPrevTrack

	keyCount
)

var keyNames = map[KeyCode]string{
	KeyCtrlLeft:   "ctrl_left",
	KeyCtrlRight:  "ctrl_right",
	KeyShiftLeft:  "shift_left",
	KeyShiftRight: "shift_right",
	KeyAltLeft:    "alt_left",
	KeyAltRight:   "alt_right",
	KeyMetaLeft:   "meta_left",
	KeyMetaRight:  "meta_right",

	KeySpace:       "space",
	KeyEnter:       "enter",
	KeyTab:         "tab",
	KeyBackspace:   "backspace",
	KeyEsc:         "esc",
	KeyInsert:      "insert",
	KeyDelete:      "delete",
	KeyHome:        "home",
	KeyEnd:         "end",
	KeyPageUp:      "page_up",
	KeyPageDown:    "page_down",
	KeyCapsLock:    "caps_lock",
	KeyNumLock:     "num_lock",
	KeyScrollLock:  "scroll_lock",
	KeyPause:       "pause",
	KeyPrintScreen: "print_screen",

	KeyUp:    "up",
	KeyDown:  "down",
	KeyLeft:  "left",
	KeyRight: "right",

	KeyNumpadAdd:      "numpad_add",
	KeyNumpadSubtract: "numpad_subtract",
	KeyNumpadMultiply: "numpad_multiply",
	KeyNumpadDivide:   "numpad_divide",
	KeyNumpadDecimal:  "numpad_decimal",
	KeyNumpadEnter:    "numpad_enter",

	KeyMinus:        "minus",
	KeyEquals:       "equals",
	KeyLeftBracket:  "left_bracket",
	KeyRightBracket: "right_bracket",
	KeySemicolon:    "semicolon",
	KeyQuote:        "quote",
	KeyBackquote:    "backquote",
	KeyBackslash:    "backslash",
	KeyComma:        "comma",
	KeyPeriod:       "period",
	KeySlash:        "slash",

	KeyMute:       "mute",
	KeyVolumeDown: "volume_down",
	KeyVolumeUp:   "volume_up",
	KeyPlayPause:  "play_pause",
	KeyNextTrack:  "next_track",
	KeyPrevTrack:  "prev_track",
}

var (
	byName  = map[string]KeyCode{}
	aliases = map[string]string{
		"return":    "enter",
		"escape":    "esc",
		"del":       "delete",
		"ins":       "insert",
		"pgup":      "page_up",
		"pgdn":      "page_down",
		"capslock":  "caps_lock",
		"numlock":   "num_lock",
		"printscr":  "print_screen",
		"grave":     "backquote",
		"ctrl_l":    "ctrl_left",
		"ctrl_r":    "ctrl_right",
		"shift_l":   "shift_left",
		"shift_r":   "shift_right",
		"alt_l":     "alt_left",
		"alt_r":     "alt_right",
		"alt_gr":    "alt_right",
		"meta_l":    "meta_left",
		"meta_r":    "meta_right",
		"cmd_l":     "meta_left",
		"cmd_r":     "meta_right",
		"super_l":   "meta_left",
		"super_r":   "meta_right",
		"page-up":   "page_up",
		"page-down": "page_down",
	}
)

func init() {
	for i := 0; i < 24; i++ {
		keyNames[KeyF1+KeyCode(i)] = "f" + strconv.Itoa(i+1)
	}
	for i := 0; i < 10; i++ {
		keyNames[Key0+KeyCode(i)] = strconv.Itoa(i)
		keyNames[KeyNumpad0+KeyCode(i)] = "numpad_" + strconv.Itoa(i)
	}
	for i := 0; i < 26; i++ {
		keyNames[KeyA+KeyCode(i)] = string(rune('a' + i))
	}
	for k, n := range keyNames {
		byName[n] = k
	}
}

func (k KeyCode) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	return "unknown"
}

// LookupKey resolves a single physical key name. Modifier group names like
// "ctrl" are not keys; see ParseCombination.
func LookupKey(name string) (KeyCode, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		n = a
	}
	k, ok := byName[n]
	return k, ok
}
