package hotkey

// evdevKeys maps Linux input event codes (linux/input-event-codes.h) to
// KeyCode.
var evdevKeys = map[uint16]KeyCode{
	1:   KeyEsc,
	2:   Key1,
	3:   Key2,
	4:   Key3,
	5:   Key4,
	6:   Key5,
	7:   Key6,
	8:   Key7,
	9:   Key8,
	10:  Key9,
	11:  Key0,
	12:  KeyMinus,
	13:  KeyEquals,
	14:  KeyBackspace,
	15:  KeyTab,
	16:  KeyQ,
	17:  KeyW,
	18:  KeyE,
	19:  KeyR,
	20:  KeyT,
	21:  KeyY,
	22:  KeyU,
	23:  KeyI,
	24:  KeyO,
	25:  KeyP,
	26:  KeyLeftBracket,
	27:  KeyRightBracket,
	28:  KeyEnter,
	29:  KeyCtrlLeft,
	30:  KeyA,
	31:  KeyS,
	32:  KeyD,
	33:  KeyF,
	34:  KeyG,
	35:  KeyH,
	36:  KeyJ,
	37:  KeyK,
	38:  KeyL,
	39:  KeySemicolon,
	40:  KeyQuote,
	41:  KeyBackquote,
	42:  KeyShiftLeft,
	43:  KeyBackslash,
	44:  KeyZ,
	45:  KeyX,
	46:  KeyC,
	47:  KeyV,
	48:  KeyB,
	49:  KeyN,
	50:  KeyM,
	51:  KeyComma,
	52:  KeyPeriod,
	53:  KeySlash,
	54:  KeyShiftRight,
	55:  KeyNumpadMultiply,
	56:  KeyAltLeft,
	57:  KeySpace,
	58:  KeyCapsLock,
	59:  KeyF1,
	60:  KeyF2,
	61:  KeyF3,
	62:  KeyF4,
	63:  KeyF5,
	64:  KeyF6,
	65:  KeyF7,
	66:  KeyF8,
	67:  KeyF9,
	68:  KeyF10,
	69:  KeyNumLock,
	70:  KeyScrollLock,
	71:  KeyNumpad7,
	72:  KeyNumpad8,
	73:  KeyNumpad9,
	74:  KeyNumpadSubtract,
	75:  KeyNumpad4,
	76:  KeyNumpad5,
	77:  KeyNumpad6,
	78:  KeyNumpadAdd,
	79:  KeyNumpad1,
	80:  KeyNumpad2,
	81:  KeyNumpad3,
	82:  KeyNumpad0,
	83:  KeyNumpadDecimal,
	87:  KeyF11,
	88:  KeyF12,
	96:  KeyNumpadEnter,
	97:  KeyCtrlRight,
	98:  KeyNumpadDivide,
	99:  KeyPrintScreen,
	100: KeyAltRight,
	102: KeyHome,
	103: KeyUp,
	104: KeyPageUp,
	105: KeyLeft,
	106: KeyRight,
	107: KeyEnd,
	108: KeyDown,
	109: KeyPageDown,
	110: KeyInsert,
	111: KeyDelete,
	113: KeyMute,
	114: KeyVolumeDown,
	115: KeyVolumeUp,
	119: KeyPause,
	125: KeyMetaLeft,
	126: KeyMetaRight,
	163: KeyNextTrack,
	164: KeyPlayPause,
	165: KeyPrevTrack,
	183: KeyF13,
	184: KeyF14,
	185: KeyF15,
	186: KeyF16,
	187: KeyF17,
	188: KeyF18,
	189: KeyF19,
	190: KeyF20,
	191: KeyF21,
	192: KeyF22,
	193: KeyF23,
	194: KeyF24,
}
