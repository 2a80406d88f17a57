package hotkey

import (
	"slices"

	"golang.design/x/hotkey"
)

func osModifier(g Group) (hotkey.Modifier, bool) {
	switch {
	case slices.Contains(g, KeyCtrlLeft) || slices.Contains(g, KeyCtrlRight):
		return hotkey.ModCtrl, true
	case slices.Contains(g, KeyShiftLeft) || slices.Contains(g, KeyShiftRight):
		return hotkey.ModShift, true
	case slices.Contains(g, KeyAltLeft) || slices.Contains(g, KeyAltRight):
		return hotkey.ModOption, true
	case slices.Contains(g, KeyMetaLeft) || slices.Contains(g, KeyMetaRight):
		return hotkey.ModCmd, true
	}
	return 0, false
}
