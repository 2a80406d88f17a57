package hotkey

import (
	"fmt"
	"slices"
	"strings"
)

// Group is a set of interchangeable keys. Pressing any member satisfies it.
type Group []KeyCode

// Combination is a parsed activation key: every group must be satisfied.
type Combination []Group

var modifierGroups = map[string]Group{
	"ctrl":    {KeyCtrlLeft, KeyCtrlRight},
	"control": {KeyCtrlLeft, KeyCtrlRight},
	"shift":   {KeyShiftLeft, KeyShiftRight},
	"alt":     {KeyAltLeft, KeyAltRight},
	"option":  {KeyAltLeft, KeyAltRight},
	"meta":    {KeyMetaLeft, KeyMetaRight},
	"super":   {KeyMetaLeft, KeyMetaRight},
	"cmd":     {KeyMetaLeft, KeyMetaRight},
	"win":     {KeyMetaLeft, KeyMetaRight},
}

// ParseCombination parses strings like "ctrl+alt+space". Names are case
// insensitive. Modifier names expand to their left and right keys.
func ParseCombination(s string) (Combination, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty key combination")
	}
	var combo Combination
	for _, part := range strings.Split(s, "+") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return nil, fmt.Errorf("key combination %q: empty key name", s)
		}
		var g Group
		if mg, ok := modifierGroups[name]; ok {
			g = slices.Clone(mg)
		} else if k, ok := LookupKey(name); ok {
			g = Group{k}
		} else {
			return nil, fmt.Errorf("key combination %q: unknown key %q", s, part)
		}
		if !slices.ContainsFunc(combo, func(e Group) bool { return slices.Equal(e, g) }) {
			combo = append(combo, g)
		}
	}
	return combo, nil
}

// String renders the combination back in config syntax.
func (c Combination) String() string {
	parts := make([]string, 0, len(c))
	for _, g := range c {
		parts = append(parts, groupName(g))
	}
	return strings.Join(parts, "+")
}

func groupName(g Group) string {
	if len(g) == 1 {
		return g[0].String()
	}
	for _, name := range []string{"ctrl", "shift", "alt", "meta"} {
		if slices.Equal(modifierGroups[name], g) {
			return name
		}
	}
	return g[0].String()
}

// Representative returns one key per group, the one a synthetic press uses.
func (c Combination) Representative() []KeyCode {
	keys := make([]KeyCode, len(c))
	for i, g := range c {
		keys[i] = g[0]
	}
	return keys
}

// Chord tracks which keys are down and whether a Combination is satisfied.
// It is not safe for concurrent use.
type Chord struct {
	combo   Combination
	pressed map[KeyCode]bool
}

func NewChord(c Combination) *Chord {
	return &Chord{combo: c, pressed: make(map[KeyCode]bool)}
}

// Update records a key transition and reports whether the chord is active
// afterwards.
func (c *Chord) Update(k KeyCode, down bool) bool {
	if down {
		c.pressed[k] = true
	} else {
		delete(c.pressed, k)
	}
	return c.Active()
}

func (c *Chord) Active() bool {
	if len(c.combo) == 0 {
		return false
	}
	for _, g := range c.combo {
		if !slices.ContainsFunc(g, func(k KeyCode) bool { return c.pressed[k] }) {
			return false
		}
	}
	return true
}

func (c *Chord) Combination() Combination { return c.combo }

// Reset forgets every pressed key, used when the input backend changes.
func (c *Chord) Reset() {
	clear(c.pressed)
}
