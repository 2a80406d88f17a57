//go:build !darwin && !windows

package hotkey

func newXHotkey() (Backend, error) {
	return nil, ErrUnavailable
}
