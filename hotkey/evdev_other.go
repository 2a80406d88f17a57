//go:build !linux

package hotkey

func newEvdev() (Backend, error) {
	return nil, ErrUnavailable
}
