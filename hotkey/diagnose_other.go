//go:build !linux && !darwin && !windows

package hotkey

import "errors"

func Diagnose() (string, error) {
	return "", errors.New("no global hotkey support on this platform; use input_backend: stdin")
}
