//go:build !linux

package output

import (
	"errors"
	"time"
)

var errNoUinput = errors.New("uinput is only available on linux")

func newUinput(time.Duration) (Simulator, error) { return nil, errNoUinput }

func VerifyUinput() (string, error) { return "", errNoUinput }
