//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"

	"github.com/gen2brain/malgo"
)

var playMu sync.Mutex

func play(samples []int16, rate int) error {
	if len(samples) == 0 {
		return nil
	}
	playMu.Lock()
	defer playMu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return err
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(rate)

	pos := 0
	done := make(chan struct{})
	var finished sync.Once
	data := func(out, _ []byte, frames uint32) {
		for i := 0; i < int(frames); i++ {
			var s int16
			if pos < len(samples) {
				s = samples[pos]
				pos++
			}
			binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
		}
		if pos >= len(samples) {
			finished.Do(func() { close(done) })
		}
	}
	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: data})
	if err != nil {
		return err
	}
	defer dev.Uninit()
	if err := dev.Start(); err != nil {
		return err
	}
	<-done
	return dev.Stop()
}
