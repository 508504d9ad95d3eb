//go:build !linux

package audio

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &CaptureError{Op: "open", Err: err}
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	result := make([]DeviceInfo, 0, len(devices))
	for i, d := range devices {
		result = append(result, DeviceInfo{
			Index: i,
			ID:    hex.EncodeToString(d.ID.Pointer()[:]),
			Name:  d.Name(),
			// Only capture devices are enumerated; capture is always mono.
			MaxInputChannels: 1,
		})
	}
	return result, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = config.SampleRate
	deviceConfig.PeriodSizeInFrames = config.ChunkFrames

	if device != nil {
		idBytes, err := hex.DecodeString(device.ID)
		if err != nil {
			return nil, &CaptureError{Op: "open", Err: fmt.Errorf("invalid device ID: %w", err)}
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	c := &malgoCapture{}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			if cb := c.callback.Load(); cb != nil {
				buf := make([]byte, len(data))
				copy(buf, data)
				(*cb)(buf, frameCount)
			}
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, &CaptureError{Op: "open", Err: err}
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device   *malgo.Device
	callback atomic.Pointer[DataCallback]
}

func (c *malgoCapture) Start() error {
	if err := c.device.Start(); err != nil {
		return &CaptureError{Op: "start", Err: err}
	}
	return nil
}

func (c *malgoCapture) Stop() {
	c.device.Stop()
}

func (c *malgoCapture) Close() {
	c.device.Uninit()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}
