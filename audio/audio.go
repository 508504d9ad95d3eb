package audio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapture marks every failure of the capture device: opening,
	// starting, or a stalled or closed stream during a read.
	ErrCapture = errors.New("audio capture failed")

	// ErrOverflow is returned by a ChunkReader in strict mode when samples
	// were dropped because the consumer fell behind.
	ErrOverflow = errors.New("audio input overflowed")

	// ErrNoDevice is returned when a device index does not name an input device.
	ErrNoDevice = errors.New("no such input device")
)

// CaptureError reports the operation that failed. It matches ErrCapture
// under errors.Is.
type CaptureError struct {
	Op  string // "open", "start" or "read"
	Err error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return "audio " + e.Op + " failed"
	}
	return fmt.Sprintf("audio %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error        { return e.Err }
func (e *CaptureError) Is(target error) bool { return target == ErrCapture }

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a Bluetooth headset.
// Those usually drop to a narrowband codec while the mic is open.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives mono little-endian PCM16 frames.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate  uint32
	Channels    uint32
	ChunkFrames uint32 // preferred callback size; backends treat it as a hint
}

type DeviceInfo struct {
	Index            int    // position in the host's device list
	ID               string // opaque platform-specific identifier
	Name             string
	MaxInputChannels int
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// InputDevices lists the devices that can record at least one channel.
func InputDevices(ctx Context) ([]DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, &CaptureError{Op: "open", Err: err}
	}
	var inputs []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}

// DeviceByIndex looks a device up by its host index. Devices without input
// channels are rejected with ErrNoDevice.
func DeviceByIndex(ctx Context, index int) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, &CaptureError{Op: "open", Err: err}
	}
	for i := range devices {
		if devices[i].Index != index {
			continue
		}
		if devices[i].MaxInputChannels <= 0 {
			return nil, fmt.Errorf("%w: device %d (%s) has no input channels", ErrNoDevice, index, devices[i].Name)
		}
		return &devices[i], nil
	}
	return nil, fmt.Errorf("%w: index %d", ErrNoDevice, index)
}
