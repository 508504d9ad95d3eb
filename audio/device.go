package audio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrPickCancelled is returned when the user aborts the device picker.
var ErrPickCancelled = errors.New("device selection cancelled")

// PickDevice presents an interactive picker over the input devices and
// returns the chosen one. A single input device is returned without prompting.
func PickDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := InputDevices(ctx)
	if err != nil {
		return nil, err
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no input devices found", ErrNoDevice)
	}

	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("device picker needs a terminal on stdin")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}

	defer term.Restore(fd, oldState)

	cursor := 0
	renderList := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			btTag := ""
			if IsBluetooth(d.Name) {
				btTag = " \x1b[33m[⚠ narrowband]\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %d - %s%s\x1b[0m\r\n", d.Index, d.Name, btTag)
			} else {
				fmt.Printf("    %d - %s%s\r\n", d.Index, d.Name, btTag)
			}
		}
	}

	renderList()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				fmt.Print("\r\n")
				return &devices[cursor], nil
			case 3, 'q': // Ctrl+C
				fmt.Print("\r\n")
				return nil, ErrPickCancelled
			case 'j':
				if cursor < len(devices)-1 {
					cursor++
				}
			case 'k':
				if cursor > 0 {
					cursor--
				}
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A': // Up arrow
				if cursor > 0 {
					cursor--
				}
			case 'B': // Down arrow
				if cursor < len(devices)-1 {
					cursor++
				}
			}
		}

		lines := len(devices) + 2
		fmt.Printf("\x1b[%dA", lines)
		renderList()
	}
}
