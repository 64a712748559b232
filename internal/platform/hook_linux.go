//go:build linux

package platform

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
)

// linuxKeyCodes maps evdev key codes to engine input keys.
var linuxKeyCodes = map[uint16]keys.Input{
	58: keys.InputCapsLock,
	17: keys.InputW, 30: keys.InputA, 31: keys.InputS, 32: keys.InputD,
	16: keys.InputQ, 18: keys.InputE, 44: keys.InputZ, 45: keys.InputX,
	19: keys.InputR, 33: keys.InputF, 34: keys.InputG, 46: keys.InputC, 47: keys.InputV,
	15: keys.InputTab, 57: keys.InputSpace,
	29: keys.InputLeftControl, 42: keys.InputLeftShift, 56: keys.InputLeftAlt,
	41: keys.InputBacktick, 80: keys.InputNumpad2, 72: keys.InputNumpad8,
	272: keys.InputLeftClick, 273: keys.InputRightClick, 274: keys.InputMiddleClick,
	275: keys.InputMouse4, 276: keys.InputMouse5,
}

const (
	evKey       = 1
	keyReleased = 0
	keyPressed  = 1
	keyRepeat   = 2
)

// inputEvent mirrors the kernel's struct input_event layout.
type inputEvent struct {
	Time  [16]byte
	Type  uint16
	Code  uint16
	Value int32
}

// LinuxHook implements Hook for Linux by reading raw evdev devices.
type LinuxHook struct {
	eventChan chan RawEvent
	device    *os.File
	mu        sync.Mutex
	running   bool
}

// NewHook builds the platform hook for the current OS.
func NewHook() Hook {
	return &LinuxHook{eventChan: make(chan RawEvent, 256)}
}

func (h *LinuxHook) Start() (<-chan RawEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return h.eventChan, nil
	}

	path, err := findKeyboardDevice()
	if err != nil {
		return nil, fmt.Errorf("platform: find keyboard device: %w", err)
	}
	dev, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("platform: open %s: %w (try running as root or joining the 'input' group)", path, err)
	}
	h.device = dev
	h.running = true

	go h.readLoop()
	return h.eventChan, nil
}

func (h *LinuxHook) readLoop() {
	defer h.device.Close()
	buf := make([]byte, 24)
	for {
		h.mu.Lock()
		running := h.running
		h.mu.Unlock()
		if !running {
			return
		}

		n, err := h.device.Read(buf)
		if err != nil || n != 24 {
			continue
		}
		ev := inputEvent{
			Type:  binary.LittleEndian.Uint16(buf[16:18]),
			Code:  binary.LittleEndian.Uint16(buf[18:20]),
			Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
		}
		if ev.Type != evKey {
			continue
		}
		input, ok := linuxKeyCodes[ev.Code]
		if !ok {
			continue
		}
		switch ev.Value {
		case keyPressed:
			h.send(RawEvent{Input: input, Down: true, At: time.Now()})
		case keyReleased:
			h.send(RawEvent{Input: input, Down: false, At: time.Now()})
		case keyRepeat:
			// Autoburst from the OS key-repeat timer; the gesture
			// machine treats a second key-down with no intervening
			// key-up as a no-op, so repeats are safe to forward too.
			h.send(RawEvent{Input: input, Down: true, At: time.Now()})
		}
	}
}

func (h *LinuxHook) send(ev RawEvent) {
	select {
	case h.eventChan <- ev:
	default:
	}
}

func (h *LinuxHook) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	h.running = false
	close(h.eventChan)
	return nil
}

// findKeyboardDevice locates a keyboard device under /dev/input,
// preferring the stable by-id symlinks and falling back to scanning
// /proc/bus/input/devices.
func findKeyboardDevice() (string, error) {
	byIDPath := "/dev/input/by-id"
	if entries, err := os.ReadDir(byIDPath); err == nil {
		for _, entry := range entries {
			name := strings.ToLower(entry.Name())
			if strings.Contains(name, "kbd") || strings.Contains(name, "keyboard") {
				return filepath.Join(byIDPath, entry.Name()), nil
			}
		}
	}

	devicesFile, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return "", err
	}
	defer devicesFile.Close()

	scanner := bufio.NewScanner(devicesFile)
	isKeyboard := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "N: Name="):
			lower := strings.ToLower(line)
			isKeyboard = strings.Contains(lower, "keyboard") || strings.Contains(lower, "kbd")
		case strings.HasPrefix(line, "H: Handlers=") && isKeyboard:
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					return "/dev/input/" + part, nil
				}
			}
		case line == "":
			isKeyboard = false
		}
	}

	return "/dev/input/event0", nil
}
