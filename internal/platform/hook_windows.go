//go:build windows

package platform

import (
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/kidandcat-derived/macroengine/internal/keys"
)

var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
)

const (
	whKeyboardLL = 13
	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105
)

// windowsKeyCodes maps Windows virtual-key codes to engine input keys.
var windowsKeyCodes = map[uint32]keys.Input{
	0x14: keys.InputCapsLock,
	0x57: keys.InputW, 0x41: keys.InputA, 0x53: keys.InputS, 0x44: keys.InputD,
	0x51: keys.InputQ, 0x45: keys.InputE, 0x5A: keys.InputZ, 0x58: keys.InputX,
	0x52: keys.InputR, 0x46: keys.InputF, 0x47: keys.InputG, 0x43: keys.InputC, 0x56: keys.InputV,
	0x09: keys.InputTab, 0x20: keys.InputSpace,
	0xA2: keys.InputLeftControl, 0xA0: keys.InputLeftShift, 0xA4: keys.InputLeftAlt,
	0xC0: keys.InputBacktick, 0x62: keys.InputNumpad2, 0x68: keys.InputNumpad8,
	0x01: keys.InputLeftClick, 0x02: keys.InputRightClick, 0x04: keys.InputMiddleClick,
	0x05: keys.InputMouse4, 0x06: keys.InputMouse5,
}

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

var (
	windowsEventChan chan RawEvent
	windowsHookMu     sync.Mutex
	windowsHookHandle uintptr
)

// WindowsHook implements Hook for Windows using a low-level keyboard
// hook (WH_KEYBOARD_LL). Mouse-button input keys are not delivered by
// this hook and require WH_MOUSE_LL wiring left for a future pass.
type WindowsHook struct {
	eventChan chan RawEvent
	mu        sync.Mutex
	running   bool
}

// NewHook builds the platform hook for the current OS.
func NewHook() Hook {
	return &WindowsHook{eventChan: make(chan RawEvent, 256)}
}

func (h *WindowsHook) Start() (<-chan RawEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return h.eventChan, nil
	}
	windowsHookMu.Lock()
	windowsEventChan = h.eventChan
	windowsHookMu.Unlock()
	h.running = true

	go func() {
		hookProc := syscall.NewCallback(keyboardProc)
		handle, _, _ := procSetWindowsHookEx.Call(whKeyboardLL, hookProc, 0, 0)
		windowsHookMu.Lock()
		windowsHookHandle = handle
		windowsHookMu.Unlock()

		var m msg
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if ret == 0 {
				return
			}
		}
	}()

	return h.eventChan, nil
}

func (h *WindowsHook) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	windowsHookMu.Lock()
	if windowsHookHandle != 0 {
		procUnhookWindowsHookEx.Call(windowsHookHandle)
		windowsHookHandle = 0
	}
	windowsHookMu.Unlock()
	h.running = false
	close(h.eventChan)
	return nil
}

func keyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 {
		kb := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		if input, ok := windowsKeyCodes[kb.VkCode]; ok {
			windowsHookMu.Lock()
			ch := windowsEventChan
			windowsHookMu.Unlock()

			switch wParam {
			case wmKeyDown, wmSysKeyDown:
				if ch != nil {
					select {
					case ch <- RawEvent{Input: input, Down: true, At: time.Now()}:
					default:
					}
				}
			case wmKeyUp, wmSysKeyUp:
				if ch != nil {
					select {
					case ch <- RawEvent{Input: input, Down: false, At: time.Now()}:
					default:
					}
				}
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}
