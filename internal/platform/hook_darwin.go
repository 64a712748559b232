//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>

extern CGEventRef macroengineEventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static CFMachPortRef macroengineCreateEventTap() {
    CGEventMask mask = (1 << kCGEventKeyDown) | (1 << kCGEventKeyUp) | (1 << kCGEventFlagsChanged) |
        (1 << kCGEventLeftMouseDown) | (1 << kCGEventLeftMouseUp) |
        (1 << kCGEventRightMouseDown) | (1 << kCGEventRightMouseUp) |
        (1 << kCGEventOtherMouseDown) | (1 << kCGEventOtherMouseUp);
    CFMachPortRef tap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionDefault,
        mask,
        macroengineEventCallback,
        NULL
    );
    return tap;
}

static void macroengineRunEventTap(CFMachPortRef tap) {
    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
    CFRunLoopAddSource(CFRunLoopGetCurrent(), source, kCFRunLoopCommonModes);
    CGEventTapEnable(tap, true);
    CFRunLoopRun();
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/kidandcat-derived/macroengine/internal/keys"
)

// darwinKeyCodes maps macOS virtual keycodes to engine input keys.
var darwinKeyCodes = map[int64]keys.Input{
	57: keys.InputCapsLock,
	13: keys.InputW, 0: keys.InputA, 1: keys.InputS, 2: keys.InputD,
	12: keys.InputQ, 14: keys.InputE, 6: keys.InputZ, 7: keys.InputX,
	15: keys.InputR, 3: keys.InputF, 5: keys.InputG, 8: keys.InputC, 9: keys.InputV,
	48: keys.InputTab, 49: keys.InputSpace,
	59: keys.InputLeftControl, 56: keys.InputLeftShift, 58: keys.InputLeftAlt,
	50: keys.InputBacktick, 84: keys.InputNumpad2, 91: keys.InputNumpad8,
}

var (
	darwinEventChan chan RawEvent
	darwinMu        sync.Mutex
)

// DarwinHook implements Hook for macOS using a CGEventTap.
type DarwinHook struct {
	eventChan chan RawEvent
	running   bool
	mu        sync.Mutex
}

// NewHook builds the platform hook for the current OS.
func NewHook() Hook {
	return &DarwinHook{eventChan: make(chan RawEvent, 256)}
}

func (h *DarwinHook) Start() (<-chan RawEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return h.eventChan, nil
	}
	darwinMu.Lock()
	darwinEventChan = h.eventChan
	darwinMu.Unlock()
	h.running = true

	go func() {
		tap := C.macroengineCreateEventTap()
		if tap == C.CFMachPortRef(0) {
			fmt.Println("macroengine: failed to create event tap; grant Accessibility permissions")
			return
		}
		C.macroengineRunEventTap(tap)
	}()

	return h.eventChan, nil
}

func (h *DarwinHook) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	h.running = false
	close(h.eventChan)
	return nil
}

func deliverDarwin(input keys.Input, down bool) {
	darwinMu.Lock()
	ch := darwinEventChan
	darwinMu.Unlock()
	if ch == nil || input == keys.InputUnknown {
		return
	}
	select {
	case ch <- RawEvent{Input: input, Down: down, At: time.Now()}:
	default:
	}
}

//export macroengineEventCallback
func macroengineEventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		keycode := int64(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		if input, ok := darwinKeyCodes[keycode]; ok {
			deliverDarwin(input, eventType == C.kCGEventKeyDown)
		}
	case C.kCGEventFlagsChanged:
		keycode := int64(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		flags := uint64(C.CGEventGetFlags(event))
		switch keycode {
		case 59: // left control
			deliverDarwin(keys.InputLeftControl, flags&(1<<18) != 0)
		case 56: // left shift
			deliverDarwin(keys.InputLeftShift, flags&(1<<17) != 0)
		case 58: // left option/alt
			deliverDarwin(keys.InputLeftAlt, flags&(1<<19) != 0)
		case 57: // caps lock: momentary toggle, treat like a tap
			deliverDarwin(keys.InputCapsLock, true)
			deliverDarwin(keys.InputCapsLock, false)
		}
	case C.kCGEventLeftMouseDown, C.kCGEventLeftMouseUp:
		deliverDarwin(keys.InputLeftClick, eventType == C.kCGEventLeftMouseDown)
	case C.kCGEventRightMouseDown, C.kCGEventRightMouseUp:
		deliverDarwin(keys.InputRightClick, eventType == C.kCGEventRightMouseDown)
	case C.kCGEventOtherMouseDown, C.kCGEventOtherMouseUp:
		btn := int64(C.CGEventGetIntegerValueField(event, C.kCGMouseEventButtonNumber))
		var input keys.Input
		switch btn {
		case 2:
			input = keys.InputMiddleClick
		case 3:
			input = keys.InputMouse4
		case 4:
			input = keys.InputMouse5
		}
		deliverDarwin(input, eventType == C.kCGEventOtherMouseDown)
	}
	return event
}
