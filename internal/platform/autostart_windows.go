//go:build windows

package platform

import (
	"os"
	"strings"
	"syscall"
	"unsafe"
)

var (
	advapi32            = syscall.NewLazyDLL("advapi32.dll")
	procRegOpenKeyEx    = advapi32.NewProc("RegOpenKeyExW")
	procRegCloseKey     = advapi32.NewProc("RegCloseKey")
	procRegSetValueEx   = advapi32.NewProc("RegSetValueExW")
	procRegDeleteValue  = advapi32.NewProc("RegDeleteValueW")
	procRegQueryValueEx = advapi32.NewProc("RegQueryValueExW")
)

const (
	hkeyCurrentUser = 0x80000001
	keyRead         = 0x20019
	keyWrite        = 0x20006
	regSZ           = 1
)

// WindowsAutostart implements Autostart for Windows via the per-user
// Run registry key.
type WindowsAutostart struct {
	spec AutostartSpec
}

// NewAutostart builds the autostart handler for the current OS,
// embedding spec's identity into whatever it writes.
func NewAutostart(spec AutostartSpec) Autostart {
	return &WindowsAutostart{spec: spec}
}

func (a *WindowsAutostart) registryPath() string {
	return `Software\Microsoft\Windows\CurrentVersion\Run`
}

func (a *WindowsAutostart) IsEnabled() bool {
	keyPath, _ := syscall.UTF16PtrFromString(a.registryPath())
	valueName, _ := syscall.UTF16PtrFromString(a.spec.Name)

	var hKey uintptr
	ret, _, _ := procRegOpenKeyEx.Call(
		hkeyCurrentUser,
		uintptr(unsafe.Pointer(keyPath)),
		0,
		keyRead,
		uintptr(unsafe.Pointer(&hKey)),
	)
	if ret != 0 {
		return false
	}
	defer procRegCloseKey.Call(hKey)

	ret, _, _ = procRegQueryValueEx.Call(
		hKey,
		uintptr(unsafe.Pointer(valueName)),
		0, 0, 0, 0,
	)
	return ret == 0
}

func (a *WindowsAutostart) Enable() error {
	keyPath, _ := syscall.UTF16PtrFromString(a.registryPath())
	valueName, _ := syscall.UTF16PtrFromString(a.spec.Name)

	exe, _ := os.Executable()
	if len(a.spec.Args) > 0 {
		exe = exe + " " + strings.Join(a.spec.Args, " ")
	}
	exePath, _ := syscall.UTF16FromString(exe)

	var hKey uintptr
	ret, _, _ := procRegOpenKeyEx.Call(
		hkeyCurrentUser,
		uintptr(unsafe.Pointer(keyPath)),
		0,
		keyWrite,
		uintptr(unsafe.Pointer(&hKey)),
	)
	if ret != 0 {
		return syscall.Errno(ret)
	}
	defer procRegCloseKey.Call(hKey)

	ret, _, _ = procRegSetValueEx.Call(
		hKey,
		uintptr(unsafe.Pointer(valueName)),
		0,
		regSZ,
		uintptr(unsafe.Pointer(&exePath[0])),
		uintptr(len(exePath)*2),
	)
	if ret != 0 {
		return syscall.Errno(ret)
	}
	return nil
}

func (a *WindowsAutostart) Disable() error {
	keyPath, _ := syscall.UTF16PtrFromString(a.registryPath())
	valueName, _ := syscall.UTF16PtrFromString(a.spec.Name)

	var hKey uintptr
	ret, _, _ := procRegOpenKeyEx.Call(
		hkeyCurrentUser,
		uintptr(unsafe.Pointer(keyPath)),
		0,
		keyWrite,
		uintptr(unsafe.Pointer(&hKey)),
	)
	if ret != 0 {
		return syscall.Errno(ret)
	}
	defer procRegCloseKey.Call(hKey)

	ret, _, _ = procRegDeleteValue.Call(
		hKey,
		uintptr(unsafe.Pointer(valueName)),
	)
	if ret != 0 {
		return syscall.Errno(ret)
	}
	return nil
}
