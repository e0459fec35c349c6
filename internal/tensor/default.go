package tensor

import (
	"sync"

	"k8s.io/klog/v2"
)

var defaultDevice struct {
	mu  sync.RWMutex
	dev Device
}

// SetDefaultDevice registers dev as the process-wide default device used by
// entry points that receive a nil device. Intended to be called once at
// startup; the core itself never reassigns it.
func SetDefaultDevice(dev Device) {
	defaultDevice.mu.Lock()
	defer defaultDevice.mu.Unlock()
	if defaultDevice.dev != nil && defaultDevice.dev != dev {
		klog.V(1).InfoS("replacing default device", "old", defaultDevice.dev.Name(), "new", nameOf(dev))
	}
	defaultDevice.dev = dev
}

// DefaultDevice returns the registered default device, or an error if none
// was ever set.
func DefaultDevice() (Device, error) {
	defaultDevice.mu.RLock()
	defer defaultDevice.mu.RUnlock()
	if defaultDevice.dev == nil {
		return nil, invalidf("default device is not set")
	}
	return defaultDevice.dev, nil
}

// ClearDefaultDevice unregisters the default device. Call it before closing
// the device that was registered.
func ClearDefaultDevice() {
	defaultDevice.mu.Lock()
	defaultDevice.dev = nil
	defaultDevice.mu.Unlock()
}

// resolve returns dev, or the default device when dev is nil.
func resolve(dev Device) (Device, error) {
	if dev != nil {
		return dev, nil
	}
	return DefaultDevice()
}

func nameOf(dev Device) string {
	if dev == nil {
		return "<nil>"
	}
	return dev.Name()
}
