//go:build cuda

package checks

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// DeviceInterface is the part of an NVML device the GPU checker uses (for mocking)
type DeviceInterface interface {
	GetComputeRunningProcesses() ([]nvml.ProcessInfo, nvml.Return)
}

// NVMLInterface is the part of NVML the GPU checker uses (for mocking)
type NVMLInterface interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (DeviceInterface, nvml.Return)
}

type deviceWrapper struct {
	device nvml.Device
}

func (w deviceWrapper) GetComputeRunningProcesses() ([]nvml.ProcessInfo, nvml.Return) {
	return w.device.GetComputeRunningProcesses()
}

// RealNVML implements NVMLInterface using the NVML library
type RealNVML struct{}

// Init initializes NVML
func (RealNVML) Init() nvml.Return {
	return nvml.Init()
}

// Shutdown shuts down NVML
func (RealNVML) Shutdown() nvml.Return {
	return nvml.Shutdown()
}

// DeviceGetCount returns the number of GPU devices
func (RealNVML) DeviceGetCount() (int, nvml.Return) {
	return nvml.DeviceGetCount()
}

// DeviceGetHandleByIndex returns a handle to a GPU device
func (RealNVML) DeviceGetHandleByIndex(index int) (DeviceInterface, nvml.Return) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, ret
	}
	return deviceWrapper{device: device}, ret
}
