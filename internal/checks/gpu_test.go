//go:build cuda

package checks

import (
	"testing"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNVML struct {
	initReturn  nvml.Return
	countReturn nvml.Return
	devices     []*mockDevice
	shutdown    bool
}

func (m *mockNVML) Init() nvml.Return { return m.initReturn }

func (m *mockNVML) Shutdown() nvml.Return {
	m.shutdown = true
	return nvml.SUCCESS
}

func (m *mockNVML) DeviceGetCount() (int, nvml.Return) {
	return len(m.devices), m.countReturn
}

func (m *mockNVML) DeviceGetHandleByIndex(index int) (DeviceInterface, nvml.Return) {
	if index < 0 || index >= len(m.devices) {
		return nil, nvml.ERROR_INVALID_ARGUMENT
	}
	return m.devices[index], nvml.SUCCESS
}

type mockDevice struct {
	pids []uint32
	ret  nvml.Return
}

func (d *mockDevice) GetComputeRunningProcesses() ([]nvml.ProcessInfo, nvml.Return) {
	infos := make([]nvml.ProcessInfo, 0, len(d.pids))
	for _, pid := range d.pids {
		infos = append(infos, nvml.ProcessInfo{Pid: pid, UsedGpuMemory: 1 << 20})
	}
	return infos, d.ret
}

func TestNewGPUChecker_InitFailure(t *testing.T) {
	logger, _ := newTestLogger(t)
	_, err := NewGPUChecker(&mockNVML{initReturn: nvml.ERROR_LIBRARY_NOT_FOUND}, logger)
	assert.Error(t, err)
}

func TestGPUChecker_Processes(t *testing.T) {
	dev0 := &mockDevice{ret: nvml.SUCCESS}
	dev1 := &mockDevice{pids: []uint32{4242}, ret: nvml.SUCCESS}
	m := &mockNVML{devices: []*mockDevice{dev0, dev1}}

	logger, buf := newTestLogger(t)
	c, err := NewGPUChecker(m, logger)
	require.NoError(t, err)
	assert.Equal(t, "GPU", c.Name())

	assert.Equal(t, "1 GPU compute processes [(gpu1, 4242)]", c.Check())

	dev0.pids = []uint32{900, 17}
	assert.Equal(t, "3 GPU compute processes [(gpu0, 17) (gpu0, 900) (gpu1, 4242)]", c.Check())

	dev0.pids = nil
	dev1.pids = nil
	assert.Equal(t, "", c.Check())
	assert.Equal(t, 3, countEvents(buf, "gpu.check.finished"))

	require.NoError(t, c.Close())
	assert.True(t, m.shutdown)
}

func TestGPUChecker_DeviceCountFailure(t *testing.T) {
	m := &mockNVML{countReturn: nvml.ERROR_GPU_IS_LOST}
	logger, buf := newTestLogger(t)
	c, err := NewGPUChecker(m, logger)
	require.NoError(t, err)

	assert.Equal(t, "", c.Check())
	assert.Equal(t, "", c.Check())
	assert.Equal(t, 1, countEvents(buf, "gpu.check.unavailable"))
}
