//go:build cuda

package checks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"preventsleep/internal/config"
	"preventsleep/internal/logging"
)

// GPUChecker reports compute processes running on NVIDIA GPUs
type GPUChecker struct {
	nvml   NVMLInterface
	logger *logging.Logger

	procs     map[gpuProcess]bool
	queryFail bool
}

type gpuProcess struct {
	device int
	pid    uint32
}

func (p gpuProcess) String() string {
	return fmt.Sprintf("(gpu%d, %d)", p.device, p.pid)
}

// NewGPUChecker initializes NVML and returns a checker using it
func NewGPUChecker(n NVMLInterface, logger *logging.Logger) (*GPUChecker, error) {
	if ret := n.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("GPU: failed to initialize NVML: %s", nvml.ErrorString(ret))
	}
	return &GPUChecker{
		nvml:   n,
		logger: logger,
		procs:  map[gpuProcess]bool{},
	}, nil
}

func newGPUFromConfig(_ config.Config, logger *logging.Logger) (Checker, error) {
	return NewGPUChecker(RealNVML{}, logger)
}

// Name implements Checker
func (c *GPUChecker) Name() string {
	return "GPU"
}

// Close shuts NVML down
func (c *GPUChecker) Close() error {
	if ret := c.nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("GPU: failed to shut down NVML: %s", nvml.ErrorString(ret))
	}
	return nil
}

// Check implements Checker
func (c *GPUChecker) Check() string {
	count, ret := c.nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		c.logger.Log(levelFor(!c.queryFail), "gpu.check.unavailable", "No GPU activity - device count not readable", map[string]interface{}{
			"checker": c.Name(),
			"error":   nvml.ErrorString(ret),
		})
		c.queryFail = true
		c.procs = map[gpuProcess]bool{}
		return ""
	}
	c.queryFail = false

	current := map[gpuProcess]bool{}
	for i := 0; i < count; i++ {
		device, ret := c.nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			c.logger.Debug("gpu.check.device", "Cannot get device handle", map[string]interface{}{
				"checker": c.Name(),
				"device":  i,
				"error":   nvml.ErrorString(ret),
			})
			continue
		}

		infos, ret := device.GetComputeRunningProcesses()
		if ret != nvml.SUCCESS {
			c.logger.Debug("gpu.check.processes", "Cannot list compute processes", map[string]interface{}{
				"checker": c.Name(),
				"device":  i,
				"error":   nvml.ErrorString(ret),
			})
			continue
		}

		for _, info := range infos {
			p := gpuProcess{device: i, pid: info.Pid}
			current[p] = true
			c.logger.Log(levelFor(!c.procs[p]), "gpu.check.process", "Compute process - prevent sleep", map[string]interface{}{
				"checker": c.Name(),
				"device":  i,
				"pid":     info.Pid,
				"memory":  info.UsedGpuMemory,
			})
		}
	}

	for p := range c.procs {
		if !current[p] {
			c.logger.Info("gpu.check.finished", "Compute process has finished", map[string]interface{}{
				"checker": c.Name(),
				"device":  p.device,
				"pid":     p.pid,
			})
		}
	}

	hadProcs := len(c.procs) > 0
	c.procs = current

	if len(current) == 0 {
		c.logger.Log(levelFor(hadProcs), "gpu.check.none", "No compute processes", map[string]interface{}{
			"checker": c.Name(),
		})
		return ""
	}

	procs := make([]gpuProcess, 0, len(current))
	for p := range current {
		procs = append(procs, p)
	}
	sort.Slice(procs, func(i, j int) bool {
		if procs[i].device != procs[j].device {
			return procs[i].device < procs[j].device
		}
		return procs[i].pid < procs[j].pid
	})

	parts := make([]string, 0, len(procs))
	for _, p := range procs {
		parts = append(parts, p.String())
	}
	return fmt.Sprintf("%d GPU compute processes [%s]", len(procs), strings.Join(parts, " "))
}
