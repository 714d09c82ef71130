package main

import (
	"bufio"
	"bytes"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	apiclient "github.com/I3lackEye/linuxgamebench/pkg/api/client"
)

type systemInfo struct {
	OS        string `json:"os,omitempty"`
	Kernel    string `json:"kernel,omitempty"`
	GPU       string `json:"gpu,omitempty"`
	GPUDriver string `json:"gpu_driver,omitempty"`
	CPU       string `json:"cpu,omitempty"`
	RAMGB     int    `json:"ram_gb,omitempty"`
}

func (s systemInfo) toDomain() domain.SystemInfo {
	return domain.SystemInfo{OS: s.OS, Kernel: s.Kernel, GPU: s.GPU, GPUDriver: s.GPUDriver, CPU: s.CPU, RAMGB: s.RAMGB}
}

func (s systemInfo) toAPI() apiclient.SystemInfo {
	return apiclient.SystemInfo{OS: s.OS, Kernel: s.Kernel, GPU: s.GPU, GPUDriver: s.GPUDriver, CPU: s.CPU, RAMGB: s.RAMGB}
}

// merge fills empty fields of s from fallback.
func (s systemInfo) merge(fallback systemInfo) systemInfo {
	if s.OS == "" {
		s.OS = fallback.OS
	}
	if s.Kernel == "" {
		s.Kernel = fallback.Kernel
	}
	if s.GPU == "" {
		s.GPU = fallback.GPU
	}
	if s.GPUDriver == "" {
		s.GPUDriver = fallback.GPUDriver
	}
	if s.CPU == "" {
		s.CPU = fallback.CPU
	}
	if s.RAMGB == 0 {
		s.RAMGB = fallback.RAMGB
	}
	return s
}

// detectSystem reads what Linux exposes under /etc, /proc and /sys. The GPU
// model has no stable procfs source and must come from flags.
func detectSystem(root fs.FS) systemInfo {
	var info systemInfo
	if data, err := fs.ReadFile(root, "etc/os-release"); err == nil {
		info.OS = parseOSRelease(data)
	}
	if data, err := fs.ReadFile(root, "proc/sys/kernel/osrelease"); err == nil {
		info.Kernel = strings.TrimSpace(string(data))
	}
	if data, err := fs.ReadFile(root, "proc/cpuinfo"); err == nil {
		info.CPU = procField(data, "model name")
	}
	if data, err := fs.ReadFile(root, "proc/meminfo"); err == nil {
		info.RAMGB = parseMemTotalGB(data)
	}
	info.GPUDriver = detectGPUDriver(root)
	return info
}

func parseOSRelease(data []byte) string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		}
		values[key] = strings.Trim(value, "'")
	}
	if name := values["PRETTY_NAME"]; name != "" {
		return name
	}
	return strings.TrimSpace(values["NAME"] + " " + values["VERSION_ID"])
}

func procField(data []byte, field string) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if ok && strings.TrimSpace(key) == field {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func parseMemTotalGB(data []byte) int {
	fields := strings.Fields(procField(data, "MemTotal"))
	if len(fields) == 0 {
		return 0
	}
	kb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return int(math.Round(kb / (1024 * 1024)))
}

var gpuDriverModules = []string{"nvidia", "amdgpu", "i915", "xe", "nouveau", "radeon"}

func detectGPUDriver(root fs.FS) string {
	for _, module := range gpuDriverModules {
		if _, err := fs.Stat(root, "sys/module/"+module); err != nil {
			continue
		}
		if data, err := fs.ReadFile(root, "sys/module/"+module+"/version"); err == nil {
			return module + " " + strings.TrimSpace(string(data))
		}
		return module
	}
	return ""
}
