package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	apiclient "github.com/I3lackEye/linuxgamebench/pkg/api/client"
)

func TestDetectSystemFromProcfs(t *testing.T) {
	root := fstest.MapFS{
		"etc/os-release":              {Data: []byte("NAME=\"Arch Linux\"\nPRETTY_NAME=\"Arch Linux\"\nID=arch\n")},
		"proc/sys/kernel/osrelease":   {Data: []byte("6.9.7-arch1-1\n")},
		"proc/cpuinfo":                {Data: []byte("processor\t: 0\nvendor_id\t: AuthenticAMD\nmodel name\t: AMD Ryzen 7 7800X3D 8-Core Processor\n")},
		"proc/meminfo":                {Data: []byte("MemTotal:       32768000 kB\nMemFree:         1000 kB\n")},
		"sys/module/amdgpu/initstate": {Data: []byte("live\n")},
	}
	info := detectSystem(root)
	if info.OS != "Arch Linux" || info.Kernel != "6.9.7-arch1-1" {
		t.Fatalf("unexpected os/kernel %+v", info)
	}
	if info.CPU != "AMD Ryzen 7 7800X3D 8-Core Processor" {
		t.Fatalf("unexpected cpu %q", info.CPU)
	}
	if info.RAMGB != 31 {
		t.Fatalf("expected 31 GB, got %d", info.RAMGB)
	}
	if info.GPUDriver != "amdgpu" {
		t.Fatalf("expected amdgpu driver, got %q", info.GPUDriver)
	}
	if info.GPU != "" {
		t.Fatalf("expected gpu left for flags, got %q", info.GPU)
	}
}

func TestParseOSReleaseFallsBackToName(t *testing.T) {
	got := parseOSRelease([]byte("NAME=Fedora Linux\nVERSION_ID=40\n"))
	if got != "Fedora Linux 40" {
		t.Fatalf("unexpected os name %q", got)
	}
}

func TestSystemInfoMergePrefersReceiver(t *testing.T) {
	flags := systemInfo{GPU: "AMD Radeon RX 7800 XT"}
	merged := flags.merge(systemInfo{GPU: "old", CPU: "Intel Core i5-12400F", RAMGB: 16})
	if merged.GPU != "AMD Radeon RX 7800 XT" || merged.CPU != "Intel Core i5-12400F" || merged.RAMGB != 16 {
		t.Fatalf("unexpected merge %+v", merged)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lgb", "config.json")
	cfg, err := readConfig(path)
	if err != nil {
		t.Fatalf("read missing config: %v", err)
	}
	if cfg.APIBaseURL != defaultAPIBase {
		t.Fatalf("expected default api base, got %q", cfg.APIBaseURL)
	}
	cfg.Token = "tok"
	cfg.SystemID = "sys-1"
	cfg.System = systemInfo{GPU: "Intel Arc B580", CPU: "Intel Core Ultra 7 265K"}
	if err := writeConfig(path, cfg); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loaded, err := readConfig(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if loaded.Token != "tok" || loaded.System.GPU != "Intel Arc B580" {
		t.Fatalf("unexpected config %+v", loaded)
	}
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", stat.Mode().Perm())
	}
}

func TestCommandAnalyzeWritesJSONForPipes(t *testing.T) {
	dir := t.TempDir()
	smooth := filepath.Join(dir, "smooth.csv")
	var b strings.Builder
	b.WriteString("frametime_ms\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "%d\n", 10)
	}
	if err := os.WriteFile(smooth, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write capture: %v", err)
	}
	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, []byte("nothing here\n"), 0o600); err != nil {
		t.Fatalf("write capture: %v", err)
	}

	var out bytes.Buffer
	err := commandAnalyze([]string{"--aggregate", smooth, empty}, &out)
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("expected one failure reported, got %v", err)
	}
	var report struct {
		Results []struct {
			File    string         `json:"file"`
			Metrics map[string]any `json:"metrics"`
			Error   string         `json:"error"`
		} `json:"results"`
		Aggregate map[string]any `json:"aggregate"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected two results, got %d", len(report.Results))
	}
	if report.Results[0].Metrics["average_fps"] != float64(100) {
		t.Fatalf("unexpected metrics %v", report.Results[0].Metrics)
	}
	if report.Results[0].Metrics["discarded"] != float64(1) {
		t.Fatalf("expected header line discarded, got %v", report.Results[0].Metrics["discarded"])
	}
	if report.Results[1].Error == "" {
		t.Fatalf("expected error for empty capture")
	}
	if report.Aggregate == nil || report.Aggregate["runs"] != float64(1) {
		t.Fatalf("unexpected aggregate %v", report.Aggregate)
	}
}

func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer
	if got := resolveFormat("auto", &buf); got != "json" {
		t.Fatalf("expected json for non-terminal writer, got %q", got)
	}
	if got := resolveFormat("TABLE", &buf); got != "table" {
		t.Fatalf("expected table override, got %q", got)
	}
}

func TestWarnSystemChangedUsesServerFingerprint(t *testing.T) {
	current := systemInfo{OS: "Arch Linux", GPU: "AMD Radeon RX 7900 XTX", CPU: "AMD Ryzen 7 7800X3D"}
	serverFingerprint := current.toDomain().Normalize().Fingerprint()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/systems/sys-1":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id":"sys-1","fingerprint":%q}`, serverFingerprint)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"not found"}`)
		}
	}))
	defer srv.Close()
	client, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	cases := []struct {
		name string
		cfg  cliConfig
		want string
	}{
		{"server matches despite stale saved fingerprint", cliConfig{SystemID: "sys-1", Fingerprint: "stale"}, ""},
		{"unknown system", cliConfig{SystemID: "sys-2", Fingerprint: serverFingerprint}, "no longer knows"},
		{"saved fingerprint without system id", cliConfig{Fingerprint: "stale"}, "hardware changed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			warnSystemChanged(context.Background(), client, tc.cfg, current, &out)
			if tc.want == "" && out.Len() != 0 {
				t.Fatalf("expected no warning, got %q", out.String())
			}
			if tc.want != "" && !strings.Contains(out.String(), tc.want) {
				t.Fatalf("expected warning containing %q, got %q", tc.want, out.String())
			}
		})
	}
}
