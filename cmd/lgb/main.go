package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultAPIBase = "http://localhost:4000"

type cliConfig struct {
	APIBaseURL  string     `json:"api_base_url"`
	Token       string     `json:"token,omitempty"`
	SystemID    string     `json:"system_id,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	System      systemInfo `json:"system"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "analyze":
		err = commandAnalyze(args, os.Stdout)
	case "register":
		err = commandRegister(args)
	case "upload":
		err = commandUpload(args)
	case "runs":
		err = commandRuns(args)
	case "games":
		err = commandGames(args)
	case "compare":
		err = commandCompare(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	return readConfig(path)
}

func readConfig(path string) (cliConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return writeConfig(path, cfg)
}

func writeConfig(path string, cfg cliConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv("LGB_CONFIG")); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "lgb", "config.json"), nil
}

func printUsage() {
	fmt.Printf("lgb %s\n\n", buildVersion)
	fmt.Print(`Usage:
	lgb analyze [--encoding deltas|timestamps] [--column N] [--config profile.yaml] [--format auto|table|json] [--aggregate] file...
	lgb register --gpu <name> [--gpu-driver version] [--cpu name] [--os name] [--ram GB] [--api http://localhost:4000]
	lgb upload --game <name> --resolution 1920x1080 [--label text] [--steam-app-id N] [--encoding deltas|timestamps] file
	lgb runs [--game-id id] [--system-id id] [--resolution res] [--limit N]
	lgb games
	lgb compare --game-id <id> --resolution <res>
	lgb version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
