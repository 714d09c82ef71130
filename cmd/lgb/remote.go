package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/I3lackEye/linuxgamebench/internal/service/benchmark"
	apiclient "github.com/I3lackEye/linuxgamebench/pkg/api/client"
)

func newClient(cfg cliConfig) (*apiclient.Client, error) {
	return apiclient.New(cfg.APIBaseURL)
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	osName := fs.String("os", "", "Operating system (detected when empty)")
	kernel := fs.String("kernel", "", "Kernel version (detected when empty)")
	gpu := fs.String("gpu", "", "GPU model")
	gpuDriver := fs.String("gpu-driver", "", "GPU driver version (detected when empty)")
	cpu := fs.String("cpu", "", "CPU model (detected when empty)")
	ram := fs.Int("ram", 0, "Installed RAM in GB (detected when empty)")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := systemInfo{OS: *osName, Kernel: *kernel, GPU: *gpu, GPUDriver: *gpuDriver, CPU: *cpu, RAMGB: *ram}
	info := flags.merge(detectSystem(os.DirFS("/"))).merge(cfg.System)
	if strings.TrimSpace(info.GPU) == "" {
		return errors.New("--gpu is required")
	}
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	reg, err := client.RegisterSystem(ctx, info.toAPI())
	if err != nil {
		return err
	}
	cfg.Token = reg.Token
	cfg.SystemID = reg.System.ID
	cfg.Fingerprint = reg.System.Fingerprint
	cfg.System = info
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("system registered: %s (%s, %s)\n", reg.System.ID, reg.System.GPU, reg.System.CPU)
	return nil
}

func commandUpload(args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	game := fs.String("game", "", "Game name")
	steamAppID := fs.Int("steam-app-id", 0, "Steam app id")
	resolution := fs.String("resolution", "", "Resolution, e.g. 1920x1080 or FHD")
	label := fs.String("label", "", "Free-form run label such as a preset")
	encoding := fs.String("encoding", "deltas", "Capture encoding (deltas|timestamps)")
	column := fs.Int("column", 0, "Zero-based column holding frame times")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("exactly one capture file is required")
	}
	if strings.TrimSpace(*game) == "" {
		return errors.New("--game is required")
	}
	if strings.TrimSpace(*resolution) == "" {
		return errors.New("--resolution is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return errors.New("please register first using 'lgb register'")
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	current := detectSystem(os.DirFS("/")).merge(cfg.System)
	warnSystemChanged(ctx, client, cfg, current, os.Stderr)

	run, err := client.SubmitRun(ctx, cfg.Token, apiclient.Upload{
		Capture:    apiclient.Capture{Capture: string(data), Encoding: *encoding, Column: *column},
		Game:       *game,
		SteamAppID: *steamAppID,
		Resolution: *resolution,
		Label:      *label,
		RecordedAt: info.ModTime(),
	})
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return fmt.Errorf("%w (token expired or system unknown; run 'lgb register')", err)
		}
		return err
	}
	fmt.Printf("run stored: %s (%s, %s, run #%d)\n", run.ID, *game, run.Resolution, run.RunNumber)
	renderRecord(os.Stdout, run.Metrics, run.Targets)
	return nil
}

// warnSystemChanged compares the local hardware with the fingerprint the
// server holds for the registered system, falling back to the saved one when
// the server cannot be asked.
func warnSystemChanged(ctx context.Context, client *apiclient.Client, cfg cliConfig, current systemInfo, w io.Writer) {
	fingerprint := cfg.Fingerprint
	if cfg.SystemID != "" {
		system, err := client.GetSystem(ctx, cfg.SystemID)
		switch {
		case err == nil:
			fingerprint = system.Fingerprint
		case errors.Is(err, apiclient.ErrNotFound):
			fmt.Fprintln(w, "warning: the server no longer knows this system; run 'lgb register'")
			return
		}
	}
	if benchmark.Changed(fingerprint, current.toDomain()) {
		fmt.Fprintln(w, "warning: hardware changed since registration; run 'lgb register' to record the new system")
	}
}

func commandRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	gameID := fs.String("game-id", "", "Filter by game id")
	systemID := fs.String("system-id", "", "Filter by system id (use 'me' for this machine)")
	resolution := fs.String("resolution", "", "Filter by resolution")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *systemID == "me" {
		*systemID = cfg.SystemID
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	runs, err := client.ListRuns(ctx, apiclient.RunQuery{GameID: *gameID, SystemID: *systemID, Resolution: *resolution, Limit: *limit})
	if err != nil {
		return err
	}
	renderRuns(os.Stdout, runs)
	return nil
}

func commandGames(args []string) error {
	fs := flag.NewFlagSet("games", flag.ExitOnError)
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	games, err := client.ListGames(ctx)
	if err != nil {
		return err
	}
	for _, game := range games {
		fmt.Printf("%s\t%s\n", game.ID, game.Name)
	}
	return nil
}

func commandCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	gameID := fs.String("game-id", "", "Game id")
	resolution := fs.String("resolution", "", "Resolution")
	fs.Parse(args)

	if strings.TrimSpace(*gameID) == "" || strings.TrimSpace(*resolution) == "" {
		return errors.New("--game-id and --resolution are required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmp, err := client.Compare(ctx, *gameID, *resolution)
	if err != nil {
		return err
	}
	renderComparison(os.Stdout, cmp)
	return nil
}
