package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"aetherfm/pkg/audio"
	"aetherfm/pkg/catalog"
	"aetherfm/pkg/clock"
	"aetherfm/pkg/config"
	"aetherfm/pkg/content"
	"aetherfm/pkg/db"
	"aetherfm/pkg/logging"
	"aetherfm/pkg/rotation"
	"aetherfm/pkg/station"
	"aetherfm/pkg/store"
	"aetherfm/pkg/version"
	"aetherfm/pkg/watcher"
)

var (
	configPath = flag.String("config", "configs/aetherfm.yaml", "Path to config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	dryRun     = flag.Bool("dry-run", false, "Print resolved configuration and exit")
	noWeather  = flag.Bool("no-weather", false, "Disable weather announcement windows")
	noShows    = flag.Bool("no-shows", false, "Disable show windows")
	rebuild    = flag.Bool("rebuild", false, "Rebuild the catalog from the music directory")
	debug      = flag.Bool("debug", false, "Raise log verbosity")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		data, _ := yaml.Marshal(cfg)
		fmt.Printf("# resolved configuration (%s)\n%s", *configPath, data)
		return
	}

	cleanupLogs, err := logging.Init(&cfg.Log.Server, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer cleanupLogs()

	slog.Info("AetherFM station starting", "version", version.Version)

	cat, rot, err := initLibrary(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Library startup failed: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, cat, rot); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: station failed: %v\n", err)
		os.Exit(2)
	}
}

// initLibrary loads the catalog and rotation state. A missing catalog file is
// built by scanning the music directory; a broken one is fatal unless
// --rebuild forces a rescan.
func initLibrary(cfg *config.Config) (*catalog.Catalog, *rotation.Engine, error) {
	var cat *catalog.Catalog

	_, statErr := os.Stat(cfg.Paths.Catalog)
	switch {
	case *rebuild || os.IsNotExist(statErr):
		cat = catalog.New()
		res, err := cat.ScanDirectory(cfg.Paths.MusicDir, catalog.FileReader{})
		if err != nil {
			return nil, nil, err
		}
		if len(res.Failed) > 0 {
			slog.Warn("some files could not be scanned", "failed", len(res.Failed))
		}
		if err := cat.Save(cfg.Paths.Catalog); err != nil {
			return nil, nil, err
		}
	default:
		var err error
		cat, err = catalog.Load(cfg.Paths.Catalog)
		if err != nil {
			return nil, nil, fmt.Errorf("%w (use --rebuild to rescan)", err)
		}
	}
	if cat.Len() == 0 {
		slog.Warn("catalog is empty; the station will idle until songs appear")
	}

	rot := rotation.NewEngine(cat, cfg.Rotation.CoreRatio, cfg.Rotation.GraduationThreshold, cfg.Rotation.AvoidRepeatWindow)
	if err := rot.LoadRecords(cfg.Paths.Rotation); err != nil {
		return nil, nil, err
	}
	for _, s := range cat.AllSongs() {
		rot.EnsureRecord(s.ID)
	}
	return cat, rot, nil
}

func run(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, rot *rotation.Engine) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cal := clock.New(cfg.Schedule)
	contentStore := content.NewStore(cfg.Paths.ContentRoot)
	player := audio.New()

	var stateStore store.Store
	if dbConn, err := db.Init(cfg.Paths.DB); err != nil {
		slog.Warn("state database unavailable, continuing without persistence", "error", err)
	} else {
		stateStore = store.NewSQLiteStore(dbConn)
		defer stateStore.Close()
	}

	ingress := station.NewIngress(cfg.Station.CommandBuffer)
	go readKeys(ctx, ingress)

	var musicChanges <-chan struct{}
	if w, err := watcher.NewService(cfg.Paths.MusicDir, 2*time.Second); err != nil {
		slog.Warn("music watcher unavailable", "error", err)
	} else {
		w.Start(ctx)
		musicChanges = w.Changes()
	}

	ctrl := station.New(station.Options{
		Config:       cfg,
		Calendar:     cal,
		Catalog:      cat,
		Rotation:     rot,
		Content:      contentStore,
		Player:       player,
		Ingress:      ingress,
		State:        stateStore,
		MusicChanges: musicChanges,
		NoWeather:    *noWeather,
		NoShows:      *noShows,
	})

	go renderStatus(ctx, ctrl)
	return ctrl.Run(ctx)
}

// readKeys forwards operator keypresses to the command ingress. Unknown keys
// (and the newline the terminal sends with them) are ignored.
func readKeys(ctx context.Context, ingress *station.Ingress) {
	reader := bufio.NewReader(os.Stdin)
	for {
		r, _, err := reader.ReadRune()
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if cmd, ok := station.FromKey(r); ok {
			ingress.Send(cmd)
		}
	}
}

// renderStatus prints a one-line status snapshot a few times a minute.
func renderStatus(ctx context.Context, ctrl *station.Controller) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := ctrl.Status()
			line := fmt.Sprintf("[%s] dj=%s now=%s next=%s played=%d errors=%d up=%s",
				snap.State, snap.Persona, orUnknown(snap.CurrentLabel), snap.NextLabel,
				snap.SongsPlayed, snap.Errors, snap.Uptime.Round(time.Second))
			if snap.Message != "" {
				line += " | " + snap.Message
			}
			fmt.Println(line)
		}
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
