package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aetherfm/pkg/cache"
	"aetherfm/pkg/catalog"
	"aetherfm/pkg/clock"
	"aetherfm/pkg/config"
	"aetherfm/pkg/content"
	"aetherfm/pkg/db"
	"aetherfm/pkg/gate"
	"aetherfm/pkg/llm"
	"aetherfm/pkg/llm/gemini"
	"aetherfm/pkg/logging"
	"aetherfm/pkg/model"
	"aetherfm/pkg/pipeline"
	"aetherfm/pkg/probe"
	"aetherfm/pkg/prompt"
	"aetherfm/pkg/request"
	"aetherfm/pkg/rotation"
	"aetherfm/pkg/tts"
	"aetherfm/pkg/tts/edge"
	"aetherfm/pkg/version"
	"aetherfm/pkg/weather"
)

type cliArgs struct {
	configPath string
	types      []model.ContentType
	persona    string
	limit      int
	random     bool
	stage      string
	resume     bool
	dryRun     bool
	testMode   bool
	verbose    bool
}

func main() {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(1)
	}
	_ = godotenv.Load()

	cfg, err := config.Load(args.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	personas, err := resolvePersonas(cfg, args.persona)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(1)
	}

	cleanupLogs, err := logging.Init(&cfg.Log.Pipeline, args.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer cleanupLogs()

	slog.Info("AetherFM pipeline starting", "version", version.Version,
		"types", args.types, "personas", personas, "stage", args.stage, "test", args.testMode)

	if err := run(context.Background(), cfg, args, personas); err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Pipeline run failed: %v\n", err)
		os.Exit(2)
	}
}

func parseArgs(argv []string) (*cliArgs, error) {
	fs := flag.NewFlagSet("aetherfm-pipeline", flag.ContinueOnError)
	args := &cliArgs{}

	fs.StringVar(&args.configPath, "config", "configs/aetherfm.yaml", "Path to config file")
	intros := fs.Bool("intros", false, "Generate song intros")
	outros := fs.Bool("outros", false, "Generate song outros")
	times := fs.Bool("time", false, "Generate time announcements")
	weatherFlag := fs.Bool("weather", false, "Generate weather announcements")
	shows := fs.Bool("shows", false, "Generate show intros and outros")
	handoffs := fs.Bool("handoffs", false, "Generate persona handoffs")
	allContent := fs.Bool("all-content", false, "Generate every content type")
	fs.StringVar(&args.persona, "persona", "all", "Persona id, or all")
	fs.IntVar(&args.limit, "limit", 0, "Cap on song-like targets (0 = unlimited)")
	fs.BoolVar(&args.random, "random", false, "Shuffle song-like targets within the capped set")
	fs.StringVar(&args.stage, "stage", "all", "Stage filter: generate|audit|synthesize|all")
	skipAudio := fs.Bool("skip-audio", false, "Run generate and audit only")
	fs.BoolVar(&args.resume, "resume", false, "Continue from checkpoint")
	fs.BoolVar(&args.dryRun, "dry-run", false, "Enumerate targets without calling any backend")
	fs.BoolVar(&args.testMode, "test", false, "Use the deterministic fake auditor and fake TTS")
	fs.BoolVar(&args.verbose, "verbose", false, "Raise log verbosity")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	if *allContent {
		args.types = model.AllContentTypes
	} else {
		if *intros {
			args.types = append(args.types, model.TypeSongIntro)
		}
		if *outros {
			args.types = append(args.types, model.TypeSongOutro)
		}
		if *times {
			args.types = append(args.types, model.TypeTime)
		}
		if *weatherFlag {
			args.types = append(args.types, model.TypeWeather)
		}
		if *shows {
			args.types = append(args.types, model.TypeShowIntro, model.TypeShowOutro)
		}
		if *handoffs {
			args.types = append(args.types, model.TypeHandoff)
		}
	}
	if len(args.types) == 0 {
		return nil, errors.New("no content selected; pass --all-content or one of --intros --outros --time --weather --shows --handoffs")
	}

	switch args.stage {
	case "all", pipeline.StageGenerate, pipeline.StageAudit, pipeline.StageSynthesize:
	default:
		return nil, fmt.Errorf("unknown stage %q", args.stage)
	}
	if *skipAudio {
		if args.stage == pipeline.StageSynthesize {
			return nil, errors.New("--skip-audio conflicts with --stage synthesize")
		}
		args.stage = "generate,audit"
	}
	if args.limit < 0 {
		return nil, errors.New("--limit must be nonnegative")
	}
	return args, nil
}

func resolvePersonas(cfg *config.Config, arg string) ([]model.PersonaID, error) {
	if arg == "all" || arg == "" {
		return cfg.PersonaIDs(), nil
	}
	id := model.PersonaID(arg)
	if cfg.Persona(id) == nil {
		return nil, fmt.Errorf("unknown persona %q", arg)
	}
	return []model.PersonaID{id}, nil
}

func run(ctx context.Context, cfg *config.Config, args *cliArgs, personas []model.PersonaID) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.Paths.Catalog)
	if err != nil {
		return fmt.Errorf("catalog unavailable, run the station with --rebuild first: %w", err)
	}
	rot := rotation.NewEngine(cat, cfg.Rotation.CoreRatio, cfg.Rotation.GraduationThreshold, cfg.Rotation.AvoidRepeatWindow)
	if err := rot.LoadRecords(cfg.Paths.Rotation); err != nil {
		return err
	}
	cal := clock.New(cfg.Schedule)

	seed := time.Now().UnixNano()
	if args.testMode {
		seed = 1
	}
	batch := pipeline.Batch{
		Types:    args.types,
		Personas: personas,
		Limit:    args.limit,
		Random:   args.random,
		Seed:     seed,
		Stage:    stageFilter(args.stage),
		TestMode: args.testMode,
		DryRun:   args.dryRun,
		Resume:   args.resume,
		Ordering: cfg.Pipeline.Ordering,
	}
	keys := pipeline.EnumerateTargets(batch, cat, rot, cal)

	if args.dryRun {
		for _, k := range keys {
			fmt.Println(k.String())
		}
		fmt.Printf("%d targets\n", len(keys))
		return nil
	}

	cp, err := openCheckpoint(cfg.Paths.Checkpoint, batch)
	if err != nil {
		return err
	}

	writer, auditor, synth, health, err := buildClients(cfg, args.testMode)
	if err != nil {
		return err
	}
	if health != nil {
		results := probe.Run(ctx, []probe.Probe{
			{Name: "Writer/Auditor", Check: health, Critical: true},
		}, 10*time.Second)
		if err := probe.Analyze(results); err != nil {
			return fmt.Errorf("startup checks failed: %w", err)
		}
	}

	promptMgr, err := prompt.NewManager(cfg.Paths.Prompts)
	if err != nil {
		return err
	}
	assembler := prompt.NewAssembler(promptMgr, cfg, cat)

	orch := pipeline.New(pipeline.Options{
		Store:       content.NewStore(cfg.Paths.ContentRoot),
		Gate:        gate.New(nil),
		Writer:      writer,
		Auditor:     auditor,
		Synth:       synth,
		Assembler:   assembler,
		Personas:    cfg,
		Sink:        &consoleSink{verbose: args.verbose},
		RegenCap:    cfg.Pipeline.RegenCap,
		RetryCap:    cfg.Pipeline.RetryCap,
		WeatherText: weatherText(ctx, cfg, args),
	}, cp)

	summary, runErr := orch.Run(ctx, batch, keys)
	fmt.Print(summary.Render())
	if runErr != nil {
		return runErr
	}
	slog.Info("pipeline run complete", "failures", summary.FailureCount())
	return nil
}

func stageFilter(s string) string {
	if s == "all" {
		return ""
	}
	return s
}

// openCheckpoint loads the existing checkpoint on --resume, requiring the
// same configuration the original run recorded; otherwise it starts fresh.
func openCheckpoint(path string, batch pipeline.Batch) (*pipeline.Checkpoint, error) {
	if batch.Resume {
		cp, err := pipeline.LoadCheckpoint(path)
		if err != nil {
			return nil, fmt.Errorf("cannot resume: %w", err)
		}
		if !cp.Matches(batch.Snapshot()) {
			return nil, errors.New("cannot resume: checkpoint was recorded with a different configuration")
		}
		slog.Info("resuming run", "run_id", cp.RunID)
		return cp, nil
	}
	return pipeline.NewCheckpoint(path, batch.Snapshot()), nil
}

// buildClients wires the writer, auditor and TTS backends. A backend that
// cannot be constructed is a configuration error and fails the run; the fakes
// only serve --test and an explicit "fake" provider. health is non-nil when a
// startup probe makes sense for the chosen backends.
func buildClients(cfg *config.Config, testMode bool) (llm.WriterClient, llm.AuditorClient, tts.Synthesizer, probe.CheckFunc, error) {
	if testMode {
		return llm.FakeWriter{}, llm.FakeAuditor{Threshold: cfg.Auditor.PassThreshold}, tts.FakeSynthesizer{}, nil, nil
	}

	var writer llm.WriterClient = llm.FakeWriter{}
	var auditor llm.AuditorClient = llm.FakeAuditor{Threshold: cfg.Auditor.PassThreshold}
	var health probe.CheckFunc

	if cfg.Writer.Provider == "gemini" || cfg.Auditor.Provider == "gemini" {
		backoff := request.NewProviderBackoff(
			time.Duration(cfg.Request.Backoff.BaseDelay), time.Duration(cfg.Request.Backoff.MaxDelay))
		client, err := gemini.NewClient(cfg.Writer, cfg.Auditor, backoff)
		if err != nil {
			return nil, nil, nil, nil, &config.ConfigError{Field: "writer.provider", Reason: err.Error()}
		}
		health = client.HealthCheck
		if cfg.Writer.Provider == "gemini" {
			writer = client
		}
		if cfg.Auditor.Provider == "gemini" {
			auditor = client
		}
	}

	var synth tts.Synthesizer = tts.FakeSynthesizer{}
	if cfg.TTS.Engine == "edge-ws" {
		provider, err := edge.NewProvider(cfg.TTS.Endpoint, time.Duration(cfg.TTS.Timeout))
		if err != nil {
			return nil, nil, nil, nil, &config.ConfigError{Field: "tts.engine", Reason: err.Error()}
		}
		synth = provider
	}
	return writer, auditor, synth, health, nil
}

// weatherText fetches current conditions for weather briefs. Best-effort: a
// failed fetch produces scripts without live conditions, not a failed run.
func weatherText(ctx context.Context, cfg *config.Config, args *cliArgs) string {
	wanted := false
	for _, ct := range args.types {
		if ct == model.TypeWeather {
			wanted = true
		}
	}
	if !wanted || args.testMode {
		return ""
	}

	var store cache.Cacher
	if dbConn, err := db.Init(cfg.Paths.DB); err == nil {
		defer dbConn.Close()
		store = cache.NewSQLiteCache(dbConn)
	}
	client := request.NewClient(time.Duration(cfg.Request.Timeout), cfg.Request.Retries,
		request.NewProviderBackoff(time.Duration(cfg.Request.Backoff.BaseDelay), time.Duration(cfg.Request.Backoff.MaxDelay)))
	provider := weather.NewProvider(client, cfg.Weather.Endpoint, cfg.Weather.Lat, cfg.Weather.Lon,
		time.Duration(cfg.Weather.CacheTTL), store)

	cond, err := provider.Current(ctx)
	if err != nil {
		slog.Warn("weather unavailable, briefs will omit live conditions", "error", err)
		return ""
	}
	return cond.Summary()
}

// consoleSink prints one progress line per item.
type consoleSink struct {
	verbose bool
	count   int
}

func (s *consoleSink) Update(ev pipeline.Event) {
	s.count++
	if s.verbose || s.count%10 == 1 {
		fmt.Printf("[%s] %d/%d %s\n", ev.Stage, ev.Counters.Processed+ev.Counters.Skipped+1, ev.Total, ev.Key.String())
	}
}
