package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/timmy/stash/internal/config"
	"github.com/timmy/stash/internal/logger"
	"github.com/timmy/stash/internal/openai"
	"github.com/timmy/stash/internal/repository"
	"github.com/timmy/stash/internal/service"
	"github.com/timmy/stash/internal/source/joblist"
	"github.com/timmy/stash/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	appLogger := logger.NewDefault("stash-harvest")
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	outDir := flag.String("outdir", "", "Root output directory (default from config: stash)")
	sleep := flag.Duration("sleep", 0, "Pause after every job (default from config: 250ms)")
	pollInterval := flag.Duration("poll-interval", 0, "Delay between vector store status checks (default from config: 5s)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <jobs.yaml>\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	jobsFile := flag.Arg(0)

	if *logLevel != "" {
		appLogger.SetLevel(*logLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Error("Failed to load config")
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "outdir":
			cfg.Harvest.OutDir = *outDir
		case "sleep":
			cfg.Harvest.Sleep = *sleep
		case "poll-interval":
			cfg.Harvest.PollInterval = *pollInterval
		}
	})
	if err := cfg.ValidateHarvest(); err != nil {
		appLogger.WithError(err).Error("Invalid configuration")
		return 1
	}

	jobs, err := joblist.LoadFile(jobsFile)
	if err != nil {
		appLogger.WithError(err).Error("Failed to load job list")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = appLogger.WithContext(ctx)

	runDir := filepath.Join(cfg.Harvest.OutDir, service.Timestamp(time.Now()))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		appLogger.WithError(err).Error("Failed to create output directory")
		return 1
	}

	mirror, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Warn("Result mirror disabled")
		mirror = nil
	}

	var recorder service.RunRecorder
	if cfg.Database.Enabled() {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			appLogger.WithError(err).Warn("Run ledger disabled")
		} else {
			defer repository.Close(db)
			recorder = repository.NewRunRepository(db)
		}
	}

	client := openai.NewClient(&openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout,
	})

	harvestService := service.NewHarvestService(
		service.NewDispatcher(client, nil),
		service.NewVectorStoreManager(client, &service.VectorStoreConfig{
			PollInterval:       cfg.Harvest.PollInterval,
			ErrorBackoffFactor: cfg.Harvest.ErrorBackoffFactor,
		}),
		service.NewResultWriter(runDir, mirror, cfg.Storage.Prefix),
		recorder,
		appLogger,
		&service.HarvestConfig{
			WebModel:  cfg.OpenAI.WebModel,
			FileModel: cfg.OpenAI.FileModel,
			Pause:     cfg.Harvest.Sleep,
		},
	)

	stats, err := harvestService.Run(ctx, jobs, service.RunMeta{JobsFile: jobsFile, OutputDir: runDir})
	if err != nil {
		appLogger.WithError(err).WithFields(logger.Fields{
			"succeeded": stats.SucceededJobs,
			"failed":    stats.FailedJobs,
		}).Error("Harvest interrupted")
		return 1
	}

	fmt.Printf("\nDone. %d/%d jobs succeeded. Results in %s\n", stats.SucceededJobs, stats.TotalJobs, runDir)
	if stats.FailedJobs > 0 {
		for class, n := range stats.FailuresByClass {
			appLogger.WithField("error_class", string(class)).Warnf("%d job(s) failed", n)
		}
		return 1
	}
	return 0
}
