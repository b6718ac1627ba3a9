package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/stash/internal/config"
	"github.com/timmy/stash/internal/logger"
	"github.com/timmy/stash/internal/pdftext"
	"github.com/timmy/stash/internal/service"
	"github.com/timmy/stash/internal/source/manifest"
)

func main() {
	os.Exit(run())
}

func run() int {
	appLogger := logger.NewDefault("stash-extract")
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	manifestPath := flag.String("manifest", "", "Path to the manifest CSV (default from config: data/manifest.csv)")
	pdfDir := flag.String("pdf-dir", "", "Directory holding the PDF files named in the manifest")
	outputDir := flag.String("output-dir", "", "Directory for cleaned text files (default from config: data/extracted_text)")
	skipExisting := flag.Bool("skip-existing", false, "Do not re-process entries whose output file exists")
	addMetadata := flag.Bool("add-metadata", false, "Prepend YAML front matter built from the manifest row")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

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
		case "manifest":
			cfg.Extract.Manifest = *manifestPath
		case "pdf-dir":
			cfg.Extract.PDFDir = *pdfDir
		case "output-dir":
			cfg.Extract.OutputDir = *outputDir
		case "skip-existing":
			cfg.Extract.SkipExisting = *skipExisting
		case "add-metadata":
			cfg.Extract.AddMetadata = *addMetadata
		}
	})
	if cfg.Extract.PDFDir == "" {
		appLogger.Error("--pdf-dir is required")
		flag.Usage()
		return 2
	}

	entries, err := manifest.LoadFile(cfg.Extract.Manifest)
	if err != nil {
		appLogger.WithError(err).Error("Failed to read manifest")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractService := service.NewExtractService(pdftext.New(), appLogger, &service.ExtractConfig{
		PDFDir:       cfg.Extract.PDFDir,
		OutputDir:    cfg.Extract.OutputDir,
		SkipExisting: cfg.Extract.SkipExisting,
		AddMetadata:  cfg.Extract.AddMetadata,
	})

	stats, err := extractService.Run(ctx, entries)
	if stats != nil {
		fmt.Println("\nExtraction complete.")
		fmt.Printf("  Processed: %d\n", stats.Processed)
		fmt.Printf("  Skipped:   %d\n", stats.Skipped)
		fmt.Printf("  Errors:    %d\n", stats.Errors)
	}
	if err != nil {
		appLogger.WithError(err).Error("Extraction stopped")
		return 1
	}
	return 0
}
