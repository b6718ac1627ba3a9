package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/timmy/stash/internal/domain"
	"github.com/timmy/stash/internal/logger"
	"github.com/timmy/stash/internal/source/manifest"
	"github.com/timmy/stash/internal/textclean"
	"go.yaml.in/yaml/v3"
)

// TextExtractor returns the raw text of a document. *pdftext.Extractor implements it.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// ExtractService turns manifest rows into cleaned per-episode text files.
type ExtractService struct {
	extractor    TextExtractor
	logger       *logger.Logger
	pdfDir       string
	outputDir    string
	skipExisting bool
	addMetadata  bool
}

// ExtractConfig holds configuration for the extract service.
type ExtractConfig struct {
	PDFDir       string
	OutputDir    string
	SkipExisting bool
	AddMetadata  bool
}

// ExtractStats holds counters for one extraction run.
type ExtractStats struct {
	Processed int
	Skipped   int
	Errors    int
	Ignored   int
}

// NewExtractService creates a new extract service.
func NewExtractService(extractor TextExtractor, log *logger.Logger, cfg *ExtractConfig) *ExtractService {
	return &ExtractService{
		extractor:    extractor,
		logger:       log,
		pdfDir:       cfg.PDFDir,
		outputDir:    cfg.OutputDir,
		skipExisting: cfg.SkipExisting,
		addMetadata:  cfg.AddMetadata,
	}
}

// Run processes every entry in order. Per-row problems are counted and
// logged; only cancellation of ctx or an unusable output directory stop it.
func (s *ExtractService) Run(ctx context.Context, entries []domain.ManifestEntry) (*ExtractStats, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	s.logger.WithField("output", s.outputDir).Infof("Extracting %d manifest entries", len(entries))

	stats := &ExtractStats{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		status, err := s.ProcessEntry(ctx, entry)
		switch status {
		case domain.ExtractStatusProcessed:
			stats.Processed++
		case domain.ExtractStatusSkipped:
			stats.Skipped++
		case domain.ExtractStatusIgnored:
			stats.Ignored++
		default:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			stats.Errors++
		}
	}

	s.logger.WithFields(logger.Fields{
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"errors":    stats.Errors,
	}).Info("Extraction complete")
	return stats, nil
}

// ProcessEntry extracts, cleans and writes a single manifest row.
func (s *ExtractService) ProcessEntry(ctx context.Context, entry domain.ManifestEntry) (domain.ExtractStatus, error) {
	log := s.logger.WithField("row", entry.Row)
	if entry.FileName == "" {
		// Line numbers count the header.
		log.Warnf("Skipping manifest line %d: missing file_name", entry.Row+1)
		return domain.ExtractStatusIgnored, nil
	}

	outName := OutputName(entry)
	outPath := filepath.Join(s.outputDir, outName)
	pdfPath := filepath.Join(s.pdfDir, entry.FileName)
	log = log.WithFields(logger.Fields{"file": entry.FileName, "output": outName})
	log.Infof("Processing %s -> %s", entry.FileName, outName)

	if s.skipExisting {
		if _, err := os.Stat(outPath); err == nil {
			log.Info("Skipping, output file already exists")
			return domain.ExtractStatusSkipped, nil
		}
	}

	if _, err := os.Stat(pdfPath); err != nil {
		log.WithError(err).Errorf("PDF file not found at expected path: %s", pdfPath)
		return domain.ExtractStatusError, fmt.Errorf("%w: %s", ErrInputFileNotFound, pdfPath)
	}

	raw, err := s.extractor.ExtractText(ctx, pdfPath)
	if err != nil {
		log.WithError(err).Error("Text extraction failed")
		return domain.ExtractStatusError, err
	}
	text := textclean.Clean(raw)

	if s.addMetadata {
		header, err := FrontMatter(entry)
		if err != nil {
			log.WithError(err).Error("Could not build front matter")
			return domain.ExtractStatusError, err
		}
		text = header + text
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		log.WithError(err).Error("Could not write output file")
		return domain.ExtractStatusError, fmt.Errorf("write %s: %w", outPath, err)
	}
	logger.With(logger.Fields{logger.FieldSize: len(text)}).Debug(ctx, "Wrote %s", outPath)
	return domain.ExtractStatusProcessed, nil
}

// OutputName returns SxxEyy.txt when season and episode are numeric and
// the PDF stem with a .txt extension otherwise.
func OutputName(entry domain.ManifestEntry) string {
	season, sOK := parseNumber(entry.Season)
	episode, eOK := parseNumber(entry.Episode)
	if sOK && eOK {
		return fmt.Sprintf("S%02dE%02d.txt", season, episode)
	}
	base := filepath.Base(entry.FileName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
}

// parseNumber accepts integers and integral floats such as "3.0".
func parseNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// FrontMatter renders the row as a YAML block delimited by --- lines, in
// manifest column order, without checksum, file_name and empty values.
func FrontMatter(entry domain.ManifestEntry) (string, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range entry.Order {
		if key == manifest.ColumnChecksum || key == manifest.ColumnFileName {
			continue
		}
		value, ok := entry.Columns[key]
		if !ok || value == "" {
			continue
		}
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: scalarTag(value), Value: value},
		)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	if len(mapping.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(mapping); err != nil {
			return "", fmt.Errorf("encode front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("encode front matter: %w", err)
		}
	}
	buf.WriteString("---\n")
	return buf.String(), nil
}

func scalarTag(value string) string {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return "!!int"
	}
	if strings.IndexFunc(value, unicode.IsLetter) < 0 {
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return "!!float"
		}
	}
	return "!!str"
}
