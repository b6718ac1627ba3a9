package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/timmy/stash/internal/domain"
	"github.com/timmy/stash/internal/logger"
	"github.com/timmy/stash/internal/storage"
)

// ResultSink persists one result record under the job's output name.
type ResultSink interface {
	Write(ctx context.Context, out string, result *domain.Result) (string, error)
}

// ResultWriter writes result records as indented JSON below one run directory
// and optionally mirrors them to object storage.
type ResultWriter struct {
	runDir       string
	mirror       storage.ObjectStorage
	mirrorPrefix string
}

// NewResultWriter creates a writer rooted at runDir. mirror may be nil.
func NewResultWriter(runDir string, mirror storage.ObjectStorage, mirrorPrefix string) *ResultWriter {
	return &ResultWriter{
		runDir:       runDir,
		mirror:       mirror,
		mirrorPrefix: strings.Trim(mirrorPrefix, "/"),
	}
}

// Write stores result at <runDir>/<out> and returns the written path.
// An existing file is never overwritten. Mirror failures are logged only.
func (w *ResultWriter) Write(ctx context.Context, out string, result *domain.Result) (string, error) {
	rel, err := cleanOutPath(out)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')

	dest := filepath.Join(w.runDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close output file: %w", err)
	}

	if w.mirror != nil {
		key := path.Join(w.mirrorPrefix, filepath.Base(w.runDir), filepath.ToSlash(rel))
		if err := w.mirror.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
			logger.FromContext(ctx).WithError(err).Warnf("Could not mirror result to object storage: %s", key)
		} else {
			logger.CtxDebug(ctx, "Mirrored result to %s", w.mirror.GetURL(key))
		}
	}

	return dest, nil
}

// cleanOutPath keeps job output names inside the run directory.
func cleanOutPath(out string) (string, error) {
	if strings.TrimSpace(out) == "" {
		return "", invalidJobf("missing required field 'out'")
	}
	if filepath.IsAbs(out) {
		return "", invalidJobf("output path %q must be relative", out)
	}
	rel := filepath.Clean(out)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", invalidJobf("output path %q escapes the run directory", out)
	}
	return rel, nil
}
