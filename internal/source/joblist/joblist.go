// Package joblist loads harvest job lists from YAML files.
package joblist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/timmy/stash/internal/domain"
	"go.yaml.in/yaml/v3"
)

// ErrNotAList is returned when the document root is not a YAML sequence.
var ErrNotAList = errors.New("job list must be a YAML sequence")

// LoadFile reads and parses the job list at path.
func LoadFile(path string) ([]domain.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open job list: %w", err)
	}
	defer f.Close()

	jobs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return jobs, nil
}

// Parse decodes a YAML sequence of job mappings. Unknown keys are ignored
// and job types are lower-cased. An entry that is not a mapping, or whose
// fields have the wrong shape, is returned with Malformed set so it fails
// on its own at dispatch time.
func Parse(r io.Reader) ([]domain.Job, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: document is empty", ErrNotAList)
		}
		return nil, fmt.Errorf("parse job list: %w", err)
	}

	seq := &root
	if seq.Kind == yaml.DocumentNode && len(seq.Content) == 1 {
		seq = seq.Content[0]
	}
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w (line %d)", ErrNotAList, seq.Line)
	}

	jobs := make([]domain.Job, 0, len(seq.Content))
	for i, item := range seq.Content {
		jobs = append(jobs, decodeJob(i+1, item))
	}
	return jobs, nil
}

func decodeJob(index int, node *yaml.Node) domain.Job {
	if node.Kind != yaml.MappingNode {
		return domain.Job{Malformed: fmt.Sprintf("job %d (line %d) is not a mapping", index, node.Line)}
	}

	var job domain.Job
	if err := node.Decode(&job); err != nil {
		return domain.Job{Malformed: fmt.Sprintf("job %d (line %d): %v", index, node.Line, err)}
	}
	job.Type = domain.JobType(strings.ToLower(strings.TrimSpace(string(job.Type))))
	return job
}
