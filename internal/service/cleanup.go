package service

import "fmt"

// CleanupTarget is the kind of remote resource a cleanup deleted.
type CleanupTarget string

const (
	CleanupVectorStore CleanupTarget = "vector_store"
	CleanupFile        CleanupTarget = "file"
)

// CleanupOutcome records one best-effort deletion. A failed cleanup is
// reported here and logged, never returned as the job's error.
type CleanupOutcome struct {
	Target CleanupTarget
	ID     string
	Err    error
}

// Succeeded reports whether the deletion went through.
func (o CleanupOutcome) Succeeded() bool {
	return o.Err == nil
}

func (o CleanupOutcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s: cleanup failed (ignored): %v", o.Target, o.ID, o.Err)
	}
	return fmt.Sprintf("%s %s: deleted", o.Target, o.ID)
}
