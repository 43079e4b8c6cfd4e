package orchestrator

import "fmt"

// Stage names the generation step that failed
type Stage string

const (
	StagePrimary   Stage = "primary"
	StageSecondary Stage = "secondary"
)

// RetrievalError reports that embedding the question or querying the index failed.
// It is fatal for the query and never retried.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// GenerationError reports that a generator failed at Stage.
// A primary failure is not escalated to the secondary generator.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
