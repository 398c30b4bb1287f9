package agent

import (
	"errors"
	"fmt"
)

// Orchestration stages, also used as log and metric labels.
const (
	StageClassify   = "classify"
	StageDirect     = "direct"
	StageReflex     = "reflex"
	StageRetrieve   = "retrieve"
	StageSupplement = "supplement"
	StageNoMemory   = "no_memory"
)

// Failure taxonomy. Only classifier unreachability ends a turn; the rest degrade.
var (
	// ErrClassificationFailure degrades to "recollection not needed".
	ErrClassificationFailure = errors.New("classification failure")
	// ErrComposerFailure degrades to a generic in-character line.
	ErrComposerFailure = errors.New("composer failure")
	// ErrRetrievalFailure degrades to the no_memory path.
	ErrRetrievalFailure = errors.New("retrieval failure")
	// ErrInvalidRequest is returned before any stage runs.
	ErrInvalidRequest = errors.New("invalid request")
)

// StageError records which stage failed and why.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the cause.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newStageError(stage string, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
