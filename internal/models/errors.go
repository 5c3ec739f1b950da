package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is.
var (
	ErrConfig             = errors.New("configuration error")
	ErrIngest             = errors.New("ingest error")
	ErrPlan               = errors.New("plan error")
	ErrRetrieval          = errors.New("retrieval error")
	ErrSynthesis          = errors.New("synthesis error")
	ErrPopulateInProgress = errors.New("populate already in progress")
)

// StageError carries the error kind of a pipeline stage together with its cause
type StageError struct {
	Kind    error
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewConfigError(message string, err error) *StageError {
	return &StageError{Kind: ErrConfig, Message: message, Err: err}
}

func NewPlanError(message string, err error) *StageError {
	return &StageError{Kind: ErrPlan, Message: message, Err: err}
}

func NewRetrievalError(message string, err error) *StageError {
	return &StageError{Kind: ErrRetrieval, Message: message, Err: err}
}

func NewSynthesisError(message string, err error) *StageError {
	return &StageError{Kind: ErrSynthesis, Message: message, Err: err}
}

// IngestError reports a file that could not be ingested, fully or partially.
// FailedChunks is empty when the whole file failed before insertion.
type IngestError struct {
	File         string
	FailedChunks []int
	Err          error
}

func (e *IngestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %s", ErrIngest, e.File)
	if len(e.FailedChunks) > 0 {
		fmt.Fprintf(&b, ": %d chunk(s) failed %v", len(e.FailedChunks), e.FailedChunks)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *IngestError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIngest}
	}
	return []error{ErrIngest, e.Err}
}

// Orchestration stages
const (
	StageStart      = "start"
	StagePlan       = "plan"
	StageRetrieve   = "retrieve"
	StageSynthesize = "synthesize"
)

// OrchestrationError wraps the failure of the stage that aborted an answer
type OrchestrationError struct {
	Stage string
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("answer aborted at %s stage: %v", e.Stage, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}
