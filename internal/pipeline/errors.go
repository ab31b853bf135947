package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyResult signals that research produced no usable findings. Callers
// degrade to an empty-findings report instead of failing the run.
var ErrEmptyResult = errors.New("pipeline: research returned no findings")

// ErrEmptyDocument signals that report generation produced no text. Unlike
// empty research findings, this is fatal.
var ErrEmptyDocument = errors.New("pipeline: generated report is empty")

// GenerationError is a fatal failure of a generative stage. It carries the
// stage name so run records and logs can attribute the failure.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("pipeline: %s stage failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func newGenerationError(stage string, err error) *GenerationError {
	return &GenerationError{Stage: stage, Err: err}
}
