package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/chart"
	"github.com/dgnsrekt/chartsync/internal/render"
	"github.com/dgnsrekt/chartsync/internal/snapshot"
)

const (
	CodeValidation         = "VALIDATION"
	CodeChartNotFound      = "CHART_NOT_FOUND"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeSnapshotNotFound   = "SNAPSHOT_NOT_FOUND"
	CodeInternal           = "INTERNAL"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// classify attaches a code to an error coming out of the chart, render or
// snapshot layers. Errors that already carry a code pass through.
func classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, render.ErrUnavailable):
		return newError(CodeBackendUnavailable, msg, err)
	case errors.Is(err, render.ErrIndex), errors.Is(err, chart.ErrValueKind), errors.Is(err, snapshot.ErrInvalidID):
		return newError(CodeValidation, msg, err)
	case errors.Is(err, snapshot.ErrNotFound):
		return newError(CodeSnapshotNotFound, msg, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, bus.ErrLoopStopped):
		return newError(CodeBackendUnavailable, msg, err)
	}
	return newError(CodeInternal, msg, err)
}
