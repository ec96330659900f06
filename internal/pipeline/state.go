// Package pipeline sequences one résumé analysis run:
// validate, extract text, render preview, request analysis, persist.
//
// Next is a pure transition function; Runner drives the side effects.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"resumind/internal/extract"
	"resumind/internal/feedback"
	"resumind/internal/preview"
)

// Stage is a pipeline state.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageValidating         Stage = "validating"
	StageExtractingText     Stage = "extracting_text"
	StageRenderingPreview   Stage = "rendering_preview"
	StageRequestingAnalysis Stage = "requesting_analysis"
	StagePersisting         Stage = "persisting"
	StageCompleted          Stage = "completed"
	StageFailed             Stage = "failed"
)

// Status strings shown to the user on entering each stage.
const (
	StatusStarting   = "Starting analysis..."
	StatusExtracting = "Extracting text from resume..."
	StatusRendering  = "Rendering resume preview..."
	StatusAnalyzing  = "Analyzing resume with AI... This may take a moment..."
	StatusSaving     = "Saving results..."
	StatusComplete   = "Analysis complete, redirecting..."
)

var (
	// ErrRunInProgress rejects a submission while a run is active.
	ErrRunInProgress = errors.New("an analysis is already in progress")
	// ErrInvalidTransition is returned for events that do not apply to the current stage.
	ErrInvalidTransition = errors.New("invalid pipeline transition")
)

// Terminal reports whether no further events are accepted for this run.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Busy reports whether a run is in flight.
func (s Stage) Busy() bool {
	return s != StageIdle && s != "" && !s.Terminal()
}

// State is the in-memory state of one session's pipeline. It is never persisted.
type State struct {
	Stage         Stage
	Processing    bool
	StatusMessage string
	Input         Input

	Text       string
	PreviewRef string
	Feedback   *feedback.Feedback
	RecordID   string

	FailedStage Stage
	Err         error
}

// NavigateTo is the record view to open once the run completes.
func (s State) NavigateTo() string {
	if s.Stage != StageCompleted || s.RecordID == "" {
		return ""
	}
	return "/resume/" + s.RecordID
}

// Event drives a transition.
type Event interface {
	event()
}

type (
	// Submit starts a run.
	Submit struct{ Input Input }
	// Validated reports that Input passed validation.
	Validated struct{}
	// TextExtracted carries the extracted résumé text.
	TextExtracted struct{ Text string }
	// PreviewRendered carries the renderer's reference to the stored preview.
	PreviewRendered struct{ Reference string }
	// AnalysisReceived carries the decoded feedback.
	AnalysisReceived struct{ Feedback feedback.Feedback }
	// Persisted carries the id of the written record.
	Persisted struct{ RecordID string }
	// Failed ends the run at the current stage.
	Failed struct{ Err error }
)

func (Submit) event()           {}
func (Validated) event()        {}
func (TextExtracted) event()    {}
func (PreviewRendered) event()  {}
func (AnalysisReceived) event() {}
func (Persisted) event()        {}
func (Failed) event()           {}

// Next applies ev to s. It performs no I/O. On error s is returned unchanged.
func Next(s State, ev Event) (State, error) {
	if sub, ok := ev.(Submit); ok {
		if s.Stage.Busy() {
			return s, ErrRunInProgress
		}
		return State{
			Stage:         StageValidating,
			Processing:    true,
			StatusMessage: StatusStarting,
			Input:         sub.Input,
		}, nil
	}

	if !s.Stage.Busy() {
		return s, invalid(s, ev)
	}

	switch e := ev.(type) {
	case Failed:
		return fail(s, e.Err), nil

	case Validated:
		if s.Stage != StageValidating {
			return s, invalid(s, ev)
		}
		return advance(s, StageExtractingText, StatusExtracting), nil

	case TextExtracted:
		if s.Stage != StageExtractingText {
			return s, invalid(s, ev)
		}
		if strings.TrimSpace(e.Text) == "" {
			return fail(s, &extract.ExtractionError{Reason: extract.NoReadableTextMessage, Err: extract.ErrNoText}), nil
		}
		next := advance(s, StageRenderingPreview, StatusRendering)
		next.Text = e.Text
		return next, nil

	case PreviewRendered:
		if s.Stage != StageRenderingPreview {
			return s, invalid(s, ev)
		}
		if e.Reference == "" {
			return fail(s, errors.New(preview.UnknownErrorMessage)), nil
		}
		next := advance(s, StageRequestingAnalysis, StatusAnalyzing)
		next.PreviewRef = e.Reference
		return next, nil

	case AnalysisReceived:
		if s.Stage != StageRequestingAnalysis {
			return s, invalid(s, ev)
		}
		fb := e.Feedback
		next := advance(s, StagePersisting, StatusSaving)
		next.Feedback = &fb
		return next, nil

	case Persisted:
		if s.Stage != StagePersisting || e.RecordID == "" {
			return s, invalid(s, ev)
		}
		next := advance(s, StageCompleted, StatusComplete)
		next.Processing = false
		next.RecordID = e.RecordID
		return next, nil
	}
	return s, invalid(s, ev)
}

func advance(s State, stage Stage, status string) State {
	s.Stage = stage
	s.StatusMessage = status
	return s
}

func fail(s State, err error) State {
	if err == nil {
		err = errors.New("Unknown error occurred")
	}
	msg := err.Error()
	if msg == "" {
		msg = "Unknown error occurred"
	}
	s.FailedStage = s.Stage
	s.Stage = StageFailed
	s.Processing = false
	s.StatusMessage = "Error: " + msg
	s.Err = err
	return s
}

func invalid(s State, ev Event) error {
	return fmt.Errorf("%w: %T in stage %q", ErrInvalidTransition, ev, s.Stage)
}
