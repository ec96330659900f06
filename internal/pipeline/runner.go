package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"resumind/internal/feedback"
	"resumind/internal/preview"
	"resumind/internal/shared/metrics"
)

// TextExtractor turns PDF bytes into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Analyzer requests feedback for a résumé against a job.
type Analyzer interface {
	RequestAnalysis(ctx context.Context, resumeText, jobTitle, jobDescription string) (feedback.Feedback, error)
}

// Draft is everything the pipeline knows about a record before it is written.
type Draft struct {
	PreviewRef     string
	CompanyName    string
	JobTitle       string
	JobDescription string
	Feedback       feedback.Feedback
}

// Persister writes a completed run under id.
type Persister interface {
	Persist(ctx context.Context, id string, d Draft) error
}

// Deps are the collaborators of a Runner. Sink, NewID and Now are optional.
type Deps struct {
	Extractor TextExtractor
	Renderer  preview.Renderer
	Analyzer  Analyzer
	Persister Persister
	Sink      StatusSink
	NewID     func() string
	Now       func() time.Time
}

// Result is the outcome of one Run.
type Result struct {
	RunID         string   `json:"runId"`
	RecordID      string   `json:"id,omitempty"`
	NavigateTo    string   `json:"navigateTo,omitempty"`
	Stage         Stage    `json:"status"`
	FailedStage   Stage    `json:"failedStage,omitempty"`
	StatusMessage string   `json:"statusMessage"`
	StatusHistory []string `json:"statusHistory"`
}

// Runner drives one session's pipeline. A Runner accepts one run at a time.
type Runner struct {
	deps Deps

	mu    sync.Mutex
	state State
}

// NewRunner returns an idle runner.
func NewRunner(deps Deps) *Runner {
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sink == nil {
		deps.Sink = LogSink{}
	}
	return &Runner{deps: deps, state: State{Stage: StageIdle}}
}

// State returns a snapshot of the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

type requestIDKey struct{}

// WithRequestID tags status updates of runs started with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type run struct {
	r       *Runner
	id      string
	reqID   string
	history []string
}

// Run executes the pipeline for in. It returns ErrRunInProgress without side
// effects when another run is active. A failed run returns the stage error
// alongside a Result describing where it stopped.
func (r *Runner) Run(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	cur := &run{r: r, reqID: requestIDFrom(ctx)}
	// A request id names the run so clients can poll it while the request is open.
	cur.id = cur.reqID
	if cur.id == "" {
		cur.id = uuid.NewString()
	}

	if err := cur.apply(ctx, Submit{Input: in}); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			metrics.IncPipelineRejected()
		}
		return Result{}, err
	}
	metrics.IncPipelineStarted()

	cur.execute(ctx, in)

	final := r.State()
	metrics.ObservePipelineDurationMs(metrics.SinceMillis(start))
	res := Result{
		RunID:         cur.id,
		RecordID:      final.RecordID,
		NavigateTo:    final.NavigateTo(),
		Stage:         final.Stage,
		FailedStage:   final.FailedStage,
		StatusMessage: final.StatusMessage,
		StatusHistory: cur.history,
	}
	if final.Stage == StageFailed {
		metrics.IncPipelineFailed(string(final.FailedStage))
		return res, final.Err
	}
	metrics.IncPipelineCompleted()
	return res, nil
}

func (cur *run) execute(ctx context.Context, in Input) {
	d := cur.r.deps

	if err := in.Validate(); err != nil {
		cur.fail(ctx, err)
		return
	}
	if !cur.step(ctx, Validated{}) {
		return
	}

	text, err := d.Extractor.ExtractText(ctx, in.File.Data)
	if err != nil {
		cur.fail(ctx, err)
		return
	}
	if !cur.step(ctx, TextExtracted{Text: text}) {
		return
	}

	rendered := d.Renderer.Render(ctx, in.File.Data)
	if rendered.Error != "" {
		cur.fail(ctx, errors.New(rendered.Error))
		return
	}
	if !cur.step(ctx, PreviewRendered{Reference: rendered.Reference}) {
		return
	}

	st := cur.r.State()
	fb, err := d.Analyzer.RequestAnalysis(ctx, st.Text, in.JobTitle, in.JobDescription)
	if err != nil {
		cur.fail(ctx, err)
		return
	}
	if !cur.step(ctx, AnalysisReceived{Feedback: fb}) {
		return
	}

	id := d.NewID()
	draft := Draft{
		PreviewRef:     st.PreviewRef,
		CompanyName:    in.CompanyName,
		JobTitle:       in.JobTitle,
		JobDescription: in.JobDescription,
		Feedback:       fb,
	}
	if err := d.Persister.Persist(ctx, id, draft); err != nil {
		cur.fail(ctx, err)
		return
	}
	cur.step(ctx, Persisted{RecordID: id})
}

// step applies ev and reports whether the run is still going.
func (cur *run) step(ctx context.Context, ev Event) bool {
	if err := cur.apply(ctx, ev); err != nil {
		cur.fail(ctx, err)
		return false
	}
	return !cur.r.State().Stage.Terminal()
}

func (cur *run) fail(ctx context.Context, err error) {
	// Failed is accepted from every busy stage.
	_ = cur.apply(ctx, Failed{Err: err})
}

func (cur *run) apply(ctx context.Context, ev Event) error {
	r := cur.r
	r.mu.Lock()
	next, err := Next(r.state, ev)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.state = next
	r.mu.Unlock()

	cur.history = append(cur.history, next.StatusMessage)
	r.deps.Sink.Publish(ctx, StatusUpdate{
		RunID:     cur.id,
		RequestID: cur.reqID,
		Stage:     next.Stage,
		Status:    next.StatusMessage,
		RecordID:  next.RecordID,
		Failed:    next.Stage == StageFailed,
		At:        r.deps.Now(),
	})
	return nil
}
