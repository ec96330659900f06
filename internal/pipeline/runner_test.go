package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumind/internal/analysis"
	"resumind/internal/extract"
	"resumind/internal/feedback"
	"resumind/internal/llm/openrouter"
	"resumind/internal/preview"
	"resumind/internal/shared/storage/kv"
)

type stubExtractor struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
	block chan struct{}
}

func (s *stubExtractor) ExtractText(ctx context.Context, _ []byte) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.text, s.err
}

func (s *stubExtractor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubAnalyzer struct {
	mu    sync.Mutex
	calls int
	fb    feedback.Feedback
	err   error
}

func (s *stubAnalyzer) RequestAnalysis(_ context.Context, text, title, desc string) (feedback.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.fb, s.err
}

type kvPersister struct {
	store kv.Store
}

func (p kvPersister) Persist(ctx context.Context, id string, d Draft) error {
	return p.store.Set(ctx, "resume:"+id, d.JobTitle)
}

type failingPersister struct{}

func (failingPersister) Persist(context.Context, string, Draft) error {
	return errors.New("Failed to save resume: disk full")
}

func okRenderer() preview.Renderer {
	return preview.RendererFunc(func(context.Context, []byte) preview.Result {
		return preview.Result{Reference: "previews/abc.pdf"}
	})
}

func sampleFeedback() feedback.Feedback {
	cat := feedback.Category{Score: 70, Tips: []feedback.Tip{{Type: feedback.TipGood, Tip: "Clear"}}}
	return feedback.Feedback{OverallScore: 72, ATS: cat, ToneAndStyle: cat, Content: cat, Structure: cat, Skills: cat}
}

type recorder struct {
	mu      sync.Mutex
	updates []StatusUpdate
}

func (r *recorder) Publish(_ context.Context, u StatusUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func TestRunnerCompletes(t *testing.T) {
	store := kv.NewMemoryStore()
	sink := &recorder{}
	ex := &stubExtractor{text: "Jane Doe\nGo developer"}
	an := &stubAnalyzer{fb: sampleFeedback()}
	r := NewRunner(Deps{
		Extractor: ex,
		Renderer:  okRenderer(),
		Analyzer:  an,
		Persister: kvPersister{store: store},
		Sink:      sink,
		NewID:     func() string { return "rec-1" },
	})

	res, err := r.Run(WithRequestID(context.Background(), "req-9"), validInput())
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, res.Stage)
	assert.Equal(t, "rec-1", res.RecordID)
	assert.Equal(t, "/resume/rec-1", res.NavigateTo)
	assert.Equal(t, []string{
		StatusStarting, StatusExtracting, StatusRendering, StatusAnalyzing, StatusSaving, StatusComplete,
	}, res.StatusHistory)

	keys, err := store.List(context.Background(), "resume:")
	require.NoError(t, err)
	assert.Equal(t, []string{"resume:rec-1"}, keys)

	require.Len(t, sink.updates, 6)
	for _, u := range sink.updates {
		assert.Equal(t, res.RunID, u.RunID)
		assert.Equal(t, "req-9", u.RequestID)
	}
	assert.Equal(t, "rec-1", sink.updates[5].RecordID)
	assert.False(t, r.State().Processing)
}

func TestRunnerMissingFileNeverExtracts(t *testing.T) {
	ex := &stubExtractor{text: "x"}
	an := &stubAnalyzer{fb: sampleFeedback()}
	r := NewRunner(Deps{Extractor: ex, Renderer: okRenderer(), Analyzer: an, Persister: failingPersister{}})

	in := validInput()
	in.File = nil
	res, err := r.Run(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StageFailed, res.Stage)
	assert.Equal(t, StageValidating, res.FailedStage)
	assert.Equal(t, "Error: Please select a PDF file", res.StatusMessage)
	assert.Zero(t, ex.Calls())
	assert.Zero(t, an.calls)
}

func TestRunnerEmptyDescriptionNeverAnalyzes(t *testing.T) {
	an := &stubAnalyzer{fb: sampleFeedback()}
	r := NewRunner(Deps{Extractor: &stubExtractor{text: "x"}, Renderer: okRenderer(), Analyzer: an, Persister: failingPersister{}})

	in := validInput()
	in.JobDescription = "   "
	_, err := r.Run(context.Background(), in)

	require.Error(t, err)
	assert.Equal(t, "Please fill in Job Description", err.Error())
	assert.Zero(t, an.calls)
}

func TestRunnerEmptyTextFailsAtExtraction(t *testing.T) {
	an := &stubAnalyzer{fb: sampleFeedback()}
	r := NewRunner(Deps{Extractor: &stubExtractor{text: ""}, Renderer: okRenderer(), Analyzer: an, Persister: failingPersister{}})

	res, err := r.Run(context.Background(), validInput())

	require.ErrorIs(t, err, extract.ErrNoText)
	assert.Equal(t, StageExtractingText, res.FailedStage)
	assert.Equal(t, "Error: "+extract.NoReadableTextMessage, res.StatusMessage)
	assert.Zero(t, an.calls)
}

func TestRunnerPreviewErrorCarriesMessage(t *testing.T) {
	renderer := preview.RendererFunc(func(context.Context, []byte) preview.Result {
		return preview.Result{Error: "pdf is encrypted"}
	})
	r := NewRunner(Deps{Extractor: &stubExtractor{text: "x"}, Renderer: renderer, Analyzer: &stubAnalyzer{}, Persister: failingPersister{}})

	res, err := r.Run(context.Background(), validInput())

	require.Error(t, err)
	assert.Equal(t, StageRenderingPreview, res.FailedStage)
	assert.Equal(t, "Error: pdf is encrypted", res.StatusMessage)
}

func TestRunnerUpstreamFailureWritesNoRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	provider, err := openrouter.New(openrouter.Options{APIKey: "k", Model: "m", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	store := kv.NewMemoryStore()
	r := NewRunner(Deps{
		Extractor: &stubExtractor{text: "Jane Doe"},
		Renderer:  okRenderer(),
		Analyzer:  analysis.NewGateway(provider),
		Persister: kvPersister{store: store},
	})

	res, err := r.Run(context.Background(), validInput())

	var gerr *analysis.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, StageRequestingAnalysis, res.FailedStage)
	assert.True(t, strings.HasPrefix(res.StatusMessage, "Error: "))
	assert.Contains(t, res.StatusMessage, "503")

	keys, err := store.List(context.Background(), "resume:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRunnerPersistFailure(t *testing.T) {
	r := NewRunner(Deps{Extractor: &stubExtractor{text: "x"}, Renderer: okRenderer(), Analyzer: &stubAnalyzer{fb: sampleFeedback()}, Persister: failingPersister{}})

	res, err := r.Run(context.Background(), validInput())

	require.Error(t, err)
	assert.Equal(t, StagePersisting, res.FailedStage)
	assert.Equal(t, "Error: Failed to save resume: disk full", res.StatusMessage)
	assert.Empty(t, res.RecordID)
	assert.Empty(t, res.NavigateTo)
}

func TestRunnerRejectsConcurrentRun(t *testing.T) {
	ex := &stubExtractor{text: "x", block: make(chan struct{})}
	r := NewRunner(Deps{Extractor: ex, Renderer: okRenderer(), Analyzer: &stubAnalyzer{fb: sampleFeedback()}, Persister: kvPersister{store: kv.NewMemoryStore()}})

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), validInput())
		done <- err
	}()

	require.Eventually(t, func() bool { return ex.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err := r.Run(context.Background(), validInput())
	require.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, StageExtractingText, r.State().Stage)

	close(ex.block)
	require.NoError(t, <-done)

	_, err = r.Run(context.Background(), validInput())
	require.NoError(t, err, "a finished runner accepts a new run")
}

func TestSessionsRejectOverlapWithinSession(t *testing.T) {
	ex := &stubExtractor{text: "x", block: make(chan struct{})}
	s := NewSessions(Deps{Extractor: ex, Renderer: okRenderer(), Analyzer: &stubAnalyzer{fb: sampleFeedback()}, Persister: kvPersister{store: kv.NewMemoryStore()}})

	first := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "session-a", validInput())
		first <- err
	}()
	require.Eventually(t, func() bool { return ex.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err := s.Run(context.Background(), "session-a", validInput())
	require.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, 1, s.Len(), "the busy runner stays registered after a rejected submission")

	other := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "session-b", validInput())
		other <- err
	}()
	require.Eventually(t, func() bool { return ex.Calls() == 2 }, time.Second, 5*time.Millisecond)

	close(ex.block)
	require.NoError(t, <-first)
	require.NoError(t, <-other)
	assert.Equal(t, 0, s.Len())

	_, err = s.Run(context.Background(), "session-a", validInput())
	require.NoError(t, err, "a finished session accepts a new run")
}

func TestSessionsEmptyKeyNeverShares(t *testing.T) {
	ex := &stubExtractor{text: "x", block: make(chan struct{})}
	s := NewSessions(Deps{Extractor: ex, Renderer: okRenderer(), Analyzer: &stubAnalyzer{fb: sampleFeedback()}, Persister: kvPersister{store: kv.NewMemoryStore()}})

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.Run(context.Background(), "", validInput())
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return ex.Calls() == 2 }, time.Second, 5*time.Millisecond)
	close(ex.block)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, 0, s.Len())
}
