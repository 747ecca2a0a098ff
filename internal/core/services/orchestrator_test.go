package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ewilliams-labs/aura/internal/core/domain"
	"github.com/ewilliams-labs/aura/internal/core/ports"
)

var calmSymphony = domain.Symphony{
	Title:               "Quiet Harbor",
	MoodAndGoal:         "To ease anticipatory anxiety",
	Instrumentation:     []string{"Piano", "Cello"},
	CompositionalStyle:  "Neo-classical",
	TherapeuticElements: []string{"Slow tempo"},
	PrimaryMoodKeyword:  "calm piano",
}

func TestOrchestrator_StartGeneration(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		image       string
		composer    mockComposer
		wantErr     error
		wantStatus  domain.Status
		wantMessage string
		wantCalled  bool
	}{
		{
			name:       "Happy Path",
			text:       "I feel anxious about tomorrow",
			composer:   mockComposer{symphony: calmSymphony},
			wantStatus: domain.StatusSuccess,
			wantCalled: true,
		},
		{
			name:       "Forwards captured image",
			text:       "tired",
			image:      "data:image/jpeg;base64,/9j/",
			composer:   mockComposer{symphony: calmSymphony},
			wantStatus: domain.StatusSuccess,
			wantCalled: true,
		},
		{
			name: "Composer error becomes a message",
			text: "I feel anxious about tomorrow",
			composer: mockComposer{err: &domain.GenerationError{
				Kind:    domain.KindConfiguration,
				Message: "GEMINI_API_KEY is not configured",
			}},
			wantStatus:  domain.StatusError,
			wantMessage: "GEMINI_API_KEY is not configured",
			wantCalled:  true,
		},
		{
			name:       "Empty text is rejected before calling",
			text:       " ",
			composer:   mockComposer{symphony: calmSymphony},
			wantErr:    domain.ErrEmptyInput,
			wantStatus: domain.StatusIdle,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockRepo()
			o := NewOrchestrator(&tc.composer, &mockFinder{}, repo, nil)

			s, err := o.NewSession(context.Background())
			if err != nil {
				t.Fatalf("new session: %v", err)
			}
			if tc.image != "" {
				if _, err := o.CaptureImage(context.Background(), s.ID, tc.image); err != nil {
					t.Fatalf("capture: %v", err)
				}
			}

			got, err := o.StartGeneration(context.Background(), s.ID, tc.text)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.GenerationStatus != tc.wantStatus {
				t.Fatalf("expected status %s, got %s", tc.wantStatus, got.GenerationStatus)
			}
			if tc.wantMessage != "" && !strings.Contains(got.GenerationError, tc.wantMessage) {
				t.Fatalf("expected message containing %q, got %q", tc.wantMessage, got.GenerationError)
			}
			if tc.composer.called != tc.wantCalled {
				t.Fatalf("expected composer called=%v", tc.wantCalled)
			}
			if tc.wantStatus == domain.StatusSuccess {
				if got.Symphony == nil || len(got.Symphony.Instrumentation) < 1 {
					t.Fatalf("expected a symphony with instrumentation, got %+v", got.Symphony)
				}
				if tc.composer.input.ImageBase64 != tc.image {
					t.Fatalf("expected image %q forwarded, got %q", tc.image, tc.composer.input.ImageBase64)
				}
			}

			stored, err := repo.GetByID(context.Background(), s.ID)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if stored.GenerationStatus != tc.wantStatus {
				t.Fatalf("expected stored status %s, got %s", tc.wantStatus, stored.GenerationStatus)
			}
		})
	}
}

func TestOrchestrator_FindTrack(t *testing.T) {
	tests := []struct {
		name        string
		generate    bool
		finder      mockFinder
		wantErr     error
		wantStatus  domain.Status
		wantMessage string
	}{
		{
			name:       "Happy Path",
			generate:   true,
			finder:     mockFinder{track: domain.Track{ID: "3135556", URL: "https://x/y.mp3", Keywords: []string{}}},
			wantStatus: domain.StatusSuccess,
		},
		{
			name:     "Empty result keeps the symphony",
			generate: true,
			finder: mockFinder{err: &domain.TrackSearchError{
				Kind:    domain.KindEmptyResult,
				Keyword: "calm piano",
				Message: `no suitable tracks were found for "calm piano"`,
			}},
			wantStatus:  domain.StatusError,
			wantMessage: "calm piano",
		},
		{
			name:       "No symphony is a no-op",
			generate:   false,
			finder:     mockFinder{},
			wantErr:    domain.ErrNoSymphony,
			wantStatus: domain.StatusIdle,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(&mockComposer{symphony: calmSymphony}, &tc.finder, newMockRepo(), nil)
			s, err := o.NewSession(context.Background())
			if err != nil {
				t.Fatalf("new session: %v", err)
			}
			if tc.generate {
				if _, err := o.StartGeneration(context.Background(), s.ID, "I feel anxious about tomorrow"); err != nil {
					t.Fatalf("generate: %v", err)
				}
			}

			got, err := o.FindTrack(context.Background(), s.ID)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.TrackStatus != tc.wantStatus {
				t.Fatalf("expected track status %s, got %s", tc.wantStatus, got.TrackStatus)
			}
			if tc.wantMessage != "" && !strings.Contains(got.TrackError, tc.wantMessage) {
				t.Fatalf("expected message containing %q, got %q", tc.wantMessage, got.TrackError)
			}
			if tc.generate && got.Symphony == nil {
				t.Fatalf("expected symphony to stay displayed")
			}
			if tc.generate && tc.finder.keyword != calmSymphony.PrimaryMoodKeyword {
				t.Fatalf("expected search for %q, got %q", calmSymphony.PrimaryMoodKeyword, tc.finder.keyword)
			}
		})
	}
}

func TestOrchestrator_Dispatched(t *testing.T) {
	dispatch := &mockDispatcher{}
	composer := &mockComposer{symphony: calmSymphony}
	o := NewOrchestrator(composer, &mockFinder{}, newMockRepo(), dispatch)

	s, err := o.NewSession(context.Background())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	got, err := o.StartGeneration(context.Background(), s.ID, "restless")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.GenerationStatus != domain.StatusLoading {
		t.Fatalf("expected loading before the job runs, got %s", got.GenerationStatus)
	}

	if _, err := o.StartGeneration(context.Background(), s.ID, "again"); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy while loading, got %v", err)
	}

	dispatch.runAll()

	got, err = o.GetSession(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.GenerationStatus != domain.StatusSuccess || got.Symphony == nil {
		t.Fatalf("expected success after the job ran, got %+v", got)
	}
}

func TestOrchestrator_DispatcherFull(t *testing.T) {
	dispatch := &mockDispatcher{err: ports.ErrQueueFull}
	o := NewOrchestrator(&mockComposer{symphony: calmSymphony}, &mockFinder{}, newMockRepo(), dispatch)

	s, err := o.NewSession(context.Background())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	got, err := o.StartGeneration(context.Background(), s.ID, "restless")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.GenerationStatus != domain.StatusError || got.GenerationError != busyMessage {
		t.Fatalf("expected busy error, got %s %q", got.GenerationStatus, got.GenerationError)
	}
}

func TestOrchestrator_PurgeIdle(t *testing.T) {
	repo := newMockRepo()
	o := NewOrchestrator(&mockComposer{}, &mockFinder{}, repo, nil)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return base }

	old, err := o.NewSession(context.Background())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	o.now = func() time.Time { return base.Add(48 * time.Hour) }
	fresh, err := o.NewSession(context.Background())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	n, err := o.PurgeIdle(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged session, got %d", n)
	}
	if _, err := o.GetSession(context.Background(), old.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected old session gone, got %v", err)
	}
	if _, err := o.GetSession(context.Background(), fresh.ID); err != nil {
		t.Fatalf("expected fresh session kept, got %v", err)
	}
}

func TestOrchestrator_PanicResolvesAttempt(t *testing.T) {
	tests := []struct {
		name     string
		dispatch *mockDispatcher
	}{
		{name: "inline"},
		{name: "dispatched", dispatch: &mockDispatcher{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composer := &panickyComposer{}
			var dispatch ports.Dispatcher
			if tt.dispatch != nil {
				dispatch = tt.dispatch
			}
			o := NewOrchestrator(composer, &mockFinder{}, newMockRepo(), dispatch)

			s, err := o.NewSession(context.Background())
			if err != nil {
				t.Fatalf("new session: %v", err)
			}
			if _, err := o.StartGeneration(context.Background(), s.ID, "restless"); err != nil {
				t.Fatalf("start: %v", err)
			}
			if tt.dispatch != nil {
				tt.dispatch.runAll()
			}

			got, err := o.GetSession(context.Background(), s.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.GenerationStatus != domain.StatusError || got.GenerationError != interruptedMessage {
				t.Fatalf("expected interrupted error, got %s %q", got.GenerationStatus, got.GenerationError)
			}

			composer.calm = true
			if _, err := o.StartGeneration(context.Background(), s.ID, "again"); err != nil {
				t.Fatalf("retry: %v", err)
			}
			if tt.dispatch != nil {
				tt.dispatch.runAll()
			}
			got, _ = o.GetSession(context.Background(), s.ID)
			if got.GenerationStatus != domain.StatusSuccess {
				t.Fatalf("expected retry to succeed, got %s", got.GenerationStatus)
			}
		})
	}
}

func TestOrchestrator_StaleRequest(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*Orchestrator, *mockDispatcher, string) {
		t.Helper()
		dispatch := &mockDispatcher{}
		o := NewOrchestrator(&mockComposer{symphony: calmSymphony}, &mockFinder{}, newMockRepo(), dispatch)
		o.SetStaleAfter(time.Minute)
		o.now = func() time.Time { return base }
		s, err := o.NewSession(context.Background())
		if err != nil {
			t.Fatalf("new session: %v", err)
		}
		if _, err := o.StartGeneration(context.Background(), s.ID, "restless"); err != nil {
			t.Fatalf("start: %v", err)
		}
		// the queued job is never run
		dispatch.jobs = nil
		return o, dispatch, s.ID
	}

	t.Run("busy until stale", func(t *testing.T) {
		o, _, id := setup(t)
		o.now = func() time.Time { return base.Add(30 * time.Second) }
		if _, err := o.StartGeneration(context.Background(), id, "again"); !errors.Is(err, domain.ErrBusy) {
			t.Fatalf("expected ErrBusy before the request is stale, got %v", err)
		}
	})

	t.Run("retry after stale is accepted", func(t *testing.T) {
		o, dispatch, id := setup(t)
		o.now = func() time.Time { return base.Add(2 * time.Minute) }
		got, err := o.StartGeneration(context.Background(), id, "again")
		if err != nil {
			t.Fatalf("expected retry accepted, got %v", err)
		}
		if got.GenerationStatus != domain.StatusLoading || got.Text != "again" {
			t.Fatalf("unexpected state %s %q", got.GenerationStatus, got.Text)
		}
		dispatch.runAll()
		got, _ = o.GetSession(context.Background(), id)
		if got.GenerationStatus != domain.StatusSuccess {
			t.Fatalf("expected success, got %s", got.GenerationStatus)
		}
	})

	t.Run("reading a stale session fails the request", func(t *testing.T) {
		o, _, id := setup(t)
		o.now = func() time.Time { return base.Add(2 * time.Minute) }
		got, err := o.GetSession(context.Background(), id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.GenerationStatus != domain.StatusError || got.GenerationError != timedOutMessage {
			t.Fatalf("expected timed out error, got %s %q", got.GenerationStatus, got.GenerationError)
		}
	})

	t.Run("stale loading session is purged", func(t *testing.T) {
		o, _, id := setup(t)
		o.now = func() time.Time { return base.Add(48 * time.Hour) }
		n, err := o.PurgeIdle(context.Background(), 24*time.Hour)
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 purged session, got %d", n)
		}
		if _, err := o.GetSession(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected session gone, got %v", err)
		}
	})
}

func TestOrchestrator_AbandonInFlight(t *testing.T) {
	repo := newMockRepo()
	dispatch := &mockDispatcher{}
	before := NewOrchestrator(&mockComposer{symphony: calmSymphony}, &mockFinder{}, repo, dispatch)

	composing, _ := before.NewSession(context.Background())
	if _, err := before.StartGeneration(context.Background(), composing.ID, "restless"); err != nil {
		t.Fatalf("start: %v", err)
	}
	settled, _ := before.NewSession(context.Background())

	// a restarted process sees the same store but none of the queued jobs
	after := NewOrchestrator(&mockComposer{symphony: calmSymphony}, &mockFinder{}, repo, &mockDispatcher{})
	n, err := after.AbandonInFlight(context.Background())
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 abandoned session, got %d", n)
	}

	got, _ := after.GetSession(context.Background(), composing.ID)
	if got.GenerationStatus != domain.StatusError || got.GenerationError != interruptedMessage {
		t.Fatalf("expected interrupted error, got %s %q", got.GenerationStatus, got.GenerationError)
	}
	if _, err := after.StartGeneration(context.Background(), composing.ID, "again"); err != nil {
		t.Fatalf("expected retry accepted, got %v", err)
	}

	// a job from the old process finishing late changes nothing
	dispatch.runAll()
	got, _ = after.GetSession(context.Background(), composing.ID)
	if got.Text != "again" || got.GenerationStatus != domain.StatusLoading {
		t.Fatalf("expected retry to stay loading, got %s %q", got.GenerationStatus, got.Text)
	}

	if got, _ := after.GetSession(context.Background(), settled.ID); got.GenerationStatus != domain.StatusIdle {
		t.Fatalf("expected idle session untouched, got %s", got.GenerationStatus)
	}
}

// --- Mocks ---

// panickyComposer panics until calm is set.
type panickyComposer struct {
	calm bool
}

func (p *panickyComposer) Compose(ctx context.Context, in domain.EmotionInput) (domain.Symphony, error) {
	if !p.calm {
		panic("composer exploded")
	}
	return calmSymphony, nil
}

type mockComposer struct {
	symphony domain.Symphony
	err      error

	called bool
	input  domain.EmotionInput
}

func (m *mockComposer) Compose(ctx context.Context, in domain.EmotionInput) (domain.Symphony, error) {
	m.called = true
	m.input = in
	if m.err != nil {
		return domain.Symphony{}, m.err
	}
	return m.symphony, nil
}

type mockFinder struct {
	track domain.Track
	err   error

	keyword string
}

func (m *mockFinder) FindSoundtrack(ctx context.Context, s domain.Symphony) (domain.Track, error) {
	m.keyword = s.PrimaryMoodKeyword
	if m.err != nil {
		return domain.Track{}, m.err
	}
	return m.track, nil
}

// mockRepo keeps sessions in a map.
type mockRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: map[string]domain.Session{}}
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) Save(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *mockRepo) DeleteIdleSince(ctx context.Context, cutoff, loadingCutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if !s.UpdatedAt.Before(cutoff) {
			continue
		}
		if s.InFlight() && !s.UpdatedAt.Before(loadingCutoff) {
			continue
		}
		delete(m.sessions, id)
		n++
	}
	return n, nil
}

func (m *mockRepo) ListInFlight(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if s.InFlight() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockRepo) Ping(ctx context.Context) error { return nil }

// mockDispatcher queues jobs until runAll is called.
type mockDispatcher struct {
	err  error
	jobs []func(ctx context.Context)
}

func (m *mockDispatcher) Submit(job func(ctx context.Context)) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockDispatcher) runAll() {
	jobs := m.jobs
	m.jobs = nil
	for _, job := range jobs {
		job(context.Background())
	}
}
