package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/aura/internal/core/domain"
	"github.com/ewilliams-labs/aura/internal/core/ports"
)

const (
	busyMessage        = "The service is busy right now. Please try again in a moment."
	interruptedMessage = "The request was interrupted. Please try again."
	timedOutMessage    = "The request took too long. Please try again."
)

// DefaultStaleAfter is how long a session may stay loading without an
// update before the request is treated as lost.
const DefaultStaleAfter = 2 * time.Minute

// Orchestrator drives the session state machine and sequences calls to the
// symphony composer and the track finder.
type Orchestrator struct {
	composer ports.SymphonyComposer
	finder   ports.TrackFinder
	repo     ports.SessionRepository
	dispatch ports.Dispatcher // nil runs capability calls inline

	// serializes load-apply-save; never held across a capability call
	mu         sync.Mutex
	now        func() time.Time
	newID      func() string
	staleAfter time.Duration
}

// NewOrchestrator constructs an Orchestrator. dispatch may be nil.
func NewOrchestrator(composer ports.SymphonyComposer, finder ports.TrackFinder, repo ports.SessionRepository, dispatch ports.Dispatcher) *Orchestrator {
	return &Orchestrator{
		composer: composer,
		finder:   finder,
		repo:     repo,
		dispatch: dispatch,
		now:        time.Now,
		newID:      uuid.NewString,
		staleAfter: DefaultStaleAfter,
	}
}

// SetStaleAfter changes how long a loading session may go without an update
// before its request is failed. Zero disables the check.
func (o *Orchestrator) SetStaleAfter(d time.Duration) {
	o.staleAfter = d
}

// Compose runs the symphony composer once without touching any session.
func (o *Orchestrator) Compose(ctx context.Context, in domain.EmotionInput) (domain.Symphony, error) {
	sym, err := o.composer.Compose(ctx, in)
	if err != nil {
		return domain.Symphony{}, fmt.Errorf("service: compose: %w", err)
	}
	return sym, nil
}

// FindSoundtrack runs the track finder once without touching any session.
func (o *Orchestrator) FindSoundtrack(ctx context.Context, sym domain.Symphony) (domain.Track, error) {
	track, err := o.finder.FindSoundtrack(ctx, sym)
	if err != nil {
		return domain.Track{}, fmt.Errorf("service: find soundtrack: %w", err)
	}
	return track, nil
}

// NewSession creates and stores an idle session.
func (o *Orchestrator) NewSession(ctx context.Context) (domain.Session, error) {
	s, err := domain.NewSession(o.newID(), o.now())
	if err != nil {
		return domain.Session{}, fmt.Errorf("service: %w", err)
	}
	if err := o.repo.Save(ctx, s); err != nil {
		return domain.Session{}, fmt.Errorf("service: failed to persist new session: %w", err)
	}
	return s, nil
}

// GetSession loads a session by id.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if id == "" {
		return domain.Session{}, fmt.Errorf("service: session id cannot be empty: %w", domain.ErrNotFound)
	}
	s, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("service: failed to load session: %w", err)
	}
	if o.stale(s) {
		return o.update(ctx, id, domain.RequestsAbandoned{Message: timedOutMessage})
	}
	return s, nil
}

// StartGeneration resets the session and composes a symphony from text and
// the captured image. With a dispatcher the loading session is returned
// immediately; otherwise the resolved session is returned.
func (o *Orchestrator) StartGeneration(ctx context.Context, id, text string) (domain.Session, error) {
	s, err := o.update(ctx, id, domain.GenerationRequested{Text: text})
	if err != nil {
		return s, err
	}

	seq := s.GenerationSeq
	in := s.EmotionInput()
	run := func(ctx context.Context) domain.Session {
		logger := zerolog.Ctx(ctx)
		start := time.Now()
		sym, err := o.composer.Compose(ctx, in)
		var ev domain.Event = domain.GenerationSucceeded{Seq: seq, Symphony: sym}
		if err != nil {
			logger.Warn().Err(err).Str("session_id", id).Dur("duration", time.Since(start)).Msg("Symphony generation failed")
			ev = domain.GenerationFailed{Seq: seq, Message: generationMessage(err)}
		} else {
			logger.Info().Str("session_id", id).Str("title", sym.Title).Dur("duration", time.Since(start)).Msg("Symphony generated")
		}
		return o.resolve(ctx, id, ev)
	}
	failed := func(msg string) domain.Event { return domain.GenerationFailed{Seq: seq, Message: msg} }
	return o.launch(ctx, s, run, failed)
}

// FindTrack searches a track for the session's symphony. It fails with
// domain.ErrNoSymphony, leaving the session unchanged, when none is present.
func (o *Orchestrator) FindTrack(ctx context.Context, id string) (domain.Session, error) {
	s, err := o.update(ctx, id, domain.TrackRequested{})
	if err != nil {
		return s, err
	}

	seq := s.TrackSeq
	sym := *s.Symphony
	run := func(ctx context.Context) domain.Session {
		logger := zerolog.Ctx(ctx)
		track, err := o.finder.FindSoundtrack(ctx, sym)
		var ev domain.Event = domain.TrackFound{Seq: seq, Track: track}
		if err != nil {
			logger.Warn().Err(err).Str("session_id", id).Str("keyword", sym.PrimaryMoodKeyword).Msg("Track search failed")
			ev = domain.TrackFailed{Seq: seq, Message: trackMessage(err)}
		} else {
			logger.Info().Str("session_id", id).Str("track_id", track.ID).Str("keyword", sym.PrimaryMoodKeyword).Msg("Track found")
		}
		return o.resolve(ctx, id, ev)
	}
	failed := func(msg string) domain.Event { return domain.TrackFailed{Seq: seq, Message: msg} }
	return o.launch(ctx, s, run, failed)
}

// CaptureImage attaches an image data URL to the next generation request.
func (o *Orchestrator) CaptureImage(ctx context.Context, id, dataURL string) (domain.Session, error) {
	return o.update(ctx, id, domain.ImageCaptured{DataURL: dataURL})
}

// RemoveImage drops the captured image.
func (o *Orchestrator) RemoveImage(ctx context.Context, id string) (domain.Session, error) {
	return o.update(ctx, id, domain.ImageRemoved{})
}

// Ready reports whether the session store is reachable.
func (o *Orchestrator) Ready(ctx context.Context) error {
	if err := o.repo.Ping(ctx); err != nil {
		return fmt.Errorf("service: session store unavailable: %w", err)
	}
	return nil
}

// AbandonInFlight fails every request a previous process left loading. It
// is meant to run once at startup, before any job is dispatched.
func (o *Orchestrator) AbandonInFlight(ctx context.Context) (int, error) {
	ids, err := o.repo.ListInFlight(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: failed to list in-flight sessions: %w", err)
	}
	for _, id := range ids {
		if _, err := o.update(ctx, id, domain.RequestsAbandoned{Message: interruptedMessage}); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// PurgeIdle deletes sessions not updated within maxAge. Loading sessions
// are only deleted once their request is also stale.
func (o *Orchestrator) PurgeIdle(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := o.now()
	cutoff := now.Add(-maxAge)
	var loadingCutoff time.Time
	if o.staleAfter > 0 {
		loadingCutoff = now.Add(-o.staleAfter)
		if cutoff.Before(loadingCutoff) {
			loadingCutoff = cutoff
		}
	}
	n, err := o.repo.DeleteIdleSince(ctx, cutoff, loadingCutoff)
	if err != nil {
		return 0, fmt.Errorf("service: failed to purge sessions: %w", err)
	}
	return n, nil
}

// launch runs the capability call inline or hands it to the dispatcher.
// A call that panics resolves the attempt with failed.
func (o *Orchestrator) launch(ctx context.Context, loading domain.Session, run func(context.Context) domain.Session, failed func(string) domain.Event) (domain.Session, error) {
	guarded := func(ctx context.Context) (s domain.Session) {
		defer func() {
			if r := recover(); r != nil {
				zerolog.Ctx(ctx).Error().Interface("panic", r).Str("session_id", loading.ID).Msg("Capability call panicked")
				s = o.resolve(ctx, loading.ID, failed(interruptedMessage))
			}
		}()
		return run(ctx)
	}

	if o.dispatch == nil {
		return guarded(ctx), nil
	}

	logger := zerolog.Ctx(ctx)
	err := o.dispatch.Submit(func(jobCtx context.Context) {
		guarded(logger.WithContext(jobCtx))
	})
	if err != nil {
		logger.Warn().Err(err).Str("session_id", loading.ID).Msg("Dispatcher rejected job")
		return o.resolve(ctx, loading.ID, failed(busyMessage)), nil
	}
	return loading, nil
}

// stale reports whether a loading session has gone without an update for
// longer than staleAfter.
func (o *Orchestrator) stale(s domain.Session) bool {
	return o.staleAfter > 0 && s.InFlight() && o.now().Sub(s.UpdatedAt) > o.staleAfter
}

func (o *Orchestrator) update(ctx context.Context, id string, ev domain.Event) (domain.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("service: failed to load session: %w", err)
	}
	if o.stale(s) {
		zerolog.Ctx(ctx).Warn().Str("session_id", id).Time("updated_at", s.UpdatedAt).Msg("Abandoning stale request")
		s, _ = domain.Apply(s, domain.RequestsAbandoned{Message: timedOutMessage})
		s.UpdatedAt = o.now()
		if err := o.repo.Save(ctx, s); err != nil {
			return s, fmt.Errorf("service: failed to save session: %w", err)
		}
	}

	next, err := domain.Apply(s, ev)
	if err != nil {
		return s, fmt.Errorf("service: %w", err)
	}
	next.UpdatedAt = o.now()

	if err := o.repo.Save(ctx, next); err != nil {
		return s, fmt.Errorf("service: failed to save session: %w", err)
	}
	return next, nil
}

// resolve applies a capability outcome. Failures are logged because the
// caller may already be gone.
func (o *Orchestrator) resolve(ctx context.Context, id string, ev domain.Event) domain.Session {
	s, err := o.update(context.WithoutCancel(ctx), id, ev)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", id).Msg("Failed to record capability result")
	}
	return s
}

func generationMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidImage) {
		return "Failed to generate symphony: the captured image could not be read."
	}
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		return "Failed to generate symphony: " + genErr.Message
	}
	return "An unknown error occurred while communicating with the AI."
}

func trackMessage(err error) string {
	var searchErr *domain.TrackSearchError
	if errors.As(err, &searchErr) {
		return "Could not find a soundtrack: " + searchErr.Message
	}
	return "Could not connect to the music service. Please try again later."
}
