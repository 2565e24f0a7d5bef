package callsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"voice-server/internal/observability"

	"github.com/google/uuid"
)

// ErrNotFound indicates that no session is staged for a call control ID.
// Lookup misses are expected under at-least-once webhook delivery and are
// never propagated as hard failures.
var ErrNotFound = errors.New("call session not found")

// State tracks where a call is in its provider lifecycle. Transitions are
// driven only by the initiator's creation call and by provider webhooks.
type State string

const (
	StateRequested State = "requested"
	StateInitiated State = "initiated"
	StateAnswered  State = "answered"
	StatePlaying   State = "playing"
	StateHungUp    State = "hung_up"
)

// AudioArtifact is a synthesized speech clip staged for playback on a call.
type AudioArtifact struct {
	ID        uuid.UUID
	Text      string
	WAV       []byte
	CreatedAt time.Time
}

// Session correlates an outbound call with the artifact staged for it.
type Session struct {
	CallControlID string
	To            string
	From          string
	State         State
	Artifact      AudioArtifact
	CreatedAt     time.Time
	AnsweredAt    *time.Time
}

// Store is the process-wide mapping from call control ID to staged session.
// It is the only mutable state shared between the call initiator and the
// webhook dispatcher; all methods are safe for concurrent use. No method
// holds the lock across a network call.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	artifacts map[uuid.UUID]string // artifact ID -> call control ID
	logger    *observability.Logger
}

// New creates an empty store.
func New(logger *observability.Logger) *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		artifacts: make(map[uuid.UUID]string),
		logger:    logger,
	}
}

// Put stages an artifact for a call, creating the session if needed.
// A call has at most one staged artifact: last write wins.
func (s *Store) Put(callControlID string, to, from string, artifact AudioArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[callControlID]
	if !ok {
		session = &Session{
			CallControlID: callControlID,
			To:            to,
			From:          from,
			State:         StateRequested,
			CreatedAt:     time.Now(),
		}
		s.sessions[callControlID] = session
	} else {
		delete(s.artifacts, session.Artifact.ID)
	}
	session.Artifact = artifact
	s.artifacts[artifact.ID] = callControlID
}

// Get returns the most recently staged artifact for a call. It does not
// remove the artifact, so retried webhook deliveries read the same clip.
func (s *Store) Get(callControlID string) (AudioArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[callControlID]
	if !ok || session.Artifact.ID == uuid.Nil {
		return AudioArtifact{}, ErrNotFound
	}
	return session.Artifact, nil
}

// GetArtifact looks up an artifact by its own ID, for HTTP serving.
func (s *Store) GetArtifact(artifactID uuid.UUID) (AudioArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	callControlID, ok := s.artifacts[artifactID]
	if !ok {
		return AudioArtifact{}, ErrNotFound
	}
	session, ok := s.sessions[callControlID]
	if !ok {
		return AudioArtifact{}, ErrNotFound
	}
	return session.Artifact, nil
}

// GetSession returns a snapshot of the session for a call.
func (s *Store) GetSession(callControlID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[callControlID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *session, nil
}

// SetState transitions a session's lifecycle state.
func (s *Store) SetState(callControlID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[callControlID]
	if !ok {
		return ErrNotFound
	}
	session.State = state
	if state == StateAnswered && session.AnsweredAt == nil {
		now := time.Now()
		session.AnsweredAt = &now
	}
	return nil
}

// Evict removes a call's session and its artifact, on hangup or expiry.
func (s *Store) Evict(callControlID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(callControlID)
}

func (s *Store) evictLocked(callControlID string) {
	session, ok := s.sessions[callControlID]
	if !ok {
		return
	}
	delete(s.artifacts, session.Artifact.ID)
	delete(s.sessions, callControlID)
}

// Sweep purges sessions older than maxAge and returns how many were removed.
// It bounds memory growth from calls whose hangup event was lost.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for callControlID, session := range s.sessions {
		if session.CreatedAt.Before(cutoff) {
			if session.State == StateRequested || session.State == StateInitiated {
				// The call never progressed; its hangup event was likely lost.
				s.logger.Warn(observability.WithFields(context.Background(),
					observability.Field{Key: "call_control_id", Value: callControlID},
					observability.Field{Key: "state", Value: string(session.State)},
				), "Sweeping session still awaiting webhook delivery")
			}
			s.evictLocked(callControlID)
			swept++
		}
	}
	return swept
}

// Len reports how many sessions are currently staged.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSweeper runs periodic sweeps until the context is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if swept := s.Sweep(maxAge); swept > 0 {
					s.logger.Info(observability.WithFields(ctx,
						observability.Field{Key: "swept_sessions", Value: swept},
					), "Swept expired call sessions")
				}
			}
		}
	}()
}
