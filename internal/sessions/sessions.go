// Package sessions holds running timer sessions in memory, keyed by user
// id. Sessions are deliberately not durable: a restart loses at most an
// in-progress timer, never billed data.
package sessions

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lncworks/casebilling/internal/model"
)

// Store enforces the one-running-session-per-user invariant. Start is a
// single check-and-set under the lock and Stop is a compare-and-clear, so
// two concurrent starts (or stops) for the same user cannot both succeed.
type Store struct {
	mu     sync.Mutex
	byUser map[string]*model.TimerSession
}

func New() *Store {
	return &Store{byUser: make(map[string]*model.TimerSession)}
}

// Start creates a running session for the user, failing with ErrConflict
// if one already exists.
func (s *Store) Start(userID, caseID string, activity model.ActivityType, startedAt time.Time) (*model.TimerSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[userID]; ok {
		return nil, fmt.Errorf("%w: timer already running for user %s", model.ErrConflict, userID)
	}
	sess := &model.TimerSession{
		SessionID:    uuid.New().String(),
		UserID:       userID,
		CaseID:       caseID,
		ActivityType: activity,
		StartedAt:    startedAt,
	}
	s.byUser[userID] = sess
	return sess, nil
}

// Stop removes and returns the user's running session if its id matches.
// The first caller wins; later callers get ErrNotFound.
func (s *Store) Stop(userID, sessionID string) (*model.TimerSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUser[userID]
	if !ok || sess.SessionID != sessionID {
		return nil, fmt.Errorf("%w: no running session %s for user %s", model.ErrNotFound, sessionID, userID)
	}
	delete(s.byUser, userID)
	return sess, nil
}

// Restore puts a stopped session back, keeping its original id and start
// time. It is a no-op if the user meanwhile started another timer.
func (s *Store) Restore(sess *model.TimerSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[sess.UserID]; ok {
		return false
	}
	s.byUser[sess.UserID] = sess
	return true
}

// Active returns the user's running session, if any.
func (s *Store) Active(userID string) (*model.TimerSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUser[userID]
	return sess, ok
}
