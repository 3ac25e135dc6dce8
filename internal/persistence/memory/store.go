// Package memory provides an in-memory store implementation for local
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"example.com/challenge/internal/domain"
)

// Store keeps challenges, memberships, and completions in process memory. It
// implements the three domain store interfaces behind a single mutex, so the
// completion uniqueness check and insert are atomic.
type Store struct {
	mu          sync.RWMutex
	challenges  map[string]domain.Challenge
	order       []string
	memberships map[string][]domain.Membership // challengeID -> members in join order
	userJoins   map[string][]string            // userID -> challengeIDs in join order
	completions map[string]domain.Completion   // composite key -> row
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		challenges:  make(map[string]domain.Challenge),
		memberships: make(map[string][]domain.Membership),
		userJoins:   make(map[string][]string),
		completions: make(map[string]domain.Completion),
	}
}

// CreateChallenge stores the challenge and the creator membership together.
func (s *Store) CreateChallenge(ctx context.Context, ch domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[ch.ID]; ok {
		return fmt.Errorf("challenge %s already exists", ch.ID)
	}
	s.challenges[ch.ID] = ch
	s.order = append(s.order, ch.ID)
	s.addMembership(ch.ID, ch.CreatorID, ch.CreatedAt)
	return nil
}

// GetChallenge returns the challenge or nil when absent.
func (s *Store) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.challenges[id]
	if !ok {
		return nil, nil
	}
	copied := ch
	copied.Exercises = append([]domain.Exercise(nil), ch.Exercises...)
	return &copied, nil
}

// ListChallenges returns challenges in insertion order.
func (s *Store) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Challenge, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.challenges[id])
	}
	return out, nil
}

// AddExercise appends an exercise to an existing challenge.
func (s *Store) AddExercise(ctx context.Context, challengeID string, ex domain.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[challengeID]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	ch.Exercises = append(ch.Exercises, ex)
	s.challenges[challengeID] = ch
	return nil
}

// Join adds the user to the challenge.
func (s *Store) Join(ctx context.Context, challengeID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[challengeID]; !ok {
		return domain.ErrChallengeNotFound
	}
	for _, m := range s.memberships[challengeID] {
		if m.UserID == userID {
			return domain.ErrAlreadyMember
		}
	}
	s.addMembership(challengeID, userID, at)
	return nil
}

// Leave removes the user's membership.
func (s *Store) Leave(ctx context.Context, challengeID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.memberships[challengeID]
	for i, m := range members {
		if m.UserID != userID {
			continue
		}
		s.memberships[challengeID] = append(members[:i:i], members[i+1:]...)
		joins := s.userJoins[userID]
		for j, id := range joins {
			if id == challengeID {
				s.userJoins[userID] = append(joins[:j:j], joins[j+1:]...)
				break
			}
		}
		return nil
	}
	return domain.ErrNotMember
}

// IsMember reports whether the user participates in the challenge.
func (s *Store) IsMember(ctx context.Context, challengeID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.memberships[challengeID] {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ListMembers returns participant IDs in join order.
func (s *Store) ListMembers(ctx context.Context, challengeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.memberships[challengeID]
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.UserID)
	}
	return out, nil
}

// ListChallengesFor returns the user's challenges in join order.
func (s *Store) ListChallengesFor(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.userJoins[userID]...), nil
}

// ListUsers returns every user holding at least one membership.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.userJoins))
	for userID, joins := range s.userJoins {
		if len(joins) > 0 {
			out = append(out, userID)
		}
	}
	return out, nil
}

// RecordCompletion inserts the completion, rejecting same-day duplicates. The
// check and insert run under one lock, so concurrent duplicates cannot both
// pass.
func (s *Store) RecordCompletion(ctx context.Context, c domain.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := completionKey(c.ChallengeID, c.UserID, c.Date, c.ExerciseID)
	if _, ok := s.completions[key]; ok {
		return domain.ErrAlreadyCompleted
	}
	s.completions[key] = c
	return nil
}

// IsCompletedOn reports whether any completion exists for the cell.
func (s *Store) IsCompletedOn(ctx context.Context, challengeID, userID string, date domain.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.completions {
		if c.ChallengeID == challengeID && c.UserID == userID && c.Date == date {
			return true, nil
		}
	}
	return false, nil
}

// CompletedOn returns the set of challenge IDs the user completed on the date.
func (s *Store) CompletedOn(ctx context.Context, userID string, date domain.Date) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool)
	for _, c := range s.completions {
		if c.UserID == userID && c.Date == date {
			out[c.ChallengeID] = true
		}
	}
	return out, nil
}

func (s *Store) addMembership(challengeID, userID string, at time.Time) {
	s.memberships[challengeID] = append(s.memberships[challengeID], domain.Membership{
		ChallengeID: challengeID,
		UserID:      userID,
		JoinedAt:    at,
	})
	s.userJoins[userID] = append(s.userJoins[userID], challengeID)
}

func completionKey(challengeID, userID string, date domain.Date, exerciseID string) string {
	return challengeID + "|" + userID + "|" + string(date) + "|" + exerciseID
}
