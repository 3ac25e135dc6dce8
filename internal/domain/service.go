// Package domain defines the business logic for the challenge tracking service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidInput indicates malformed arguments rejected before touching storage.
	ErrInvalidInput = errors.New("invalid input")
	// ErrChallengeNotFound is returned when a referenced challenge does not exist.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrAlreadyMember indicates the user already joined the challenge.
	ErrAlreadyMember = errors.New("user is already a member")
	// ErrNotMember indicates the user is not a participant of the challenge.
	ErrNotMember = errors.New("user is not a member")
	// ErrNotCreator indicates the operation is reserved for the challenge creator.
	ErrNotCreator = errors.New("user is not the challenge creator")
	// ErrAlreadyCompleted indicates a completion already exists for the date.
	ErrAlreadyCompleted = errors.New("challenge already completed for date")
)

// Clock supplies the current instant and calendar day in the service timezone.
type Clock interface {
	Now() time.Time
	Today() Date
}

// ChallengeStore captures challenge persistence operations. CreateChallenge
// records the creator membership in the same transaction so a challenge can
// never exist without its creator joined.
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, ch Challenge) error
	GetChallenge(ctx context.Context, id string) (*Challenge, error)
	ListChallenges(ctx context.Context) ([]Challenge, error)
	AddExercise(ctx context.Context, challengeID string, ex Exercise) error
}

// MembershipStore captures participant persistence operations.
type MembershipStore interface {
	Join(ctx context.Context, challengeID, userID string, at time.Time) error
	Leave(ctx context.Context, challengeID, userID string) error
	IsMember(ctx context.Context, challengeID, userID string) (bool, error)
	ListMembers(ctx context.Context, challengeID string) ([]string, error)
	ListChallengesFor(ctx context.Context, userID string) ([]string, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// CompletionStore captures the append-only completion ledger. RecordCompletion
// must perform its uniqueness check and insert atomically.
type CompletionStore interface {
	RecordCompletion(ctx context.Context, c Completion) error
	IsCompletedOn(ctx context.Context, challengeID, userID string, date Date) (bool, error)
	CompletedOn(ctx context.Context, userID string, date Date) (map[string]bool, error)
}

// Service orchestrates challenge workflows over the three stores. It holds no
// state of its own beyond the injected collaborators.
type Service struct {
	challenges  ChallengeStore
	memberships MembershipStore
	completions CompletionStore
	clock       Clock
}

// NewService constructs a Service.
func NewService(challenges ChallengeStore, memberships MembershipStore, completions CompletionStore, clock Clock) *Service {
	return &Service{
		challenges:  challenges,
		memberships: memberships,
		completions: completions,
		clock:       clock,
	}
}

// ExerciseInput captures a target metric supplied at challenge creation.
type ExerciseInput struct {
	Name       string
	TargetReps int
}

// CreateChallenge persists a new challenge and auto-joins the creator.
func (s *Service) CreateChallenge(ctx context.Context, name, creatorID string, exercises []ExerciseInput) (*Challenge, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: challenge name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(creatorID) == "" {
		return nil, fmt.Errorf("%w: creator id is required", ErrInvalidInput)
	}

	now := s.clock.Now()
	ch := Challenge{
		ID:        NewChallengeID(name),
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: now,
	}
	for _, ex := range exercises {
		built, err := buildExercise(ex)
		if err != nil {
			return nil, err
		}
		ch.Exercises = append(ch.Exercises, built)
	}

	if err := s.challenges.CreateChallenge(ctx, ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChallenge fetches a challenge by ID.
func (s *Service) GetChallenge(ctx context.Context, id string) (*Challenge, error) {
	ch, err := s.challenges.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChallengeNotFound
	}
	return ch, nil
}

// ListChallenges returns all challenges in insertion order.
func (s *Service) ListChallenges(ctx context.Context) ([]Challenge, error) {
	return s.challenges.ListChallenges(ctx)
}

// AddExercise appends a target metric to an existing challenge. Only the
// creator may extend a challenge.
func (s *Service) AddExercise(ctx context.Context, challengeID, requesterID, name string, targetReps int) (*Exercise, error) {
	ch, err := s.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.CreatorID != requesterID {
		return nil, ErrNotCreator
	}

	ex, err := buildExercise(ExerciseInput{Name: name, TargetReps: targetReps})
	if err != nil {
		return nil, err
	}
	if err := s.challenges.AddExercise(ctx, challengeID, ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

// JoinChallenge adds the user as a participant.
func (s *Service) JoinChallenge(ctx context.Context, challengeID, userID string) error {
	return s.memberships.Join(ctx, challengeID, userID, s.clock.Now())
}

// LeaveChallenge removes the user's membership. Completions are retained.
func (s *Service) LeaveChallenge(ctx context.Context, challengeID, userID string) error {
	return s.memberships.Leave(ctx, challengeID, userID)
}

// CompleteChallenge records a completion for the given date. Membership is a
// precondition; same-day duplicates are rejected, never overwritten.
func (s *Service) CompleteChallenge(ctx context.Context, challengeID, userID string, date Date, exerciseID string, reps int) error {
	if date == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}

	ch, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrChallengeNotFound
	}

	member, err := s.memberships.IsMember(ctx, challengeID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotMember
	}

	return s.completions.RecordCompletion(ctx, Completion{
		ChallengeID: challengeID,
		UserID:      userID,
		Date:        date,
		ExerciseID:  exerciseID,
		Reps:        reps,
		CompletedAt: s.clock.Now(),
	})
}

// ChallengeStatus is one row of a user's daily status view.
type ChallengeStatus struct {
	Challenge   Challenge
	Completed   bool
	MemberCount int
}

// StatusFor reports completion state and member count for every challenge the
// user belongs to, newest challenge first, ties broken by identifier.
func (s *Service) StatusFor(ctx context.Context, userID string, date Date) ([]ChallengeStatus, error) {
	ids, err := s.memberships.ListChallengesFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]ChallengeStatus, 0, len(ids))
	for _, id := range ids {
		ch, err := s.challenges.GetChallenge(ctx, id)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			continue
		}

		completed, err := s.completions.IsCompletedOn(ctx, id, userID, date)
		if err != nil {
			return nil, err
		}
		members, err := s.memberships.ListMembers(ctx, id)
		if err != nil {
			return nil, err
		}

		statuses = append(statuses, ChallengeStatus{
			Challenge:   *ch,
			Completed:   completed,
			MemberCount: len(members),
		})
	}

	sort.SliceStable(statuses, func(i, j int) bool {
		a, b := statuses[i].Challenge, statuses[j].Challenge
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return statuses, nil
}

// ReminderTargets maps every user with at least one incomplete challenge on
// the date to those challenges, in join order. Users who completed everything
// are omitted. Pure query, no side effects.
func (s *Service) ReminderTargets(ctx context.Context, date Date) (map[string][]Challenge, error) {
	users, err := s.memberships.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	targets := make(map[string][]Challenge)
	for _, userID := range users {
		ids, err := s.memberships.ListChallengesFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}

		completed, err := s.completions.CompletedOn(ctx, userID, date)
		if err != nil {
			return nil, err
		}

		var incomplete []Challenge
		for _, id := range ids {
			if completed[id] {
				continue
			}
			ch, err := s.challenges.GetChallenge(ctx, id)
			if err != nil {
				return nil, err
			}
			if ch == nil {
				continue
			}
			incomplete = append(incomplete, *ch)
		}
		if len(incomplete) > 0 {
			targets[userID] = incomplete
		}
	}
	return targets, nil
}

func buildExercise(in ExerciseInput) (Exercise, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Exercise{}, fmt.Errorf("%w: exercise name is required", ErrInvalidInput)
	}
	if in.TargetReps <= 0 {
		return Exercise{}, fmt.Errorf("%w: target reps must be > 0", ErrInvalidInput)
	}
	return Exercise{ID: NewExerciseID(), Name: name, TargetReps: in.TargetReps}, nil
}
