package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Challenge is a named recurring goal users join and complete daily.
type Challenge struct {
	ID        string
	Name      string
	CreatorID string
	Exercises []Exercise
	CreatedAt time.Time
}

// Exercise is an optional per-challenge target metric (e.g. "pushups", 10 reps).
type Exercise struct {
	ID         string
	Name       string
	TargetReps int
}

// Membership makes a user a participant in a challenge.
type Membership struct {
	ChallengeID string
	UserID      string
	JoinedAt    time.Time
}

// Completion records that a user satisfied a challenge on a calendar date.
// ExerciseID is empty for challenge-level completions.
type Completion struct {
	ChallengeID string
	UserID      string
	Date        Date
	ExerciseID  string
	Reps        int
	CompletedAt time.Time
}

// Date is a calendar day in ISO format (YYYY-MM-DD), always produced
// through the injected clock so tests can pin "today".
type Date string

const dateLayout = "2006-01-02"

// DateOf truncates a timestamp to its calendar day in the timestamp's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate validates and normalizes an ISO date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: invalid date %q", ErrInvalidInput, s)
	}
	return DateOf(t), nil
}

// Time returns the UTC midnight instant of the date, for DATE column encoding.
func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

func (d Date) String() string { return string(d) }

// NewExerciseID returns a fresh exercise identifier.
func NewExerciseID() string {
	return uuid.NewString()
}

// NewChallengeID derives a short, collision-resistant identifier from the
// challenge name: a slug prefix plus an 8-character random suffix.
func NewChallengeID(name string) string {
	prefix := slug.Make(name)
	if len(prefix) > 24 {
		prefix = prefix[:24]
	}
	suffix := uuid.NewString()[:8]
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}
