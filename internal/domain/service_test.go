package domain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/challenge/internal/clock"
	"example.com/challenge/internal/domain"
	"example.com/challenge/internal/persistence/memory"
)

func newTestService(t *testing.T) (*domain.Service, *memory.Store, clock.Fixed) {
	t.Helper()
	fixed := clock.Fixed{Instant: time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	return domain.NewService(store, store, store, fixed), store, fixed
}

func TestCreateChallengeAutoJoinsCreator(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService(t)

	ch, err := service.CreateChallenge(ctx, "pushups", "user-a", []domain.ExerciseInput{
		{Name: "pushups", TargetReps: 10},
	})
	require.NoError(t, err)
	require.NotEmpty(t, ch.ID)
	require.Equal(t, "pushups", ch.Name)
	require.Len(t, ch.Exercises, 1)

	joined, err := store.ListChallengesFor(ctx, "user-a")
	require.NoError(t, err)
	require.Contains(t, joined, ch.ID)
}

func TestCreateChallengeRejectsEmptyName(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.CreateChallenge(context.Background(), "   ", "user-a", nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateChallengeRejectsBadExercise(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.CreateChallenge(context.Background(), "squats", "user-a", []domain.ExerciseInput{
		{Name: "squats", TargetReps: 0},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestJoinChallengeMapsNotFound(t *testing.T) {
	service, _, _ := newTestService(t)

	err := service.JoinChallenge(context.Background(), "missing", "user-b")
	require.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestJoinTwiceRejected(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	ch, err := service.CreateChallenge(ctx, "planks", "user-a", nil)
	require.NoError(t, err)

	require.NoError(t, service.JoinChallenge(ctx, ch.ID, "user-b"))
	require.ErrorIs(t, service.JoinChallenge(ctx, ch.ID, "user-b"), domain.ErrAlreadyMember)
}

func TestLeaveIsIdempotentAcrossCalls(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	ch, err := service.CreateChallenge(ctx, "planks", "user-a", nil)
	require.NoError(t, err)
	require.NoError(t, service.JoinChallenge(ctx, ch.ID, "user-b"))

	require.NoError(t, service.LeaveChallenge(ctx, ch.ID, "user-b"))
	require.ErrorIs(t, service.LeaveChallenge(ctx, ch.ID, "user-b"), domain.ErrNotMember)
}

func TestCompleteChallengeTwiceSameDay(t *testing.T) {
	ctx := context.Background()
	service, _, fixed := newTestService(t)
	date := fixed.Today()

	ch, err := service.CreateChallenge(ctx, "pushups", "user-a", nil)
	require.NoError(t, err)

	require.NoError(t, service.CompleteChallenge(ctx, ch.ID, "user-a", date, "", 10))
	require.ErrorIs(t, service.CompleteChallenge(ctx, ch.ID, "user-a", date, "", 12), domain.ErrAlreadyCompleted)
}

func TestCompleteChallengeNextDayStartsFresh(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	ch, err := service.CreateChallenge(ctx, "pushups", "user-a", nil)
	require.NoError(t, err)

	require.NoError(t, service.CompleteChallenge(ctx, ch.ID, "user-a", domain.Date("2024-01-01"), "", 10))
	require.NoError(t, service.CompleteChallenge(ctx, ch.ID, "user-a", domain.Date("2024-01-02"), "", 10))
}

func TestCompleteChallengeRequiresMembership(t *testing.T) {
	ctx := context.Background()
	service, _, fixed := newTestService(t)

	ch, err := service.CreateChallenge(ctx, "pushups", "user-a", nil)
	require.NoError(t, err)

	err = service.CompleteChallenge(ctx, ch.ID, "user-b", fixed.Today(), "", 10)
	require.ErrorIs(t, err, domain.ErrNotMember)
}

func TestCompleteChallengeMissingChallenge(t *testing.T) {
	service, _, fixed := newTestService(t)

	err := service.CompleteChallenge(context.Background(), "missing", "user-a", fixed.Today(), "", 10)
	require.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestConcurrentCompletionsExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	service, _, fixed := newTestService(t)
	date := fixed.Today()

	ch, err := service.CreateChallenge(ctx, "burpees", "user-a", nil)
	require.NoError(t, err)

	const callers = 16
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = service.CompleteChallenge(ctx, ch.ID, "user-a", date, "", 10)
		}(i)
	}
	wg.Wait()

	var oks, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			oks++
		default:
			require.ErrorIs(t, err, domain.ErrAlreadyCompleted)
			duplicates++
		}
	}
	require.Equal(t, 1, oks)
	require.Equal(t, callers-1, duplicates)
}

func TestAddExerciseCreatorOnly(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	ch, err := service.CreateChallenge(ctx, "pushups", "user-a", nil)
	require.NoError(t, err)

	_, err = service.AddExercise(ctx, ch.ID, "user-b", "situps", 20)
	require.ErrorIs(t, err, domain.ErrNotCreator)

	ex, err := service.AddExercise(ctx, ch.ID, "user-a", "situps", 20)
	require.NoError(t, err)

	got, err := service.GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	require.Len(t, got.Exercises, 1)
	require.Equal(t, ex.ID, got.Exercises[0].ID)
}

func TestStatusForSharedChallenge(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)
	date := domain.Date("2024-01-01")

	ch, err := service.CreateChallenge(ctx, "pushups", "user-a", []domain.ExerciseInput{
		{Name: "pushups", TargetReps: 10},
	})
	require.NoError(t, err)
	require.NoError(t, service.JoinChallenge(ctx, ch.ID, "user-b"))
	require.NoError(t, service.CompleteChallenge(ctx, ch.ID, "user-b", date, "", 10))

	statusB, err := service.StatusFor(ctx, "user-b", date)
	require.NoError(t, err)
	require.Len(t, statusB, 1)
	require.True(t, statusB[0].Completed)
	require.Equal(t, 2, statusB[0].MemberCount)

	statusA, err := service.StatusFor(ctx, "user-a", date)
	require.NoError(t, err)
	require.Len(t, statusA, 1)
	require.False(t, statusA[0].Completed)
}

func TestStatusForOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	fixed := clock.Fixed{Instant: time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()

	older := domain.Challenge{ID: "older", Name: "older", CreatorID: "user-a", CreatedAt: fixed.Instant}
	newer := domain.Challenge{ID: "newer", Name: "newer", CreatorID: "user-a", CreatedAt: fixed.Instant.Add(time.Hour)}
	tieA := domain.Challenge{ID: "tie-a", Name: "tie-a", CreatorID: "user-a", CreatedAt: fixed.Instant.Add(time.Hour)}
	require.NoError(t, store.CreateChallenge(ctx, older))
	require.NoError(t, store.CreateChallenge(ctx, newer))
	require.NoError(t, store.CreateChallenge(ctx, tieA))

	service := domain.NewService(store, store, store, fixed)
	statuses, err := service.StatusFor(ctx, "user-a", fixed.Today())
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	require.Equal(t, "newer", statuses[0].Challenge.ID)
	require.Equal(t, "tie-a", statuses[1].Challenge.ID)
	require.Equal(t, "older", statuses[2].Challenge.ID)
}

func TestReminderTargetsExcludeCompletedUsers(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)
	date := domain.Date("2024-01-01")

	ch, err := service.CreateChallenge(ctx, "pushups", "user-a", nil)
	require.NoError(t, err)
	require.NoError(t, service.JoinChallenge(ctx, ch.ID, "user-b"))
	require.NoError(t, service.CompleteChallenge(ctx, ch.ID, "user-b", date, "", 10))

	targets, err := service.ReminderTargets(ctx, date)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Len(t, targets["user-a"], 1)
	require.Equal(t, ch.ID, targets["user-a"][0].ID)
	require.NotContains(t, targets, "user-b")
}

func TestCompletedAndIncompletePartitionMemberships(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService(t)
	date := domain.Date("2024-01-01")

	first, err := service.CreateChallenge(ctx, "pushups", "user-a", nil)
	require.NoError(t, err)
	second, err := service.CreateChallenge(ctx, "squats", "user-b", nil)
	require.NoError(t, err)
	require.NoError(t, service.JoinChallenge(ctx, second.ID, "user-a"))
	require.NoError(t, service.CompleteChallenge(ctx, first.ID, "user-a", date, "", 5))

	joined, err := store.ListChallengesFor(ctx, "user-a")
	require.NoError(t, err)
	completed, err := store.CompletedOn(ctx, "user-a", date)
	require.NoError(t, err)

	targets, err := service.ReminderTargets(ctx, date)
	require.NoError(t, err)

	var incomplete []string
	for _, ch := range targets["user-a"] {
		incomplete = append(incomplete, ch.ID)
	}

	// completed-on(date) and incomplete must partition the membership set.
	require.Len(t, joined, len(completed)+len(incomplete))
	for _, id := range incomplete {
		require.False(t, completed[id])
		require.Contains(t, joined, id)
	}
	for id := range completed {
		require.Contains(t, joined, id)
	}
}
