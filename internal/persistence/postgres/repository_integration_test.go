//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/challenge/internal/domain"
)

func setupRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("challenge"),
		postgrescontainer.WithUsername("challenge"),
		postgrescontainer.WithPassword("challenge"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool)
}

func TestRepositoryChallengeLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	now := time.Now().UTC()
	ch := domain.Challenge{
		ID:        domain.NewChallengeID("pushups"),
		Name:      "pushups",
		CreatorID: "user-a",
		Exercises: []domain.Exercise{
			{ID: domain.NewExerciseID(), Name: "pushups", TargetReps: 10},
		},
		CreatedAt: now,
	}
	require.NoError(t, repo.CreateChallenge(ctx, ch))

	stored, err := repo.GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, ch.Name, stored.Name)
	require.Len(t, stored.Exercises, 1)

	// The creator membership lands in the same transaction.
	members, err := repo.ListMembers(ctx, ch.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"user-a"}, members)

	missing, err := repo.GetChallenge(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRepositoryMembership(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	ch := domain.Challenge{ID: domain.NewChallengeID("squats"), Name: "squats", CreatorID: "user-a", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateChallenge(ctx, ch))

	require.NoError(t, repo.Join(ctx, ch.ID, "user-b", time.Now().UTC()))
	require.ErrorIs(t, repo.Join(ctx, ch.ID, "user-b", time.Now().UTC()), domain.ErrAlreadyMember)
	require.ErrorIs(t, repo.Join(ctx, "missing", "user-b", time.Now().UTC()), domain.ErrChallengeNotFound)

	member, err := repo.IsMember(ctx, ch.ID, "user-b")
	require.NoError(t, err)
	require.True(t, member)

	require.NoError(t, repo.Leave(ctx, ch.ID, "user-b"))
	require.ErrorIs(t, repo.Leave(ctx, ch.ID, "user-b"), domain.ErrNotMember)
}

func TestRepositoryCompletionUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	ch := domain.Challenge{ID: domain.NewChallengeID("planks"), Name: "planks", CreatorID: "user-a", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateChallenge(ctx, ch))

	completion := domain.Completion{
		ChallengeID: ch.ID,
		UserID:      "user-a",
		Date:        domain.Date("2024-01-01"),
		Reps:        10,
		CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.RecordCompletion(ctx, completion))
	require.ErrorIs(t, repo.RecordCompletion(ctx, completion), domain.ErrAlreadyCompleted)

	done, err := repo.IsCompletedOn(ctx, ch.ID, "user-a", completion.Date)
	require.NoError(t, err)
	require.True(t, done)

	nextDay, err := repo.IsCompletedOn(ctx, ch.ID, "user-a", domain.Date("2024-01-02"))
	require.NoError(t, err)
	require.False(t, nextDay)

	completed, err := repo.CompletedOn(ctx, "user-a", completion.Date)
	require.NoError(t, err)
	require.True(t, completed[ch.ID])
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
