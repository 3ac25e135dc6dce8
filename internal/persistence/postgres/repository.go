// Package postgres provides pgx-backed persistence for challenges,
// memberships, and the completion ledger.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/challenge/internal/domain"
	"example.com/challenge/internal/observability"
)

const pgForeignKeyViolation = "23503"

// Repository implements the domain store interfaces on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateChallenge persists the challenge, its exercises, and the creator
// membership in a single transaction. A challenge row can never land without
// its creator joined.
func (r *Repository) CreateChallenge(ctx context.Context, ch domain.Challenge) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertChallenge = `INSERT INTO challenges (challenge_id, name, creator_id, created_at)
        VALUES ($1,$2,$3,$4)`
	if _, err = tx.Exec(ctx, insertChallenge, ch.ID, ch.Name, ch.CreatorID, ch.CreatedAt); err != nil {
		return err
	}

	const insertExercise = `INSERT INTO exercises (exercise_id, challenge_id, name, target_reps)
        VALUES ($1,$2,$3,$4)`
	for _, ex := range ch.Exercises {
		if _, err = tx.Exec(ctx, insertExercise, ex.ID, ch.ID, ex.Name, ex.TargetReps); err != nil {
			return err
		}
	}

	const insertCreator = `INSERT INTO memberships (challenge_id, user_id, joined_at)
        VALUES ($1,$2,$3)`
	if _, err = tx.Exec(ctx, insertCreator, ch.ID, ch.CreatorID, ch.CreatedAt); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	return err
}

// GetChallenge retrieves a challenge and its exercises, nil when absent.
func (r *Repository) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	const query = `SELECT challenge_id, name, creator_id, created_at
        FROM challenges WHERE challenge_id=$1`

	row := r.pool.QueryRow(ctx, query, id)
	var ch domain.Challenge
	if err := row.Scan(&ch.ID, &ch.Name, &ch.CreatorID, &ch.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	exercises, err := r.exercisesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	ch.Exercises = exercises
	return &ch, nil
}

// ListChallenges returns every challenge in insertion order.
func (r *Repository) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	const query = `SELECT challenge_id, name, creator_id, created_at
        FROM challenges ORDER BY seq`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Challenge
	index := make(map[string]int)
	for rows.Next() {
		var ch domain.Challenge
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.CreatorID, &ch.CreatedAt); err != nil {
			return nil, err
		}
		index[ch.ID] = len(out)
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const exQuery = `SELECT challenge_id, exercise_id, name, target_reps
        FROM exercises ORDER BY seq`
	exRows, err := r.pool.Query(ctx, exQuery)
	if err != nil {
		return nil, err
	}
	defer exRows.Close()

	for exRows.Next() {
		var challengeID string
		var ex domain.Exercise
		if err := exRows.Scan(&challengeID, &ex.ID, &ex.Name, &ex.TargetReps); err != nil {
			return nil, err
		}
		if i, ok := index[challengeID]; ok {
			out[i].Exercises = append(out[i].Exercises, ex)
		}
	}
	return out, exRows.Err()
}

// AddExercise appends a target metric to an existing challenge.
func (r *Repository) AddExercise(ctx context.Context, challengeID string, ex domain.Exercise) error {
	const stmt = `INSERT INTO exercises (exercise_id, challenge_id, name, target_reps)
        VALUES ($1,$2,$3,$4)`

	_, err := r.pool.Exec(ctx, stmt, ex.ID, challengeID, ex.Name, ex.TargetReps)
	if isPgError(err, pgForeignKeyViolation) {
		return domain.ErrChallengeNotFound
	}
	return err
}

// Join inserts a membership row, rejecting duplicates without escalating.
func (r *Repository) Join(ctx context.Context, challengeID, userID string, at time.Time) error {
	const stmt = `INSERT INTO memberships (challenge_id, user_id, joined_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (challenge_id, user_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, stmt, challengeID, userID, at)
	if isPgError(err, pgForeignKeyViolation) {
		return domain.ErrChallengeNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyMember
	}
	return nil
}

// Leave deletes the membership row.
func (r *Repository) Leave(ctx context.Context, challengeID, userID string) error {
	const stmt = `DELETE FROM memberships WHERE challenge_id=$1 AND user_id=$2`

	tag, err := r.pool.Exec(ctx, stmt, challengeID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// IsMember reports membership existence.
func (r *Repository) IsMember(ctx context.Context, challengeID, userID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM memberships WHERE challenge_id=$1 AND user_id=$2)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, challengeID, userID).Scan(&exists)
	return exists, err
}

// ListMembers returns participant IDs in join order.
func (r *Repository) ListMembers(ctx context.Context, challengeID string) ([]string, error) {
	const query = `SELECT user_id FROM memberships WHERE challenge_id=$1 ORDER BY seq`
	return r.stringColumn(ctx, query, challengeID)
}

// ListChallengesFor returns the user's challenge IDs in join order.
func (r *Repository) ListChallengesFor(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT challenge_id FROM memberships WHERE user_id=$1 ORDER BY seq`
	return r.stringColumn(ctx, query, userID)
}

// ListUsers returns every user with at least one membership.
func (r *Repository) ListUsers(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT user_id FROM memberships`
	return r.stringColumn(ctx, query)
}

// RecordCompletion inserts the ledger row. The composite primary key makes the
// uniqueness check and insert one atomic statement: of two concurrent inserts
// for the same cell exactly one row wins.
func (r *Repository) RecordCompletion(ctx context.Context, c domain.Completion) error {
	const stmt = `INSERT INTO completions (challenge_id, user_id, day, exercise_id, reps, completed_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (challenge_id, user_id, day, exercise_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, stmt, c.ChallengeID, c.UserID, c.Date.Time(), c.ExerciseID, c.Reps, c.CompletedAt)
	if isPgError(err, pgForeignKeyViolation) {
		return domain.ErrChallengeNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		observability.RecordCompletionDuplicate()
		return domain.ErrAlreadyCompleted
	}
	observability.RecordCompletionAccepted()
	return nil
}

// IsCompletedOn reports whether any completion exists for the cell.
func (r *Repository) IsCompletedOn(ctx context.Context, challengeID, userID string, date domain.Date) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM completions WHERE challenge_id=$1 AND user_id=$2 AND day=$3)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, challengeID, userID, date.Time()).Scan(&exists)
	return exists, err
}

// CompletedOn returns the set of challenge IDs the user completed on the date.
func (r *Repository) CompletedOn(ctx context.Context, userID string, date domain.Date) (map[string]bool, error) {
	const query = `SELECT DISTINCT challenge_id FROM completions WHERE user_id=$1 AND day=$2`

	ids, err := r.stringColumn(ctx, query, userID, date.Time())
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *Repository) exercisesFor(ctx context.Context, challengeID string) ([]domain.Exercise, error) {
	const query = `SELECT exercise_id, name, target_reps
        FROM exercises WHERE challenge_id=$1 ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Exercise
	for rows.Next() {
		var ex domain.Exercise
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.TargetReps); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (r *Repository) stringColumn(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
