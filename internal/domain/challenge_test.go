package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/challenge/internal/domain"
)

func TestParseDate(t *testing.T) {
	date, err := domain.ParseDate(" 2024-01-01 ")
	require.NoError(t, err)
	require.Equal(t, domain.Date("2024-01-01"), date)

	_, err = domain.ParseDate("01/02/2024")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = domain.ParseDate("")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDateOfTruncatesToDay(t *testing.T) {
	instant := time.Date(2024, time.January, 1, 23, 59, 59, 0, time.UTC)
	require.Equal(t, domain.Date("2024-01-01"), domain.DateOf(instant))
}

func TestDateRoundTripsThroughTime(t *testing.T) {
	date := domain.Date("2024-02-29")
	require.Equal(t, date, domain.DateOf(date.Time()))
}

func TestNewChallengeIDIsSlugged(t *testing.T) {
	id := domain.NewChallengeID("Morning Pushups!")
	require.Regexp(t, `^morning-pushups-[0-9a-f]{8}$`, id)
}

func TestNewChallengeIDsDiffer(t *testing.T) {
	a := domain.NewChallengeID("pushups")
	b := domain.NewChallengeID("pushups")
	require.NotEqual(t, a, b)
}
