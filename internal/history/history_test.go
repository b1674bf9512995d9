package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(poll int, at time.Time) (Cycle, []Attempt) {
	c := Cycle{
		ID: uuid.New(), Venue: "sunnyvale", Poll: poll,
		Started: at, Finished: at.Add(2 * time.Second),
		Opportunities: 1, Booked: 1, Failed: 1,
	}
	return c, []Attempt{
		{ID: uuid.New(), Actor: "a@example.com", Slot: "18:00", Duration: 90, Court: 5, Outcome: "booked", Tries: 1, Started: at, Finished: at.Add(time.Second)},
		{ID: uuid.New(), Actor: "b@example.com", Slot: "18:00", Duration: 90, Court: 7, Outcome: "failed", Tries: 3, Message: "Court not available", Started: at, Finished: at.Add(2 * time.Second)},
	}
}

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 10, 9, 12, 0, 0, 0, time.UTC)

	var last Cycle
	for i := 1; i <= 3; i++ {
		c, atts := sample(i, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Record(ctx, c, atts))
		last = c
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, last.ID, recent[0].ID)
	assert.Equal(t, 3, recent[0].Poll)
	assert.True(t, last.Started.Equal(recent[0].Started))

	atts, err := s.Attempts(ctx, last.ID)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Equal(t, "a@example.com", atts[0].Actor)
	assert.Equal(t, "Court not available", atts[1].Message)
	assert.Equal(t, last.ID, atts[1].CycleID)
}

func TestSQLiteMemory(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(context.Background(), "sqlite:"+path, nil)
	require.NoError(t, err)
	exercise(t, s)
	require.NoError(t, s.Close())

	reopened, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	recent, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestOpenEmptyIsNoop(t *testing.T) {
	s, err := Open(context.Background(), "", nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, s)
	require.NoError(t, s.Record(context.Background(), Cycle{}, nil))
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := Open(context.Background(), url, nil)
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}
