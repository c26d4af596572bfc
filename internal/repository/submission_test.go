package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/screening-server/internal/database"
	"github.com/screening-server/internal/domain"
)

func newSubmissionRepository(t *testing.T) *SubmissionRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.Config{
		Host: host, Port: port.Int(), Database: "testdb",
		Username: "testuser", Password: "testpass", MaxConns: 4, SSLMode: "disable",
	}

	runner, err := database.NewMigrationRunner(cfg.URL(), "", quietLogger())
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return NewSubmissionRepository(db.Pool, quietLogger())
}

func testRecord(id string, submitted time.Time) *domain.ExportRecord {
	return &domain.ExportRecord{
		SchemaVersion: domain.RecordSchemaVersion,
		SubmissionID:  id,
		Instrument:    domain.InstrumentRef{ID: "GAD-7", Version: "1.0", Title: "GAD-7"},
		Session:       domain.SessionMeta{ID: "session-" + id, Consent: true, SubmittedAt: submitted},
		Examinee:      &domain.Identity{Name: "Hong Gildong"},
		Items:         []domain.ItemAnswer{{Ordinal: 1, Score: 2}, {Ordinal: 2, Score: 3}},
		Result: domain.ResultBlock{
			Total: 5, MaxTotal: 21, Severity: "Mild", SeverityKey: "mild",
			Flags: map[string]bool{"recommend_counseling": false},
		},
	}
}

func TestSubmissionRepository(t *testing.T) {
	repo := newSubmissionRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)

	first := testRecord("a", base)
	second := testRecord("b", base.Add(time.Hour))
	require.NoError(t, repo.SaveRecord(ctx, first))
	require.NoError(t, repo.SaveRecord(ctx, second))

	duplicate := testRecord("a", base)
	duplicate.Result.Total = 20
	require.NoError(t, repo.SaveRecord(ctx, duplicate))

	got, err := repo.GetBySubmissionID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Result.Total, "an existing submission is never overwritten")
	assert.Equal(t, first.Answers(), got.Answers())
	assert.Equal(t, "Hong Gildong", got.Examinee.Name)
	assert.True(t, base.Equal(got.Session.SubmittedAt))

	_, err = repo.GetBySubmissionID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := repo.ListByInstrument(ctx, "GAD-7", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].SubmissionID)

	page, err := repo.ListByInstrument(ctx, "GAD-7", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].SubmissionID)

	none, err := repo.ListByInstrument(ctx, "PHQ-9", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
