//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/catalog/store"
)

// startPostgres spins up a PostgreSQL container and returns a store
// config pointing at it.
func startPostgres(t *testing.T) *store.Config {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("backmon_test"),
		tcpostgres.WithUsername("backmon"),
		tcpostgres.WithPassword("backmon"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return &store.Config{
		Type: store.DatabaseTypePostgres,
		Postgres: store.PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "backmon_test",
			User:     "backmon",
			Password: "backmon",
			SSLMode:  "disable",
		},
	}
}

func TestPostgresStore_Integration(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	s, err := store.New(cfg)
	require.NoError(t, err, "failed to open store")
	defer func() { _ = s.Close() }()

	t.Run("Healthcheck", func(t *testing.T) {
		require.NoError(t, s.Healthcheck(ctx))
	})

	var jobID uint

	t.Run("CreateAndFindJob", func(t *testing.T) {
		job := &models.ExpectedJob{
			Year:              2026,
			Company:           "acme",
			City:              "springfield",
			Neighborhood:      "north_end",
			DatabaseName:      "acme_main",
			ExpectedHourUTC:   3,
			ExpectedMinuteUTC: 30,
			IsActive:          true,
		}
		id, err := s.CreateJob(ctx, job)
		require.NoError(t, err)
		require.NotZero(t, id)
		jobID = id

		// Defaults applied on create
		require.Equal(t, models.FrequencyDaily, job.Frequency)
		require.Equal(t, models.DefaultDaysOfWeek, job.DaysOfWeek)

		found, err := s.FindJobByAgentDB(ctx, job.AgentID(), "acme_main")
		require.NoError(t, err)
		require.Equal(t, id, found.ID)
	})

	t.Run("DuplicateJobRejected", func(t *testing.T) {
		_, err := s.CreateJob(ctx, &models.ExpectedJob{
			Year:              2026,
			Company:           "acme",
			City:              "springfield",
			Neighborhood:      "north_end",
			DatabaseName:      "acme_main",
			ExpectedHourUTC:   3,
			ExpectedMinuteUTC: 30,
		})
		require.ErrorIs(t, err, models.ErrDuplicateJob)
	})

	t.Run("AppendEntryUpdatesJob", func(t *testing.T) {
		job, err := s.GetJob(ctx, jobID)
		require.NoError(t, err)

		job.CurrentStatus = models.JobStatusOK
		job.PreviousSuccessfulHash = "abc123"
		entry := &models.BackupEntry{
			ExpectedJobID: jobID,
			Timestamp:     time.Now().UTC(),
			Status:        models.EntryStatusSuccess,
			AgentID:       "acme_springfield_north_end",
			Message:       "verified and promoted",
		}
		require.NoError(t, s.AppendEntryAndUpdateJob(ctx, job, entry))
		require.NotZero(t, entry.ID)

		got, err := s.GetJob(ctx, jobID)
		require.NoError(t, err)
		require.Equal(t, models.JobStatusOK, got.CurrentStatus)
		require.Equal(t, "abc123", got.PreviousSuccessfulHash)

		entries, err := s.ListEntries(ctx, jobID, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, models.EntryStatusSuccess, entries[0].Status)
	})

	t.Run("UserLifecycle", func(t *testing.T) {
		hash, err := models.HashPassword("s3cret-enough")
		require.NoError(t, err)

		_, err = s.CreateUser(ctx, &models.User{
			Username:     "operator",
			PasswordHash: hash,
			Role:         string(models.RoleUser),
			Enabled:      true,
		})
		require.NoError(t, err)

		user, err := s.ValidateCredentials(ctx, "operator", "s3cret-enough")
		require.NoError(t, err)
		require.Equal(t, "operator", user.Username)

		_, err = s.ValidateCredentials(ctx, "operator", "wrong")
		require.Error(t, err)

		require.NoError(t, s.DeleteUser(ctx, "operator"))
		_, err = s.GetUser(ctx, "operator")
		require.ErrorIs(t, err, models.ErrUserNotFound)
	})
}
