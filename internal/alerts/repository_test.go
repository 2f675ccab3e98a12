package alerts_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/pkg/events"
	"github.com/JaimeStill/safestack/pkg/pagination"
)

type resolverFunc func(ctx context.Context, id int) (*policies.Policy, error)

func (f resolverFunc) Find(ctx context.Context, id int) (*policies.Policy, error) { return f(ctx, id) }

var housekeeping = policies.Policy{ID: 1, Title: "Poor Housekeeping", Level: 1, Description: "Walkways must be clear."}

func knownPolicies(_ context.Context, id int) (*policies.Policy, error) {
	if id == housekeeping.ID {
		p := housekeeping
		return &p, nil
	}
	return nil, policies.ErrNotFound
}

type recordingPublisher struct {
	events.Noop
	names []string
}

func (p *recordingPublisher) Publish(_ context.Context, name string, _ any) error {
	p.names = append(p.names, name)
	return nil
}

var columns = []string{
	"id", "policy_id", "policy_title", "policy_level", "severity", "image_urls", "amended_images",
	"explanation", "reasoning", "fix", "video_id", "video_timestamp", "camera_id", "user_email", "timestamp",
}

func newRepo(t *testing.T, pub events.Publisher) (alerts.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sys := alerts.New(
		db,
		resolverFunc(knownPolicies),
		pub,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultLimit: 100, MaxLimit: 1000},
	)
	return sys, mock
}

func TestRepoList(t *testing.T) {
	sys, mock := newRepo(t, events.Noop{})
	email := "ops@site.com"
	level := 2

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM public.alerts a WHERE a.user_email = $1 AND a.policy_level >= $2 ORDER BY a.timestamp DESC LIMIT 10",
	)).
		WithArgs(email, level).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			idA, 2, "Blocked Exit", 2, "Severity 2", []byte(`["https://blob/frame.png"]`), nil,
			"exit blocked by cart", "", "", nil, "00:12", "1", email, time.Now(),
		))

	got, err := sys.List(context.Background(), alerts.Filters{UserEmail: &email, MinLevel: &level}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, []string{"https://blob/frame.png"}, got[0].ImageURLs)
	assert.Equal(t, []string{}, got[0].AmendedImages)
	assert.Nil(t, got[0].VideoID)
	require.NotNil(t, got[0].VideoTimestamp)
	assert.Equal(t, "00:12", *got[0].VideoTimestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreate(t *testing.T) {
	pub := &recordingPublisher{}
	sys, mock := newRepo(t, pub)
	camera := "1"

	mock.ExpectQuery("INSERT INTO alerts").
		WithArgs(
			sqlmock.AnyArg(), 1, "Poor Housekeeping", 1, "Severity 1", `["https://blob/f.png"]`, `[]`,
			"pallet in walkway", "", "", nil, nil, &camera, nil, sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			idA, 1, "Poor Housekeeping", 1, "Severity 1", []byte(`["https://blob/f.png"]`), []byte(`[]`),
			"pallet in walkway", "", "", nil, nil, camera, nil, time.Now(),
		))

	a, err := sys.Create(context.Background(), alerts.CreateCommand{
		PolicyID:    1,
		ImageURLs:   []string{"https://blob/f.png"},
		Explanation: "pallet in walkway",
		CameraID:    &camera,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, a.PolicyLevel)
	assert.Equal(t, []string{alerts.EventCreated}, pub.names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreateUnknownPolicy(t *testing.T) {
	sys, mock := newRepo(t, events.Noop{})

	_, err := sys.Create(context.Background(), alerts.CreateCommand{PolicyID: 42})
	assert.ErrorIs(t, err, alerts.ErrInvalidAlert)

	_, err = sys.Create(context.Background(), alerts.CreateCommand{})
	assert.ErrorIs(t, err, alerts.ErrInvalidAlert)

	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL issued for rejected alerts")
}

func TestRepoCreateUnknownVideo(t *testing.T) {
	pub := &recordingPublisher{}
	sys, mock := newRepo(t, pub)
	video := uuid.New()

	mock.ExpectQuery("INSERT INTO alerts").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "alerts_video_id_fkey"})

	_, err := sys.Create(context.Background(), alerts.CreateCommand{
		PolicyID:    1,
		Explanation: "pallet in walkway",
		VideoID:     &video,
	})
	assert.ErrorIs(t, err, alerts.ErrInvalidAlert)
	assert.Empty(t, pub.names, "no event for a rejected insert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoDelete(t *testing.T) {
	sys, mock := newRepo(t, events.Noop{})
	id := uuid.MustParse(idA)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM alerts WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := sys.Delete(context.Background(), id)
	assert.True(t, errors.Is(err, alerts.ErrNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoSetAmendedImages(t *testing.T) {
	sys, mock := newRepo(t, events.Noop{})
	id := uuid.MustParse(idB)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts SET amended_images = $1 WHERE id = $2")).
		WithArgs(`["https://blob/amended.png"]`, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, sys.SetAmendedImages(context.Background(), id, []string{"https://blob/amended.png"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoStats(t *testing.T) {
	sys, mock := newRepo(t, events.Noop{})

	mock.ExpectQuery("SELECT policy_level, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"policy_level", "count"}).AddRow(1, 4).AddRow(3, 2))

	stats, err := sys.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, map[int]int{1: 4, 3: 2}, stats.ByLevel)
}
