package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/pkg/events"
	"github.com/JaimeStill/safestack/pkg/pagination"
	"github.com/JaimeStill/safestack/pkg/query"
	"github.com/JaimeStill/safestack/pkg/repository"
)

var dbErrors = repository.Mapping{
	NotFound:  ErrNotFound,
	Duplicate: ErrDuplicate,
	Invalid:   ErrInvalidAlert,
}

// EventCreated is published after an alert is stored.
const EventCreated = "alert.created"

type repo struct {
	db         *sql.DB
	policies   PolicyResolver
	events     events.Publisher
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an alert repository implementing the System interface.
func New(
	db *sql.DB,
	resolver PolicyResolver,
	publisher events.Publisher,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		policies:   resolver,
		events:     publisher,
		logger:     logger.With("system", "alerts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, filters Filters, limit int) ([]Alert, error) {
	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	q, args := qb.BuildLimit(limit)
	result, err := repository.QueryMany(ctx, r.db, q, args, scanAlert)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Alert, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAlert)
	if err != nil {
		return nil, dbErrors.Map(err)
	}
	return &a, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Alert, error) {
	if cmd.PolicyID < 1 {
		return nil, fmt.Errorf("%w: policy_id required", ErrInvalidAlert)
	}

	policy, err := r.policies.Find(ctx, cmd.PolicyID)
	if err != nil {
		if errors.Is(err, policies.ErrNotFound) {
			return nil, fmt.Errorf("%w: policy %d not found", ErrInvalidAlert, cmd.PolicyID)
		}
		return nil, err
	}

	severity := cmd.Severity
	if severity == "" {
		severity = policy.Label()
	}

	q := `
		INSERT INTO alerts(id, policy_id, policy_title, policy_level, severity, image_urls, amended_images,
			explanation, reasoning, fix, video_id, video_timestamp, camera_id, user_email, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		` + projection.Returning()

	args := []any{
		uuid.New(),
		policy.ID,
		policy.Title,
		policy.Level,
		severity,
		repository.JSON[[]string]{V: nonNil(cmd.ImageURLs)},
		repository.JSON[[]string]{V: []string{}},
		cmd.Explanation,
		cmd.Reasoning,
		cmd.Fix,
		cmd.VideoID,
		cmd.VideoTimestamp,
		cmd.CameraID,
		cmd.UserEmail,
		time.Now().UTC(),
	}

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAlert)
	if err != nil {
		return nil, dbErrors.Map(err)
	}

	metrics.RecordAlert(a.PolicyLevel)
	if err := r.events.Publish(ctx, EventCreated, a); err != nil {
		r.logger.Warn("alert event publish failed", "id", a.ID, "error", err)
	}

	r.logger.Info("alert created", "id", a.ID, "policy", a.PolicyTitle, "level", a.PolicyLevel)
	return &a, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM alerts WHERE id = $1", id)
	if err != nil {
		return dbErrors.Map(err)
	}

	r.logger.Info("alert deleted", "id", id)
	return nil
}

func (r *repo) SetAmendedImages(ctx context.Context, id uuid.UUID, urls []string) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		"UPDATE alerts SET amended_images = $1 WHERE id = $2",
		repository.JSON[[]string]{V: nonNil(urls)}, id,
	)
	if err != nil {
		return dbErrors.Map(err)
	}
	return nil
}

type levelCount struct {
	level int
	count int
}

func (r *repo) Stats(ctx context.Context) (*Stats, error) {
	rows, err := repository.QueryMany(
		ctx, r.db,
		"SELECT policy_level, COUNT(*) FROM alerts GROUP BY policy_level ORDER BY policy_level",
		nil,
		func(s repository.Scanner) (levelCount, error) {
			var lc levelCount
			err := s.Scan(&lc.level, &lc.count)
			return lc, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}

	stats := &Stats{ByLevel: make(map[int]int, len(rows))}
	for _, lc := range rows {
		stats.ByLevel[lc.level] = lc.count
		stats.Total += lc.count
	}
	return stats, nil
}
