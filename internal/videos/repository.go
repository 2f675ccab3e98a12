package videos

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/pkg/pagination"
	"github.com/JaimeStill/safestack/pkg/query"
	"github.com/JaimeStill/safestack/pkg/repository"
	"github.com/JaimeStill/safestack/pkg/storage"
)

var dbErrors = repository.Mapping{
	NotFound:  ErrNotFound,
	Duplicate: ErrDuplicate,
	Invalid:   ErrInvalidVideo,
}

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a video repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "videos"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Video], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "CameraID")

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count videos: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanVideo)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Video, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	v, err := repository.QueryOne(ctx, r.db, q, args, scanVideo)
	if err != nil {
		return nil, dbErrors.Map(err)
	}
	return &v, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Video, error) {
	if len(cmd.Data) == 0 {
		return nil, fmt.Errorf("%w: empty segment", ErrInvalidVideo)
	}

	id := uuid.New()
	key := fmt.Sprintf("videos/%s%s", id, extension(cmd.ContentType))

	url, err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), int64(len(cmd.Data)), cmd.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload video blob: %w", err)
	}

	q := `
		INSERT INTO videos(id, url, storage_key, content_type, size_bytes, camera_id, chunk_index, chunk_started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		` + projection.Returning()

	args := []any{
		id,
		url,
		key,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.CameraID,
		cmd.ChunkIndex,
		cmd.ChunkStartedAt,
		cmd.DurationMS,
	}

	v, err := repository.QueryOne(ctx, r.db, q, args, scanVideo)
	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, dbErrors.Map(err)
	}

	r.logger.Info("video recorded", "id", v.ID, "size", v.SizeBytes, "camera", cmd.CameraID)
	return &v, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	v, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	if err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM videos WHERE id = $1", id); err != nil {
		return dbErrors.Map(err)
	}

	if delErr := r.storage.Delete(ctx, v.StorageKey); delErr != nil {
		r.logger.Warn(
			"blob delete failed after DB delete",
			"key", v.StorageKey,
			"error", delErr,
		)
	}

	r.logger.Info("video deleted", "id", id)
	return nil
}

func (r *repo) Count(ctx context.Context) (int, error) {
	return repository.Count(ctx, r.db, "SELECT COUNT(*) FROM videos")
}
