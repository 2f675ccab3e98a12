package videos

import (
	"github.com/JaimeStill/safestack/pkg/query"
	"github.com/JaimeStill/safestack/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "videos", "v").
	Project("id", "ID").
	Project("url", "URL").
	Project("storage_key", "StorageKey").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("camera_id", "CameraID").
	Project("chunk_index", "ChunkIndex").
	Project("chunk_started_at", "ChunkStartedAt").
	Project("duration_ms", "DurationMS").
	Project("timestamp", "Timestamp")

var defaultSort = query.SortField{
	Field:      "Timestamp",
	Descending: true,
}

func scanVideo(s repository.Scanner) (Video, error) {
	var v Video
	err := s.Scan(
		&v.ID,
		&v.URL,
		&v.StorageKey,
		&v.ContentType,
		&v.SizeBytes,
		&v.CameraID,
		&v.ChunkIndex,
		&v.ChunkStartedAt,
		&v.DurationMS,
		&v.Timestamp,
	)
	return v, err
}
