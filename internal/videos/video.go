// Package videos records the video segments submitted for analysis.
// Segment bytes live in blob storage; the table keeps the URL and the
// capture metadata reported by the monitor.
package videos

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Video is a stored segment.
type Video struct {
	ID             uuid.UUID  `json:"id"`
	URL            string     `json:"url"`
	StorageKey     string     `json:"storage_key"`
	ContentType    string     `json:"content_type"`
	SizeBytes      int64      `json:"size_bytes"`
	CameraID       *string    `json:"camera_id"`
	ChunkIndex     *int       `json:"chunk_index"`
	ChunkStartedAt *time.Time `json:"chunk_started_at"`
	DurationMS     *int64     `json:"duration_ms"`
	Timestamp      time.Time  `json:"timestamp"`
}

// CreateCommand carries the segment bytes and capture metadata.
type CreateCommand struct {
	Data           []byte
	ContentType    string
	CameraID       *string
	ChunkIndex     *int
	ChunkStartedAt *time.Time
	DurationMS     *int64
}

func extension(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(base) {
	case "video/webm":
		return ".webm"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/x-matroska":
		return ".mkv"
	default:
		return ".bin"
	}
}
