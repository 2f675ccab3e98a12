// Package monitor is the camera-side half of SafeStack. It captures short
// segments from each configured feed, uploads them for analysis with a
// bounded number of concurrent uploads, and keeps a local alert view
// convergent with the server.
package monitor

import (
	"time"

	"github.com/JaimeStill/safestack/internal/config"
)

// Status is a camera's position in the capture/analysis cycle.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusAlert     Status = "alert"
)

// Camera is a monitored feed.
type Camera struct {
	ID       string
	Name     string
	Location string
	Source   string
}

// CamerasFromConfig converts configured cameras.
func CamerasFromConfig(cfgs []config.CameraConfig) []Camera {
	cameras := make([]Camera, len(cfgs))
	for i, c := range cfgs {
		cameras[i] = Camera{ID: c.ID, Name: c.Name, Location: c.Location, Source: c.Source}
	}
	return cameras
}

// Segment is one encoded capture window.
type Segment struct {
	Data      []byte
	MimeType  string
	StartedAt time.Time
	Duration  time.Duration
}

// Job is a captured segment waiting to be uploaded.
type Job struct {
	CameraID   string
	ChunkIndex int
	Segment    Segment
}

// CameraStatus is a point-in-time view of a camera.
type CameraStatus struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Capturing  bool      `json:"capturing"`
	NextChunk  int       `json:"next_chunk"`
	LastResult time.Time `json:"last_result"`
}
