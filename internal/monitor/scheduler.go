package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/analysis"
	"github.com/JaimeStill/safestack/internal/metrics"
)

// Uploader submits a job for analysis.
type Uploader interface {
	Upload(ctx context.Context, job Job) (*analysis.Result, error)
}

// SchedulerOptions configures upload concurrency.
type SchedulerOptions struct {
	// MaxConcurrent bounds in-flight uploads. Zero means unbounded.
	MaxConcurrent int
	// Timeout bounds each upload. Zero means no deadline.
	Timeout time.Duration
	// OnAlerts receives the alerts created by each successful upload
	// after they are merged into the book.
	OnAlerts func([]alerts.Alert)
}

type cameraState struct {
	status     Status
	nextChunk  int
	lastResult time.Time
	capturing  atomic.Bool

	// pending counts queued and in-flight uploads.
	pending int
	// outcome is the status reported by the newest finished chunk.
	outcome      Status
	outcomeChunk int
}

// settle records the outcome of chunk and publishes the newest outcome
// once the camera has nothing capturing or pending. Until then the camera
// stays analyzing.
func (c *cameraState) settle(chunk int, status Status) {
	if chunk >= c.outcomeChunk {
		c.outcome = status
		c.outcomeChunk = chunk
	}
	if c.pending == 0 && !c.capturing.Load() {
		c.status = c.outcome
	}
}

// Scheduler is a FIFO upload queue drained by at most MaxConcurrent
// uploads at a time. It also owns per-camera status and chunk numbering
// and keeps a camera from starting a capture while its previous capture
// is still recording. Uploads for the same camera may overlap; the camera
// leaves analyzing only when the last of them finishes, showing the
// outcome of its newest chunk.
type Scheduler struct {
	ctx      context.Context
	uploader Uploader
	book     *AlertBook
	logger   *slog.Logger
	opts     SchedulerOptions

	mu      sync.Mutex
	queue   []Job
	active  int
	cameras map[string]*cameraState
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler. Uploads run under ctx and are
// aborted when it is cancelled.
func NewScheduler(ctx context.Context, uploader Uploader, book *AlertBook, logger *slog.Logger, opts SchedulerOptions) *Scheduler {
	return &Scheduler{
		ctx:      ctx,
		uploader: uploader,
		book:     book,
		logger:   logger.With("system", "scheduler"),
		opts:     opts,
		cameras:  make(map[string]*cameraState),
	}
}

// Register adds a camera in the idle state. Chunk numbering starts at 1.
func (s *Scheduler) Register(cameraID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cameras[cameraID]; !ok {
		s.cameras[cameraID] = &cameraState{status: StatusIdle, nextChunk: 1}
	}
}

// BeginCapture claims the capture slot for a camera and assigns the next
// chunk index. It returns false when the camera is unknown or its
// previous capture has not finished.
func (s *Scheduler) BeginCapture(cameraID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cam, ok := s.cameras[cameraID]
	if !ok {
		return 0, false
	}

	if !cam.capturing.CompareAndSwap(false, true) {
		metrics.MonitorCaptureSkips.WithLabelValues(cameraID).Inc()
		return 0, false
	}

	chunk := cam.nextChunk
	cam.nextChunk++
	cam.status = StatusAnalyzing
	return chunk, true
}

// EndCapture releases the capture slot. A nil segment settles the chunk
// as idle; otherwise the segment is queued for upload.
func (s *Scheduler) EndCapture(cameraID string, chunk int, seg *Segment) {
	s.mu.Lock()
	cam, ok := s.cameras[cameraID]
	if ok {
		cam.capturing.Store(false)
		if seg == nil {
			cam.settle(chunk, StatusIdle)
		} else {
			s.push(cam, Job{CameraID: cameraID, ChunkIndex: chunk, Segment: *seg})
		}
	}
	s.mu.Unlock()

	if ok && seg != nil {
		s.drain()
	}
}

// Enqueue appends a job and starts as many queued uploads as the bound allows.
func (s *Scheduler) Enqueue(job Job) {
	s.mu.Lock()
	s.push(s.cameras[job.CameraID], job)
	s.mu.Unlock()

	s.drain()
}

// push queues job under s.mu. cam is nil for unregistered cameras.
func (s *Scheduler) push(cam *cameraState, job Job) {
	if cam != nil {
		cam.pending++
	}
	s.queue = append(s.queue, job)
	metrics.MonitorQueueDepth.Set(float64(len(s.queue)))
}

func (s *Scheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 && (s.opts.MaxConcurrent <= 0 || s.active < s.opts.MaxConcurrent) {
		job := s.queue[0]
		s.queue = s.queue[1:]
		s.active++

		metrics.MonitorQueueDepth.Set(float64(len(s.queue)))
		metrics.MonitorActiveUploads.Set(float64(s.active))

		s.wg.Go(func() {
			s.upload(job)
		})
	}
}

func (s *Scheduler) upload(job Job) {
	ctx := s.ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.uploader.Upload(ctx, job)

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	default:
		outcome = metrics.OutcomeError
	}
	metrics.MonitorUploads.WithLabelValues(job.CameraID, outcome).Inc()

	status := StatusIdle
	if err == nil && result.AlertsCreated > 0 {
		status = StatusAlert
	}

	if err != nil {
		s.logger.Warn("upload failed",
			"camera", job.CameraID,
			"chunk", job.ChunkIndex,
			"outcome", outcome,
			"elapsed", time.Since(start),
			"error", err,
		)
	} else {
		s.logger.Info("upload complete",
			"camera", job.CameraID,
			"chunk", job.ChunkIndex,
			"violations", result.ViolationsFound,
			"alerts", result.AlertsCreated,
			"elapsed", time.Since(start),
		)
		if len(result.Records) > 0 {
			s.book.Merge(result.Records)
			if s.opts.OnAlerts != nil {
				s.opts.OnAlerts(result.Records)
			}
		}
	}

	s.mu.Lock()
	s.active--
	metrics.MonitorActiveUploads.Set(float64(s.active))
	if cam, ok := s.cameras[job.CameraID]; ok {
		cam.pending--
		cam.lastResult = time.Now()
		cam.settle(job.ChunkIndex, status)
	}
	s.mu.Unlock()

	s.drain()
}

// Wait blocks until every started upload has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Active returns the number of in-flight uploads.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Queued returns the number of jobs waiting for an upload slot.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Status returns a camera's current state.
func (s *Scheduler) Status(cameraID string) (CameraStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cam, ok := s.cameras[cameraID]
	if !ok {
		return CameraStatus{}, false
	}
	return CameraStatus{
		ID:         cameraID,
		Status:     cam.status,
		Capturing:  cam.capturing.Load(),
		NextChunk:  cam.nextChunk,
		LastResult: cam.lastResult,
	}, true
}
