package analysis_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/internal/videos"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/pagination"
	"github.com/JaimeStill/safestack/pkg/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type modelFunc func(ctx context.Context, prompt string, images []string) (string, error)

func (f modelFunc) Vision(ctx context.Context, prompt string, images []string) (string, error) {
	return f(ctx, prompt, images)
}

type policyStore struct {
	mu  sync.Mutex
	doc policies.Document
}

func (p *policyStore) Latest(context.Context) (*policies.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc := p.doc
	return &doc, nil
}

func (p *policyStore) Append(_ context.Context, doc policies.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	return nil
}

func seededPolicies() policies.System {
	store := &policyStore{doc: policies.Document{
		Version:   1,
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Policies: []policies.Policy{
			{ID: 1, Title: "Hard Hat Required", Description: "Head protection in active zones.", Level: 3},
			{ID: 2, Title: "Blocked Exit", Description: "Exits stay clear.", Level: 2},
			{ID: 3, Title: "Poor Housekeeping", Description: "Walkways free of debris.", Level: 1},
		},
	}}
	return policies.NewSystem(store, discard(), policies.Options{})
}

// alertBook resolves policies the way the alert repository does.
type alertBook struct {
	mu       sync.Mutex
	policies policies.System
	items    []alerts.Alert
}

func (b *alertBook) Handler() *alerts.Handler { return nil }

func (b *alertBook) List(_ context.Context, _ alerts.Filters, limit int) ([]alerts.Alert, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sorted := alerts.Merge(nil, b.items)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (b *alertBook) Find(_ context.Context, id uuid.UUID) (*alerts.Alert, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.items {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, alerts.ErrNotFound
}

func (b *alertBook) Create(ctx context.Context, cmd alerts.CreateCommand) (*alerts.Alert, error) {
	policy, err := b.policies.Find(ctx, cmd.PolicyID)
	if err != nil {
		return nil, errors.Join(alerts.ErrInvalidAlert, err)
	}

	severity := cmd.Severity
	if severity == "" {
		severity = policy.Label()
	}

	a := alerts.Alert{
		ID:             uuid.New(),
		PolicyID:       policy.ID,
		PolicyTitle:    policy.Title,
		PolicyLevel:    policy.Level,
		Severity:       severity,
		ImageURLs:      cmd.ImageURLs,
		AmendedImages:  []string{},
		Explanation:    cmd.Explanation,
		Reasoning:      cmd.Reasoning,
		Fix:            cmd.Fix,
		VideoID:        cmd.VideoID,
		VideoTimestamp: cmd.VideoTimestamp,
		CameraID:       cmd.CameraID,
		UserEmail:      cmd.UserEmail,
		Timestamp:      time.Now().UTC(),
	}

	b.mu.Lock()
	b.items = append(b.items, a)
	b.mu.Unlock()
	return &a, nil
}

func (b *alertBook) Delete(context.Context, uuid.UUID) error { return nil }

func (b *alertBook) SetAmendedImages(context.Context, uuid.UUID, []string) error { return nil }

func (b *alertBook) Stats(context.Context) (*alerts.Stats, error) { return &alerts.Stats{}, nil }

type videoBook struct {
	mu      sync.Mutex
	created []videos.CreateCommand
	err     error
}

func (v *videoBook) Handler() *videos.Handler { return nil }

func (v *videoBook) List(context.Context, pagination.PageRequest) (*pagination.PageResult[videos.Video], error) {
	return &pagination.PageResult[videos.Video]{}, nil
}

func (v *videoBook) Find(context.Context, uuid.UUID) (*videos.Video, error) {
	return nil, videos.ErrNotFound
}

func (v *videoBook) Create(_ context.Context, cmd videos.CreateCommand) (*videos.Video, error) {
	if v.err != nil {
		return nil, v.err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.created = append(v.created, cmd)
	return &videos.Video{ID: uuid.New(), ContentType: cmd.ContentType, CameraID: cmd.CameraID, ChunkIndex: cmd.ChunkIndex}, nil
}

func (v *videoBook) Delete(context.Context, uuid.UUID) error { return nil }

func (v *videoBook) Count(context.Context) (int, error) { return len(v.created), nil }

type memStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: map[string][]byte{}}
}

func (m *memStorage) Ready() bool { return true }

func (m *memStorage) Start(*lifecycle.Coordinator) error { return nil }

func (m *memStorage) URL(key string) string { return "https://blob.test/" + key }

func (m *memStorage) Key(url string) (string, bool) {
	return strings.CutPrefix(url, "https://blob.test/")
}

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *memStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.blobs[key] = data
	m.mu.Unlock()
	return m.URL(key), nil
}

func (m *memStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memStorage) keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

type frameFunc func(ctx context.Context, path string, offset time.Duration) ([]byte, error)

func (f frameFunc) ExtractFrame(ctx context.Context, path string, offset time.Duration) ([]byte, error) {
	return f(ctx, path, offset)
}

type remediationLog struct {
	mu     sync.Mutex
	alerts []alerts.Alert
}

func (r *remediationLog) Submit(a alerts.Alert, _ []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return true
}
