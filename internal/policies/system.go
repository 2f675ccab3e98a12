// Package policies maintains the versioned safety policy document.
// Every write appends a new document version and atomically swaps the
// in-process cache, so readers always see a complete document.
package policies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/JaimeStill/safestack/pkg/lifecycle"
)

// System defines the public contract for policy operations.
type System interface {
	Handler() *Handler
	// Start imports the configured policy file and starts the file watcher.
	Start(lc *lifecycle.Coordinator) error

	// Current returns the cached document, loading it on first use.
	Current(ctx context.Context) (*Document, error)
	// Invalidate drops the cached document so the next read reloads it.
	Invalidate()

	List(ctx context.Context, level *int) ([]Policy, error)
	Count(ctx context.Context) (int, error)
	Find(ctx context.Context, id int) (*Policy, error)
	Create(ctx context.Context, cmd CreateCommand) (*Policy, error)
	Delete(ctx context.Context, id int) error
	// Revise writes a new version with the policy's description (and title,
	// when set) replaced.
	Revise(ctx context.Context, id int, rev Revision) (*Document, error)
	// Import stores doc as the current version when it is newer than the
	// stored one. Returns ErrStale otherwise.
	Import(ctx context.Context, doc Document) (*Document, error)
}

// Options configures policy file import.
type Options struct {
	PolicyFile string
	Watch      bool
}

type system struct {
	store  Store
	logger *slog.Logger
	opts   Options

	mu    sync.Mutex
	cache atomic.Pointer[Document]
}

// New creates a policy system backed by the policy_documents table.
func New(db *sql.DB, logger *slog.Logger, opts Options) System {
	return NewSystem(NewStore(db), logger, opts)
}

// NewSystem creates a policy system over an arbitrary Store.
func NewSystem(store Store, logger *slog.Logger, opts Options) System {
	return &system{
		store:  store,
		logger: logger.With("system", "policies"),
		opts:   opts,
	}
}

func (s *system) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *system) Start(lc *lifecycle.Coordinator) error {
	if s.opts.PolicyFile == "" {
		return nil
	}

	lc.OnStartup(func() {
		s.importFile(lc.Context())
		if s.opts.Watch {
			go s.watch(lc.Context())
		}
	})

	return nil
}

func (s *system) Current(ctx context.Context) (*Document, error) {
	if doc := s.cache.Load(); doc != nil {
		return doc, nil
	}

	doc, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	if !s.cache.CompareAndSwap(nil, doc) {
		return s.cache.Load(), nil
	}
	return doc, nil
}

func (s *system) Invalidate() {
	s.cache.Store(nil)
}

func (s *system) List(ctx context.Context, level *int) ([]Policy, error) {
	doc, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Filter(level), nil
}

func (s *system) Count(ctx context.Context) (int, error) {
	doc, err := s.Current(ctx)
	if err != nil {
		return 0, err
	}
	return len(doc.Policies), nil
}

func (s *system) Find(ctx context.Context, id int) (*Policy, error) {
	doc, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	p, ok := doc.Find(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *system) Create(ctx context.Context, cmd CreateCommand) (*Policy, error) {
	if err := validateFields(cmd.Title, cmd.Level); err != nil {
		return nil, err
	}

	var created Policy
	doc, err := s.write(ctx, func(cur *Document) ([]Policy, error) {
		if _, exists := cur.FindByTitle(cmd.Title); exists {
			return nil, ErrDuplicate
		}

		created = Policy{
			ID:          cur.nextID(),
			Title:       cmd.Title,
			Level:       cmd.Level,
			Description: cmd.Description,
		}
		return append(slices.Clone(cur.Policies), created), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("policy created", "id", created.ID, "title", created.Title, "version", doc.Version)
	return &created, nil
}

func (s *system) Delete(ctx context.Context, id int) error {
	doc, err := s.write(ctx, func(cur *Document) ([]Policy, error) {
		idx := slices.IndexFunc(cur.Policies, func(p Policy) bool { return p.ID == id })
		if idx < 0 {
			return nil, ErrNotFound
		}
		return slices.Delete(slices.Clone(cur.Policies), idx, idx+1), nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("policy deleted", "id", id, "version", doc.Version)
	return nil
}

func (s *system) Revise(ctx context.Context, id int, rev Revision) (*Document, error) {
	doc, err := s.write(ctx, func(cur *Document) ([]Policy, error) {
		policies := slices.Clone(cur.Policies)
		idx := slices.IndexFunc(policies, func(p Policy) bool { return p.ID == id })
		if idx < 0 {
			return nil, ErrNotFound
		}

		if rev.Title != "" && rev.Title != policies[idx].Title {
			if _, exists := cur.FindByTitle(rev.Title); exists {
				return nil, ErrDuplicate
			}
			policies[idx].Title = rev.Title
		}
		policies[idx].Description = rev.Description
		return policies, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("policy revised", "id", id, "version", doc.Version)
	return doc, nil
}

func (s *system) Import(ctx context.Context, doc Document) (*Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if doc.Version <= cur.Version {
		return nil, fmt.Errorf("%w: version %d, current %d", ErrStale, doc.Version, cur.Version)
	}

	next := cur.successor(slices.Clone(doc.Policies))
	next.Version = doc.Version
	next.NextID = max(next.NextID, doc.NextID)
	if !doc.UpdatedAt.IsZero() {
		next.UpdatedAt = doc.UpdatedAt
	}

	if err := s.store.Append(ctx, next); err != nil {
		return nil, err
	}
	s.cache.Store(&next)

	s.logger.Info("policy document imported", "version", next.Version, "policies", len(next.Policies))
	return &next, nil
}

// write serializes in-process writers, derives the next version from the
// stored document, appends it, and swaps the cache. The cache is left
// untouched when mutate or the append fails.
func (s *system) write(ctx context.Context, mutate func(cur *Document) ([]Policy, error)) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	policies, err := mutate(cur)
	if err != nil {
		return nil, err
	}

	next := cur.successor(policies)
	if err := s.store.Append(ctx, next); err != nil {
		if errors.Is(err, ErrConflict) {
			s.Invalidate()
		}
		return nil, err
	}

	s.cache.Store(&next)
	return &next, nil
}
