package policies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// LoadFile reads a policy document from a JSON file.
func LoadFile(path string) (Document, error) {
	var doc Document

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read policy file: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: parse policy file: %w", ErrInvalidPolicy, err)
	}
	return doc, nil
}

func (s *system) importFile(ctx context.Context) {
	doc, err := LoadFile(s.opts.PolicyFile)
	if err != nil {
		s.logger.Error("policy file load failed", "path", s.opts.PolicyFile, "error", err)
		return
	}

	if _, err := s.Import(ctx, doc); err != nil {
		if errors.Is(err, ErrStale) {
			s.logger.Info("policy file not newer than stored document", "path", s.opts.PolicyFile, "version", doc.Version)
			return
		}
		s.logger.Error("policy file import failed", "path", s.opts.PolicyFile, "error", err)
	}
}

// watch re-imports the policy file whenever it changes. The parent
// directory is watched so that editors replacing the file are observed.
func (s *system) watch(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Error("policy watcher unavailable", "error", err)
		return
	}
	defer w.Close()

	target := filepath.Clean(s.opts.PolicyFile)
	if err := w.Add(filepath.Dir(target)); err != nil {
		s.logger.Error("policy watcher add failed", "path", target, "error", err)
		return
	}

	s.logger.Info("watching policy file", "path", target)

	reload := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if debounce == nil {
				debounce = time.AfterFunc(reloadDebounce, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(reloadDebounce)
			}
		case <-reload:
			s.importFile(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("policy watcher error", "error", err)
		}
	}
}
