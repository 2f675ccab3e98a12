package lifecycle_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/safestack/pkg/lifecycle"
)

type flag struct{ ready atomic.Bool }

func (f *flag) Ready() bool { return f.ready.Load() }

func TestReadyAfterStartup(t *testing.T) {
	lc := lifecycle.New()

	var ran atomic.Bool
	lc.OnStartup(func() { ran.Store(true) })

	if lc.Ready() {
		t.Fatal("ready before WaitForStartup")
	}

	lc.WaitForStartup()

	if !ran.Load() {
		t.Error("startup hook did not run")
	}
	if !lc.Ready() {
		t.Error("not ready after WaitForStartup")
	}
}

func TestReadyConsultsCheckers(t *testing.T) {
	lc := lifecycle.New()
	db := &flag{}
	events := &flag{}
	lc.Register("database", db)
	lc.Register("events", events)
	lc.WaitForStartup()

	if lc.Ready() {
		t.Fatal("ready while checkers pending")
	}
	if got := lc.Pending(); len(got) != 2 || got[0] != "database" || got[1] != "events" {
		t.Errorf("Pending = %v", got)
	}

	db.ready.Store(true)
	events.ready.Store(true)

	if !lc.Ready() {
		t.Errorf("not ready, pending %v", lc.Pending())
	}
}

func TestShutdownRunsHooks(t *testing.T) {
	lc := lifecycle.New()

	var closed atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		closed.Store(true)
	})

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !closed.Load() {
		t.Error("shutdown hook did not run")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()
	release := make(chan struct{})
	defer close(release)

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-release
	})

	err := lc.Shutdown(20 * time.Millisecond)
	if !errors.Is(err, lifecycle.ErrShutdownTimeout) {
		t.Errorf("err = %v, want ErrShutdownTimeout", err)
	}
}

func TestReadinessProbe(t *testing.T) {
	lc := lifecycle.New()
	var db atomic.Bool
	lc.Register("database", lifecycle.ReadyFunc(db.Load))
	lc.WaitForStartup()

	probe := func() (int, lifecycle.Status) {
		rec := httptest.NewRecorder()
		lc.Readiness()(rec, httptest.NewRequest("GET", "/readyz", nil))
		var status lifecycle.Status
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return rec.Code, status
	}

	code, status := probe()
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if len(status.Pending) != 1 || status.Pending[0] != "database" {
		t.Errorf("pending = %v", status.Pending)
	}

	db.Store(true)

	code, status = probe()
	if code != http.StatusOK || !status.Ready {
		t.Errorf("status = %d, body = %+v", code, status)
	}
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	lifecycle.Liveness(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
