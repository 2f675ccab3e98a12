package pagination_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/JaimeStill/safestack/pkg/pagination"
)

func finalized(t *testing.T) pagination.Config {
	t.Helper()
	var cfg pagination.Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := finalized(t)

	if cfg.DefaultPageSize != 20 || cfg.MaxPageSize != 100 {
		t.Errorf("page sizes = %d/%d, want 20/100", cfg.DefaultPageSize, cfg.MaxPageSize)
	}
	if cfg.DefaultLimit != 100 || cfg.MaxLimit != 1000 {
		t.Errorf("limits = %d/%d, want 100/1000", cfg.DefaultLimit, cfg.MaxLimit)
	}
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_DEFAULT_LIMIT", "25")

	cfg := pagination.Config{}
	if err := cfg.Finalize(&pagination.ConfigEnv{DefaultLimit: "TEST_DEFAULT_LIMIT"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.DefaultLimit != 25 {
		t.Errorf("DefaultLimit = %d, want 25", cfg.DefaultLimit)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := pagination.Config{DefaultLimit: 500, MaxLimit: 100}
	if err := cfg.Finalize(nil); err == nil {
		t.Error("expected error when default_limit exceeds max_limit")
	}
}

func TestConfigEnvRejectsNonInteger(t *testing.T) {
	t.Setenv("TEST_MAX_PAGE_SIZE", "lots")

	cfg := pagination.Config{}
	if err := cfg.Finalize(&pagination.ConfigEnv{MaxPageSize: "TEST_MAX_PAGE_SIZE"}); err == nil {
		t.Error("expected error for non-integer env value")
	}
}

func TestConfigMerge(t *testing.T) {
	cfg := finalized(t)
	cfg.Merge(&pagination.Config{MaxLimit: 50, DefaultLimit: 10})

	if cfg.DefaultLimit != 10 || cfg.MaxLimit != 50 {
		t.Errorf("limits = %d/%d, want 10/50", cfg.DefaultLimit, cfg.MaxLimit)
	}
	if cfg.DefaultPageSize != 20 {
		t.Errorf("DefaultPageSize = %d, want unchanged 20", cfg.DefaultPageSize)
	}
}

func TestLimitFromQuery(t *testing.T) {
	cfg := finalized(t)

	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: 100},
		{raw: "limit=10", want: 10},
		{raw: "limit=0", want: 100},
		{raw: "limit=-3", want: 100},
		{raw: "limit=5000", want: 1000},
		{raw: "limit=abc", wantErr: true},
	}

	for _, tt := range tests {
		values, _ := url.ParseQuery(tt.raw)
		got, err := pagination.LimitFromQuery(values, cfg)
		if tt.wantErr {
			if !errors.Is(err, pagination.ErrInvalidParam) {
				t.Errorf("LimitFromQuery(%q) err = %v, want ErrInvalidParam", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("LimitFromQuery(%q) = %d, %v; want %d", tt.raw, got, err, tt.want)
		}
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	cfg := finalized(t)
	values, _ := url.ParseQuery("page=2&page_size=500&sort=-Timestamp&search=dock")

	req, err := pagination.PageRequestFromQuery(values, cfg)
	if err != nil {
		t.Fatalf("PageRequestFromQuery: %v", err)
	}

	if req.Page != 2 {
		t.Errorf("page = %d, want 2", req.Page)
	}
	if req.PageSize != 100 {
		t.Errorf("page_size = %d, want clamp to 100", req.PageSize)
	}
	if req.Offset() != 100 {
		t.Errorf("offset = %d, want 100", req.Offset())
	}
	if len(req.Sort) != 1 || !req.Sort[0].Descending {
		t.Errorf("sort = %+v", req.Sort)
	}
	if req.Search == nil || *req.Search != "dock" {
		t.Errorf("search = %v", req.Search)
	}

	values, _ = url.ParseQuery("page=two")
	if _, err := pagination.PageRequestFromQuery(values, cfg); !errors.Is(err, pagination.ErrInvalidParam) {
		t.Errorf("err = %v, want ErrInvalidParam", err)
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		page      int
		wantPages int
		wantMore  bool
	}{
		{name: "partial last page", total: 41, page: 1, wantPages: 3, wantMore: true},
		{name: "exact fit on last page", total: 40, page: 2, wantPages: 2, wantMore: false},
		{name: "empty", total: 0, page: 1, wantPages: 1, wantMore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pagination.NewPageResult[string](nil, tt.total, tt.page, 20)

			if result.TotalPages != tt.wantPages {
				t.Errorf("total_pages = %d, want %d", result.TotalPages, tt.wantPages)
			}
			if result.HasMore != tt.wantMore {
				t.Errorf("has_more = %v, want %v", result.HasMore, tt.wantMore)
			}
			if result.Data == nil {
				t.Error("data should be an empty slice, not nil")
			}
		})
	}
}
