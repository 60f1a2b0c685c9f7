package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/export"
	"cvbuilder/internal/store"
)

// stub stores; app-level tests only exercise wiring, not persistence.
type stubUsers struct{}

func (stubUsers) CreateUser(context.Context, store.User) error { return nil }
func (stubUsers) UserByEmail(context.Context, string) (store.User, error) {
	return store.User{}, store.ErrNotFound
}

type stubCVs struct{}

func (stubCVs) SaveCV(context.Context, store.CV) error { return nil }
func (stubCVs) CVByID(context.Context, string, string) (store.CV, error) {
	return store.CV{}, store.ErrNotFound
}
func (stubCVs) PreviewCV(context.Context, string) (store.CV, error) {
	return store.CV{}, store.ErrNotFound
}
func (stubCVs) ListCVs(context.Context, string) ([]store.CV, error) { return nil, nil }
func (stubCVs) DeleteCV(context.Context, string, string) error { return store.ErrNotFound }

type stubSession struct{}

func (s *stubSession) Navigate(string) error { return nil }
func (s *stubSession) WaitNetworkIdle() error { return nil }
func (s *stubSession) ForceDarkMode() error { return nil }
func (s *stubSession) WaitMarker(string) error { return nil }
func (s *stubSession) CapturePDF() ([]byte, error) { return []byte("%PDF-1.7 stub"), nil }
func (s *stubSession) Close()                      {}

type stubLauncher struct{}

func (stubLauncher) Launch(ctx context.Context) (export.Session, error) {
	return &stubSession{}, nil
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	var cfg config.Config
	cfg.Auth.CookieName = "auth_token"
	cfg.Auth.SessionTTL = time.Hour
	cfg.PDF.TimeoutSecs = 5
	cfg.PDF.MarkerSelector = "#cv-preview-container"
	cfg.Gate = config.GateConfig{
		ProtectedPaths:  []string{"/", "/my-cvs", "/profile"},
		PublicOnlyPaths: []string{"/auth/login", "/auth/register"},
		LoginPath:       "/auth/login",
		HomePath:        "/",
		SkipPrefixes:    []string{"/api/", "/static/"},
		SkipSuffixes:    []string{".png", ".ico"},
		SkipExact:       []string{"/favicon.ico"},
	}

	tokens, err := auth.NewManager(cfg, nil)
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	return Deps{
		Config:   cfg,
		Users:    stubUsers{},
		CVs:      stubCVs{},
		Tokens:   tokens,
		Launcher: stubLauncher{},
	}
}

func TestSetupApp_JSON404(t *testing.T) {
	app := SetupApp(testDeps(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected JSON error response, got %q", ct)
	}
}

func TestSetupApp_HealthAndRequestID(t *testing.T) {
	app := SetupApp(testDeps(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected health endpoint 200, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/presets", nil))
	if err != nil {
		t.Fatalf("presets request failed: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header")
	}
}

func TestSetupApp_GateWired(t *testing.T) {
	app := SetupApp(testDeps(t))

	// protected page without cookie: gate redirects before the 404 handler
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/my-cvs", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("expected 302 redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/auth/login" {
		t.Fatalf("expected login redirect, got %q", loc)
	}

	// API paths bypass the gate
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/presets", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected presets to bypass gate, got %d", resp.StatusCode)
	}
}

func TestSetupApp_ExportEndToEnd(t *testing.T) {
	app := SetupApp(testDeps(t))

	req := httptest.NewRequest(http.MethodPost, "/api/export/pdf", strings.NewReader(`{"url": "http://localhost/preview?cv=1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ct)
	}

	// missing url through the full app
	req = httptest.NewRequest(http.MethodPost, "/api/export/pdf", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUserRateLimit(t *testing.T) {
	deps := testDeps(t)
	deps.Config.RateLimiter.UserLimit = 2
	deps.Config.RateLimiter.Interval = time.Minute
	app := SetupApp(deps)

	var last int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/presets", nil))
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		last = resp.StatusCode
	}
	if last != fiber.StatusTooManyRequests {
		t.Fatalf("expected third request limited, got %d", last)
	}
}
