package export

import (
	"context"
	"errors"
	"testing"

	"cvbuilder/internal/config"
)

// fakeSession records the pipeline call order and injects failures at a
// chosen step.
type fakeSession struct {
	calls      []string
	closeCalls int
	failAt     string
	pdf        []byte
}

var errInjected = errors.New("injected failure")

func (f *fakeSession) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failAt == name {
		return errInjected
	}
	return nil
}

func (f *fakeSession) Navigate(url string) error { return f.step("navigate") }
func (f *fakeSession) WaitNetworkIdle() error { return f.step("network_idle") }
func (f *fakeSession) ForceDarkMode() error { return f.step("dark_mode") }
func (f *fakeSession) WaitMarker(selector string) error { return f.step("marker") }
func (f *fakeSession) Close() { f.closeCalls++ }
func (f *fakeSession) CapturePDF() ([]byte, error) {
	if err := f.step("capture"); err != nil {
		return nil, err
	}
	if f.pdf == nil {
		return []byte("%PDF-1.4 fake"), nil
	}
	return f.pdf, nil
}

type fakeLauncher struct {
	launches  int
	launchErr error
	sessions  []*fakeSession
	failAt    string
}

func (l *fakeLauncher) Launch(ctx context.Context) (Session, error) {
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	s := &fakeSession{failAt: l.failAt}
	l.sessions = append(l.sessions, s)
	return s, nil
}

func testExporter(l Launcher) *Exporter {
	var cfg config.Config
	cfg.PDF.TimeoutSecs = 5
	cfg.PDF.MarkerSelector = "#cv-preview-container"
	return New(l, cfg)
}

func TestExport_MissingURLNeverLaunches(t *testing.T) {
	l := &fakeLauncher{}
	e := testExporter(l)

	for _, url := range []string{"", "   "} {
		if _, err := e.Export(context.Background(), Request{URL: url}); !errors.Is(err, ErrMissingURL) {
			t.Fatalf("expected ErrMissingURL for %q, got %v", url, err)
		}
	}
	if l.launches != 0 {
		t.Fatalf("expected zero launches for validation failures, got %d", l.launches)
	}
}

func TestExport_SuccessPipelineOrder(t *testing.T) {
	l := &fakeLauncher{}
	e := testExporter(l)

	pdf, err := e.Export(context.Background(), Request{URL: "http://localhost/preview?cv=1"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(pdf) == 0 || string(pdf[:5]) != "%PDF-" {
		t.Fatalf("expected PDF magic bytes, got %q", pdf)
	}

	s := l.sessions[0]
	want := []string{"navigate", "network_idle", "marker", "capture"}
	if len(s.calls) != len(want) {
		t.Fatalf("unexpected calls: %v", s.calls)
	}
	for i, c := range want {
		if s.calls[i] != c {
			t.Fatalf("call %d = %q, want %q (all: %v)", i, s.calls[i], c, s.calls)
		}
	}
	if s.closeCalls != 1 {
		t.Fatalf("expected exactly one close, got %d", s.closeCalls)
	}
}

func TestExport_DarkModeAppliedBeforeMarkerWait(t *testing.T) {
	l := &fakeLauncher{}
	e := testExporter(l)

	if _, err := e.Export(context.Background(), Request{URL: "http://localhost/preview?cv=1", DarkMode: true}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	s := l.sessions[0]
	darkIdx, markerIdx := -1, -1
	for i, c := range s.calls {
		switch c {
		case "dark_mode":
			darkIdx = i
		case "marker":
			markerIdx = i
		}
	}
	if darkIdx == -1 {
		t.Fatalf("dark mode was never applied: %v", s.calls)
	}
	if darkIdx >= markerIdx {
		t.Fatalf("dark mode must precede marker wait: %v", s.calls)
	}
}

func TestExport_TeardownOnEveryFailurePoint(t *testing.T) {
	for _, failAt := range []string{"navigate", "network_idle", "dark_mode", "marker", "capture"} {
		t.Run(failAt, func(t *testing.T) {
			l := &fakeLauncher{failAt: failAt}
			e := testExporter(l)

			_, err := e.Export(context.Background(), Request{URL: "http://localhost/preview?cv=1", DarkMode: true})
			if err == nil {
				t.Fatalf("expected failure at %s", failAt)
			}
			if err.Error() == "" {
				t.Fatalf("expected non-empty error message")
			}
			if got := l.sessions[0].closeCalls; got != 1 {
				t.Fatalf("expected exactly one close after %s failure, got %d", failAt, got)
			}
		})
	}
}

func TestExport_ErrorKinds(t *testing.T) {
	tests := []struct {
		failAt string
		want   error
	}{
		{failAt: "navigate", want: ErrNavigation},
		{failAt: "network_idle", want: ErrReadinessTimeout},
		{failAt: "marker", want: ErrReadinessTimeout},
		{failAt: "capture", want: ErrRendering},
	}
	for _, tc := range tests {
		t.Run(tc.failAt, func(t *testing.T) {
			l := &fakeLauncher{failAt: tc.failAt}
			e := testExporter(l)
			_, err := e.Export(context.Background(), Request{URL: "http://localhost/preview?cv=1"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExport_LaunchFailureReturnsError(t *testing.T) {
	l := &fakeLauncher{launchErr: errInjected}
	e := testExporter(l)
	if _, err := e.Export(context.Background(), Request{URL: "http://localhost/preview?cv=1"}); err == nil {
		t.Fatalf("expected launch failure to surface")
	}
}

func TestExport_IndependentCalls(t *testing.T) {
	l := &fakeLauncher{}
	e := testExporter(l)

	req := Request{URL: "http://localhost/preview?cv=1", DarkMode: true}
	for i := 0; i < 2; i++ {
		if _, err := e.Export(context.Background(), req); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if l.launches != 2 {
		t.Fatalf("expected one fresh session per call, got %d launches", l.launches)
	}
	for i, s := range l.sessions {
		if s.closeCalls != 1 {
			t.Fatalf("session %d closed %d times", i, s.closeCalls)
		}
	}
}

func TestExport_NoDarkModeCallWhenFlagUnset(t *testing.T) {
	l := &fakeLauncher{}
	e := testExporter(l)

	if _, err := e.Export(context.Background(), Request{URL: "http://localhost/preview?cv=1"}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	for _, c := range l.sessions[0].calls {
		if c == "dark_mode" {
			t.Fatalf("dark mode must not run when flag is false: %v", l.sessions[0].calls)
		}
	}
}
