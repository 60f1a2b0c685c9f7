package export

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"cvbuilder/internal/config"
)

// A4 in inches; margins are zero because the preview layout owns its own.
const (
	paperWidthIn  = 8.27
	paperHeightIn = 11.69
)

// Session is one exclusive, short-lived browser rendering context. A
// session is owned by exactly one export and must be closed exactly once;
// Close is safe to call from a defer on every exit path.
type Session interface {
	Navigate(url string) error
	WaitNetworkIdle() error
	ForceDarkMode() error
	WaitMarker(selector string) error
	CapturePDF() ([]byte, error)
	Close()
}

// Launcher creates Sessions. Tests substitute a fake to observe call
// order and teardown without a real browser.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// ChromeLauncher starts one headless Chrome process per session via
// chromedp. Sandbox hardening is disabled for restricted container
// environments, so the launcher must only ever be pointed at same-origin
// preview pages, never arbitrary external URLs.
type ChromeLauncher struct {
	cfg config.Config
}

// NewChromeLauncher returns a launcher using the configured Chrome binary
// and flags.
func NewChromeLauncher(cfg config.Config) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg}
}

// Launch starts a browser bound to ctx: caller cancellation or timeout
// tears the whole process tree down.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	base := l.cfg.PDF.UserDataDir
	if base == "" {
		base = os.TempDir()
	}
	tmpDir, err := os.MkdirTemp(base, "cvbuilder-chrome-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}

	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(tmpDir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.cfg.PDF.ChromePath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(l.cfg.PDF.ChromePath))
	}
	if l.cfg.PDF.NoSandbox {
		allocatorOptions = append(allocatorOptions, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:         tabCtx,
		cancelTab:   tabCancel,
		cancelAlloc: allocCancel,
		profileDir:  tmpDir,
		idleWindow:  time.Duration(l.cfg.PDF.IdleWindowMS) * time.Millisecond,
	}
	s.trackNetwork()

	// Start the browser and enable network events before any navigation,
	// so the idle tracker never misses the first request.
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("chrome launch: %w", err)
	}
	return s, nil
}

type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	profileDir  string
	idleWindow  time.Duration

	closeOnce sync.Once

	mu           sync.Mutex
	inflight     int
	lastActivity time.Time
}

// trackNetwork counts in-flight requests from CDP network events. The
// counter drives WaitNetworkIdle.
func (s *chromeSession) trackNetwork() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			s.mu.Lock()
			s.inflight++
			s.lastActivity = time.Now()
			s.mu.Unlock()
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			s.mu.Lock()
			if s.inflight > 0 {
				s.inflight--
			}
			s.lastActivity = time.Now()
			s.mu.Unlock()
		}
	})
}

func (s *chromeSession) Navigate(url string) error {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return chromedp.Run(s.ctx, chromedp.Navigate(url))
}

// WaitNetworkIdle blocks until no request has been in flight for the
// configured trailing window, or the session context expires.
func (s *chromeSession) WaitNetworkIdle() error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			idle := s.inflight == 0 && time.Since(s.lastActivity) >= s.idleWindow
			s.mu.Unlock()
			if idle {
				return nil
			}
		}
	}
}

// ForceDarkMode toggles the dark variant on the document root. Runs after
// navigation and before the marker wait so the marker never observes
// stale styling.
func (s *chromeSession) ForceDarkMode() error {
	return chromedp.Run(s.ctx,
		chromedp.Evaluate(`document.documentElement.classList.add('dark')`, nil),
	)
}

// WaitMarker polls for the content marker selector until it exists in the
// DOM or the session context expires. Network can be idle while
// client-side rendering is still populating the DOM, so this barrier is
// separate from WaitNetworkIdle.
func (s *chromeSession) WaitMarker(selector string) error {
	expr := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-ticker.C:
			var found bool
			if err := chromedp.Run(s.ctx, chromedp.Evaluate(expr, &found)); err != nil {
				return err
			}
			if found {
				return nil
			}
		}
	}
}

func (s *chromeSession) CapturePDF() ([]byte, error) {
	var pdfBuf []byte
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdfBuf, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidthIn).
			WithPaperHeight(paperHeightIn).
			WithMarginTop(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithMarginRight(0).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return pdfBuf, nil
}

// Close tears the browser down and removes the temp profile. Idempotent.
func (s *chromeSession) Close() {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
		_ = os.RemoveAll(s.profileDir)
	})
}
