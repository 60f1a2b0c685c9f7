// Package export converts a live preview page into a paginated PDF by
// driving an ephemeral headless browser session through a fixed pipeline:
// navigate, wait for network idle, optionally force dark mode, wait for
// the content marker, capture. Every call is a fresh render; there is no
// pooling and no caching.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cvbuilder/internal/config"
	"cvbuilder/internal/logging"
)

// Request describes one export. URL must point at a same-origin preview
// page exposing the content marker.
type Request struct {
	URL      string `json:"url"`
	DarkMode bool   `json:"darkMode"`
}

// Exporter runs the export pipeline against sessions produced by its
// Launcher. Safe for concurrent use; each call owns its session.
type Exporter struct {
	launcher Launcher
	selector string
	timeout  time.Duration
}

// New builds an Exporter. The marker selector and overall timeout come
// from configuration.
func New(launcher Launcher, cfg config.Config) *Exporter {
	return &Exporter{
		launcher: launcher,
		selector: cfg.PDF.MarkerSelector,
		timeout:  time.Duration(cfg.PDF.TimeoutSecs) * time.Second,
	}
}

// Export runs the full pipeline and returns the PDF bytes. The session is
// closed on every exit path after a successful launch. Validation failures
// return ErrMissingURL before any session exists.
func (e *Exporter) Export(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, ErrMissingURL
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	sess, err := e.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendering, err)
	}
	defer sess.Close()

	if err := sess.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	if err := sess.WaitNetworkIdle(); err != nil {
		return nil, fmt.Errorf("%w: network idle: %v", ErrReadinessTimeout, err)
	}
	// Dark mode must be applied before the marker wait, or the marker
	// could be observed against stale styling.
	if req.DarkMode {
		if err := sess.ForceDarkMode(); err != nil {
			return nil, fmt.Errorf("%w: dark mode: %v", ErrRendering, err)
		}
	}
	if err := sess.WaitMarker(e.selector); err != nil {
		return nil, fmt.Errorf("%w: marker %s: %v", ErrReadinessTimeout, e.selector, err)
	}

	pdf, err := sess.CapturePDF()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendering, err)
	}

	logging.Info("PDF exported",
		"url", req.URL,
		"dark_mode", req.DarkMode,
		"bytes", len(pdf),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return pdf, nil
}
