// Package gate implements the edge access gate: every navigation request
// is classified against two fixed path sets and either passed through or
// redirected, based solely on whether the session cookie is present. The
// cookie is not decoded or validated here; the API layer does that.
package gate

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"cvbuilder/internal/config"
	"cvbuilder/internal/logging"
)

// Decision is the outcome of classifying a single request.
type Decision struct {
	Redirect bool
	Target   string
}

// Continue passes the request through unmodified.
var Continue = Decision{}

// RedirectTo builds a redirect decision.
func RedirectTo(target string) Decision {
	return Decision{Redirect: true, Target: target}
}

// Gate classifies request paths. It is immutable after construction and
// safe for concurrent use.
type Gate struct {
	protected  map[string]struct{}
	publicOnly map[string]struct{}
	loginPath  string
	homePath   string
	cfg        config.GateConfig
}

// New builds a Gate from configuration. Membership is by exact path match.
func New(cfg config.GateConfig) *Gate {
	g := &Gate{
		protected:  make(map[string]struct{}, len(cfg.ProtectedPaths)),
		publicOnly: make(map[string]struct{}, len(cfg.PublicOnlyPaths)),
		loginPath:  cfg.LoginPath,
		homePath:   cfg.HomePath,
		cfg:        cfg,
	}
	for _, p := range cfg.ProtectedPaths {
		g.protected[p] = struct{}{}
	}
	for _, p := range cfg.PublicOnlyPaths {
		g.publicOnly[p] = struct{}{}
	}
	return g
}

// Classify decides what to do with a request for path given whether the
// session cookie is present. First match wins: protected paths without a
// credential go to login, public-only paths with a credential go home,
// everything else continues.
func (g *Gate) Classify(path string, credentialPresent bool) Decision {
	if _, ok := g.protected[path]; ok && !credentialPresent {
		return RedirectTo(g.loginPath)
	}
	if _, ok := g.publicOnly[path]; ok && credentialPresent {
		return RedirectTo(g.homePath)
	}
	return Continue
}

// Skip reports whether the gate should not run for path at all: API
// routes, static assets and image files are never gated.
func (g *Gate) Skip(path string) bool {
	for _, exact := range g.cfg.SkipExact {
		if path == exact {
			return true
		}
	}
	for _, prefix := range g.cfg.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, suffix := range g.cfg.SkipSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// Middleware returns the fiber handler enforcing the gate. cookieName is
// the session cookie whose presence counts as a credential.
func Middleware(g *Gate, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if g.Skip(path) {
			return c.Next()
		}
		d := g.Classify(path, c.Cookies(cookieName) != "")
		if d.Redirect {
			logging.Debug("Gate redirect", "path", path, "target", d.Target)
			return c.Redirect(d.Target, fiber.StatusFound)
		}
		return c.Next()
	}
}
