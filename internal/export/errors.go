package export

import "errors"

// Sentinel errors to allow precise mapping in handlers
var (
	// ErrMissingURL means the request carried no target URL. No browser
	// session is launched in this case.
	ErrMissingURL = errors.New("Missing url")
	// ErrNavigation means the target page could not be loaded.
	ErrNavigation = errors.New("navigation failed")
	// ErrReadinessTimeout means a readiness barrier (network idle or the
	// content marker) was not satisfied in time.
	ErrReadinessTimeout = errors.New("readiness timeout")
	// ErrRendering means the PDF capture step itself failed.
	ErrRendering = errors.New("pdf capture failed")
)
