package enrich

import "errors"

// Error classes. Concrete errors wrap one of these with fmt.Errorf("...: %w").
var (
	// ErrConfiguration marks missing or invalid configuration. Fatal, reported before any navigation.
	ErrConfiguration = errors.New("configuration error")
	// ErrAuthentication marks a failed or timed out login. Fatal.
	ErrAuthentication = errors.New("authentication error")
	// ErrSession marks a browsing context that can no longer navigate. Fatal.
	ErrSession = errors.New("session error")
	// ErrStore marks a table that cannot be read or written. Fatal.
	ErrStore = errors.New("record store error")
	// ErrExtraction marks a per-record navigation or DOM failure. Recovered.
	ErrExtraction = errors.New("extraction error")
	// ErrAttachment marks a per-link transfer failure. Recovered.
	ErrAttachment = errors.New("attachment error")
)

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrSession) ||
		errors.Is(err, ErrStore)
}
