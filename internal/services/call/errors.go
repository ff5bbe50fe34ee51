package call

import "errors"

// Validation failures returned synchronously to the caller, never retried
var (
	ErrMissingLead           = errors.New("missing leadId")
	ErrNoActiveCall          = errors.New("no active call found for this lead")
	ErrTargetNotConfigured   = errors.New("voiceflow number not configured")
	ErrCallerIDNotConfigured = errors.New("twilio caller id not configured")
)

// RedirectError wraps a control-plane failure during the live-call mutation.
// The session is intentionally left in the registry so a retry stays possible.
type RedirectError struct {
	Err error
}

func (e *RedirectError) Error() string {
	return "redirect failed: " + e.Err.Error()
}

func (e *RedirectError) Unwrap() error {
	return e.Err
}
