package unifi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuth is the root of every authentication failure. Use errors.Is
// to tell authentication problems apart from device write failures.
var ErrAuth = errors.New("authentication failed")

var (
	// ErrNoSessionToken means a login endpoint accepted the credentials
	// but the controller never set the TOKEN cookie.
	ErrNoSessionToken = fmt.Errorf("%w: no %s cookie received after login", ErrAuth, TokenCookie)

	// ErrNoCSRFToken means the self endpoint answered without an
	// x-csrf-token header.
	ErrNoCSRFToken = fmt.Errorf("%w: could not obtain CSRF token from %s", ErrAuth, selfPath)
)

// LoginAttempt records one failed login endpoint. Exactly one of Err
// (transport fault) or StatusCode/Body (rejected request) is set.
type LoginAttempt struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (a LoginAttempt) detail() string {
	if a.Err != nil {
		return a.Err.Error()
	}
	return a.Body
}

// LoginError is returned when every login endpoint failed. Its message
// carries the detail of the last attempt.
type LoginError struct {
	Attempts []LoginAttempt
}

func (e *LoginError) Error() string {
	if len(e.Attempts) == 0 {
		return "login failed"
	}
	return "login failed: " + e.Attempts[len(e.Attempts)-1].detail()
}

// Unwrap exposes ErrAuth and, when the last attempt was a transport
// fault, that fault.
func (e *LoginError) Unwrap() []error {
	errs := []error{ErrAuth}
	if n := len(e.Attempts); n > 0 && e.Attempts[n-1].Err != nil {
		errs = append(errs, e.Attempts[n-1].Err)
	}
	return errs
}

// HTTPError is returned when the controller rejects a device write.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s",
		e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), truncate(e.Body, bodyExcerpt))
}
