package auth

import (
	"errors"
	"fmt"
)

// Code identifies an authentication failure.
type Code string

const (
	CodeTokenCacheUnavailable Code = "token_cache_unavailable"
	CodeSignOutCleanup        Code = "sign_out_cleanup"
	CodeConsentCancelled      Code = "consent_cancelled"
	CodeInteractionRequired   Code = "interaction_required"
	CodeAuthorizationFailed   Code = "authorization_failed"
	CodeInvalidIDToken        Code = "invalid_id_token"
	CodeProfileUnavailable    Code = "profile_unavailable"
)

// nonActionable lists the codes the user cannot do anything about. They are
// logged but never surfaced.
var nonActionable = map[Code]bool{
	CodeTokenCacheUnavailable: true,
	CodeSignOutCleanup:        true,
	CodeConsentCancelled:      true,
}

type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s", e.Code)
	}
	return fmt.Sprintf("auth: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err carries an auth error with the given code.
func IsCode(err error, code Code) bool {
	var authErr *Error
	return errors.As(err, &authErr) && authErr.Code == code
}

// IsNonActionable reports whether err is an auth error on the allow-list of
// failures that should not be shown to the user.
func IsNonActionable(err error) bool {
	var authErr *Error
	return errors.As(err, &authErr) && nonActionable[authErr.Code]
}
