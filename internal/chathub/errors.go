package chathub

import "errors"

var (
	ErrNoPartner         = errors.New("no partner")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrAlreadyPaired     = errors.New("already paired")
	ErrNotRegistered     = errors.New("profile not registered")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrEmptyMessage      = errors.New("empty message")
	ErrMessageTooLong    = errors.New("message too long")
	ErrUnsupportedEvent  = errors.New("unsupported event")
	ErrBadPayload        = errors.New("malformed payload")
	ErrRateLimited       = errors.New("rate limited")
)

// errorCodes maps each sentinel to the code sent in "error" events.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNoPartner, "no_partner"},
	{ErrUnknownConnection, "unknown_connection"},
	{ErrAlreadyPaired, "already_paired"},
	{ErrNotRegistered, "not_registered"},
	{ErrInvalidProfile, "invalid_profile"},
	{ErrEmptyMessage, "empty_message"},
	{ErrMessageTooLong, "message_too_long"},
	{ErrUnsupportedEvent, "unsupported_event"},
	{ErrBadPayload, "bad_payload"},
	{ErrRateLimited, "rate_limited"},
	{ErrBanned, "banned"},
}

// ErrorCode returns the wire code for err, or "internal" for anything that is
// not one of the package sentinels.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
