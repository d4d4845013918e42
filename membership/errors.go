package membership

import "errors"

// Sentinel errors returned by the membership service. Handlers map these
// to HTTP status codes; everything else is treated as an internal error.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateName    = errors.New("guild name already taken")
	ErrAlreadyInGuild   = errors.New("profile already belongs to a guild")
	ErrNotInGuild       = errors.New("profile does not belong to a guild")
	ErrValidation       = errors.New("validation failed")
)
