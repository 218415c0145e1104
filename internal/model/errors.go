package model

import "errors"

// Sentinel errors for the taxonomy in the error handling design: transient
// upstream failures are swallowed by callers, storage/recipient failures are
// logged and dropped, and ConfigInvalid is the only class allowed to reach
// main().
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUpstream           = errors.New("upstream transient error")
	ErrMalformedUpstream  = errors.New("malformed upstream payload")
	ErrRecipientBlocked   = errors.New("recipient blocked")
	ErrConfigInvalid      = errors.New("invalid configuration")
)
