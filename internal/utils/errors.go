package utils

import "errors"

// Common application errors used across services.
var (
	ErrNotFound           = errors.New("NOT_FOUND")
	ErrInvalidToken       = errors.New("INVALID_TOKEN")
	ErrInvalidClient      = errors.New("INVALID_CLIENT")
	ErrInvalidIP          = errors.New("INVALID_IP")
	ErrInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	ErrInvalidDataType    = errors.New("INVALID_DATA_TYPE")
	ErrInvalidFormat      = errors.New("INVALID_FORMAT")
	ErrUnsupportedFormat  = errors.New("UNSUPPORTED_FORMAT")
	ErrJobNotClaimable    = errors.New("JOB_NOT_CLAIMABLE")
	ErrJobStateConflict   = errors.New("JOB_STATE_CONFLICT")
	ErrBatchTooLarge      = errors.New("BATCH_TOO_LARGE")
	ErrInvalidRecord      = errors.New("INVALID_RECORD")
	ErrLinkExpired        = errors.New("LINK_EXPIRED")
	ErrInvalidSignature   = errors.New("INVALID_SIGNATURE")
	ErrDuplicate          = errors.New("DUPLICATE")
)
