package msgset

import "errors"

var (
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrInvalidRange       = errors.New("invalid range")
	ErrIncompatibleSets   = errors.New("incompatible sets")
	ErrMalformedToken     = errors.New("malformed token")
	ErrMalformedRange     = errors.New("malformed range")
	ErrInvalidBatchSize   = errors.New("invalid batch size")
	ErrUnsupportedVersion = errors.New("unsupported record version")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrChecksumMismatch   = errors.New("record checksum mismatch")
	ErrUnresolvedAll      = errors.New("unresolved full-mailbox set")
)
