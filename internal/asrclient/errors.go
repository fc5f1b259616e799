package asrclient

import "errors"

// ErrProtocolViolation is returned internally when an inbound message fails
// discrimination by type. It is non-fatal from the caller's perspective: the
// client closes and reopens the connection and the session continues.
var ErrProtocolViolation = errors.New("asrclient: protocol violation")
