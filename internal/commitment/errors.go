package commitment

import "errors"

var (
	// ErrInvalidLeaf is returned when a leaf is not a hex-encoded SHA-256 digest.
	ErrInvalidLeaf = errors.New("commitment: invalid leaf hash")
	// ErrIndexOutOfRange is returned when a proof is requested for a missing leaf.
	ErrIndexOutOfRange = errors.New("commitment: leaf index out of range")
	// ErrInvalidField is returned when a leaf field cannot be serialized canonically.
	ErrInvalidField = errors.New("commitment: invalid leaf field")
)
