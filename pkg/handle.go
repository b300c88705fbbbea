package xcpindex

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Handle is the opaque 16-byte filesystem identity of an entry. Handles
// are compared bytewise and never interpreted.
type Handle [16]byte

// HandleNone is the zero handle, meaning "no parent" (the scan root's parent).
var HandleNone Handle

// NewHandle mints a fresh handle for builder and test fixtures
func NewHandle() Handle {
	return Handle(uuid.New())
}

// IsNone reports whether the handle is the zero "no parent" handle
func (h Handle) IsNone() bool {
	return h == HandleNone
}

// String renders a short hex form for logs and diagnostics
func (h Handle) String() string {
	return hex.EncodeToString(h[:4]) + ".." + hex.EncodeToString(h[12:])
}
