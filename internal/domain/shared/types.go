package shared

import (
	"time"

	"github.com/google/uuid"
)

// ID represents a unique identifier
type ID string

// NewID generates a new unique ID
func NewID() ID {
	return ID(uuid.New().String())
}

// String returns the string representation of ID
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if ID is empty
func (id ID) IsEmpty() bool {
	return string(id) == ""
}

// Millis is a wall-clock instant in milliseconds since the Unix epoch.
// Zero means "never".
type Millis int64

// NowMillis returns the current time as Millis
func NowMillis() Millis {
	return Millis(time.Now().UnixMilli())
}

// IsZero reports whether m was never set
func (m Millis) IsZero() bool {
	return m == 0
}

// Time converts m to time.Time; the zero value maps to time.Time{}
func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m))
}

// Clock abstracts time.Now so stores can be tested deterministically
type Clock func() Millis
