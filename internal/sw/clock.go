package sw

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies timestamps for stored records and cached responses.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator names intercepted requests so their log lines can be correlated.
type IDGenerator interface {
	New() string
}

// UUIDGenerator names requests with random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }

var (
	_ Clock       = RealClock{}
	_ IDGenerator = UUIDGenerator{}
)
