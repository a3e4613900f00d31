package task

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out context ids. Implementations must be safe for
// concurrent use and never repeat an id within the process.
type IDGenerator interface {
	NextID() string
}

// CounterIDGenerator produces "0", "1", "2", ...
type CounterIDGenerator struct {
	next atomic.Uint64
}

func (g *CounterIDGenerator) NextID() string {
	return strconv.FormatUint(g.next.Add(1)-1, 10)
}

// UUIDGenerator produces random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NextID() string {
	return uuid.NewString()
}

// DefaultIDGenerator is shared by every Manager that is not configured
// with its own generator, keeping ids unique across managers.
var DefaultIDGenerator IDGenerator = &CounterIDGenerator{}
