package domain

import "time"

// Offset is a named forward time delta used to look up a later price
// for computing change against the baseline.
type Offset string

// Supported offsets. OffsetBaseline targets the message timestamp itself.
const (
	OffsetBaseline Offset = "0m"
	Offset1Hr      Offset = "1hr"
	Offset6Hr      Offset = "6hr"
	Offset24Hr     Offset = "24hr"
	Offset3D       Offset = "3d"
	Offset7D       Offset = "7d"
	Offset2W       Offset = "2w"
	Offset1M       Offset = "1m"
)

// offsetDurations maps each offset to its fixed duration.
// A month is approximated as 30 days.
var offsetDurations = map[Offset]time.Duration{
	OffsetBaseline: 0,
	Offset1Hr:      time.Hour,
	Offset6Hr:      6 * time.Hour,
	Offset24Hr:     24 * time.Hour,
	Offset3D:       3 * 24 * time.Hour,
	Offset7D:       7 * 24 * time.Hour,
	Offset2W:       14 * 24 * time.Hour,
	Offset1M:       30 * 24 * time.Hour,
}

// Duration returns the fixed duration for the offset.
// Unknown offsets return 0.
func (o Offset) Duration() time.Duration {
	return offsetDurations[o]
}

// Valid reports whether o is one of the supported offsets.
func (o Offset) Valid() bool {
	_, ok := offsetDurations[o]
	return ok
}

// ForwardOffsets returns the seven non-baseline offsets in ascending
// duration order. Callers must not mutate the returned slice.
func ForwardOffsets() []Offset {
	return forwardOffsets
}

var forwardOffsets = []Offset{
	Offset1Hr, Offset6Hr, Offset24Hr, Offset3D, Offset7D, Offset2W, Offset1M,
}
