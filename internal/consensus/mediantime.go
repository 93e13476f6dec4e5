package consensus

import (
	"sort"
)

// MedianTimeBlocks is the number of trailing timestamps used for the drift check
const MedianTimeBlocks = 11

// timeSorter implements sort.Interface to allow a slice of timestamps to
// be sorted.
type timeSorter []uint32

func (s timeSorter) Len() int           { return len(s) }
func (s timeSorter) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s timeSorter) Less(i, j int) bool { return s[i] < s[j] }

// Median returns the median of timestamps without modifying the slice.
// For an even count it is the average of the two middle values.
func Median(timestamps []uint32) uint32 {
	if len(timestamps) == 0 {
		return 0
	}

	sorted := make([]uint32, len(timestamps))
	copy(sorted, timestamps)
	sort.Sort(timeSorter(sorted))

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	return uint32((uint64(sorted[mid-1]) + uint64(sorted[mid])) / 2)
}

// TimeWindow is a fixed-capacity FIFO of the most recent timestamps.
// Once full, each Push evicts the oldest entry.
type TimeWindow struct {
	buf   [MedianTimeBlocks]uint32
	start int
	count int
}

// Push appends a timestamp, evicting the oldest one when the window is full
func (w *TimeWindow) Push(timestamp uint32) {
	if w.count == MedianTimeBlocks {
		w.buf[w.start] = timestamp
		w.start = (w.start + 1) % MedianTimeBlocks
		return
	}

	w.buf[(w.start+w.count)%MedianTimeBlocks] = timestamp
	w.count++
}

// Len returns the number of timestamps held
func (w *TimeWindow) Len() int {
	return w.count
}

// Full reports whether the window holds MedianTimeBlocks timestamps
func (w *TimeWindow) Full() bool {
	return w.count == MedianTimeBlocks
}

// Values returns the timestamps oldest first
func (w *TimeWindow) Values() []uint32 {
	values := make([]uint32, w.count)
	for i := 0; i < w.count; i++ {
		values[i] = w.buf[(w.start+i)%MedianTimeBlocks]
	}
	return values
}

// Median returns the median of the held timestamps
func (w *TimeWindow) Median() uint32 {
	return Median(w.Values())
}
