// Package smoothing implements the temporal moving-median filter applied
// across the fetched composite sequence. The median (not the mean) is what
// rejects cloud-corrupted outlier pixels without blurring real change.
// It is a pure function over the ordered sequence: no I/O, no network.
package smoothing

import (
	"fmt"
	"sort"

	"earth-timelapse/internal/imagery"
	"earth-timelapse/internal/timeline"
)

// DefaultWindow is the sliding window width.
const DefaultWindow = 3

// MovingMedian computes, for each position i, the pixel-wise median across
// the window of composites centered at i. No-data entries inside a window
// are skipped; at the sequence edges the window shrinks. Positions whose
// entire window is no-data are dropped from the output and their intervals
// returned separately so the caller can warn about the gaps.
//
// Ordering is preserved: the output sequence follows the input sequence with
// the dropped positions removed and nothing else reordered.
func MovingMedian(seq []*imagery.Composite, window int) (smoothed []*imagery.Composite, dropped []timeline.Interval, err error) {
	if window < 1 {
		return nil, nil, fmt.Errorf("smoothing window must be at least 1, got %d", window)
	}
	if len(seq) == 0 {
		return nil, nil, nil
	}
	for i, c := range seq {
		if c == nil {
			return nil, nil, fmt.Errorf("composite %d is nil", i)
		}
		if err := c.Validate(); err != nil {
			return nil, nil, fmt.Errorf("composite %d: %w", i, err)
		}
	}

	smoothed = make([]*imagery.Composite, 0, len(seq))
	values := make([]float32, 0, window)

	for i := range seq {
		lo := i - window/2
		hi := lo + window - 1
		if lo < 0 {
			lo = 0
		}
		if hi > len(seq)-1 {
			hi = len(seq) - 1
		}

		valid := make([]*imagery.Composite, 0, hi-lo+1)
		for j := lo; j <= hi; j++ {
			if !seq[j].NoData {
				valid = append(valid, seq[j])
			}
		}

		if len(valid) == 0 {
			dropped = append(dropped, seq[i].Interval)
			continue
		}

		width, height := valid[0].Width, valid[0].Height
		for _, c := range valid {
			if c.Width != width || c.Height != height {
				return nil, nil, fmt.Errorf("composite dimensions differ within window at %d: %dx%d vs %dx%d",
					i, c.Width, c.Height, width, height)
			}
		}

		out := imagery.New(seq[i].Interval, width, height)
		for band := 0; band < imagery.BandCount; band++ {
			for px := 0; px < width*height; px++ {
				values = values[:0]
				for _, c := range valid {
					values = append(values, c.Bands[band][px])
				}
				out.Bands[band][px] = median(values)
			}
		}
		smoothed = append(smoothed, out)
	}

	return smoothed, dropped, nil
}

// median returns the middle value of vs, or the mean of the two middle
// values for an even count (matching the service-side median reducer).
// vs is sorted in place.
func median(vs []float32) float32 {
	switch len(vs) {
	case 0:
		return 0
	case 1:
		return vs[0]
	case 2:
		return (vs[0] + vs[1]) / 2
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	mid := len(vs) / 2
	if len(vs)%2 == 1 {
		return vs[mid]
	}
	return (vs[mid-1] + vs[mid]) / 2
}
