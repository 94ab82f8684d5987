package imagery

import (
	"fmt"

	"earth-timelapse/internal/timeline"
)

// Band indices into Composite.Bands. The imagery service returns true-color
// surface reflectance in this order.
const (
	BandRed = iota
	BandGreen
	BandBlue
	BandCount
)

// Composite is a cloud-filtered median raster tied to one interval and one
// region. Band values are surface reflectance (typically 0..0.3 for
// true-color land scenes). A Composite with NoData set carries no pixels:
// the service returned an empty result for the window.
type Composite struct {
	Interval timeline.Interval
	Width    int
	Height   int
	Bands    [BandCount][]float32 // row-major, Width*Height values each
	NoData   bool
}

// New allocates an empty composite with the given dimensions.
func New(interval timeline.Interval, width, height int) *Composite {
	c := &Composite{
		Interval: interval,
		Width:    width,
		Height:   height,
	}
	for b := range c.Bands {
		c.Bands[b] = make([]float32, width*height)
	}
	return c
}

// NewNoData returns the sentinel composite for an interval the service has
// no usable pixels for.
func NewNoData(interval timeline.Interval) *Composite {
	return &Composite{Interval: interval, NoData: true}
}

// At returns the reflectance value for a band at (x, y).
func (c *Composite) At(band, x, y int) float32 {
	return c.Bands[band][y*c.Width+x]
}

// Set writes the reflectance value for a band at (x, y).
func (c *Composite) Set(band, x, y int, v float32) {
	c.Bands[band][y*c.Width+x] = v
}

// Clone returns a deep copy preserving the interval.
func (c *Composite) Clone() *Composite {
	if c.NoData {
		return NewNoData(c.Interval)
	}
	out := New(c.Interval, c.Width, c.Height)
	for b := range c.Bands {
		copy(out.Bands[b], c.Bands[b])
	}
	return out
}

// Validate checks internal consistency of the raster.
func (c *Composite) Validate() error {
	if c.NoData {
		return nil
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid composite dimensions %dx%d", c.Width, c.Height)
	}
	want := c.Width * c.Height
	for b := range c.Bands {
		if len(c.Bands[b]) != want {
			return fmt.Errorf("band %d has %d values, want %d", b, len(c.Bands[b]), want)
		}
	}
	return nil
}
