package imagery

import (
	"context"

	"earth-timelapse/internal/geocode"
	"earth-timelapse/internal/timeline"
)

// Fetcher is the imagery service boundary: one cloud-masked median composite
// per interval over a region, or a no-data composite when the provider has
// no usable pixels for the window. Implementations make a single attempt;
// retry policies belong in a wrapping Fetcher so the behavior change stays
// explicit.
type Fetcher interface {
	FetchComposite(ctx context.Context, region geocode.Region, interval timeline.Interval) (*Composite, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, region geocode.Region, interval timeline.Interval) (*Composite, error)

// FetchComposite calls f.
func (f FetcherFunc) FetchComposite(ctx context.Context, region geocode.Region, interval timeline.Interval) (*Composite, error) {
	return f(ctx, region, interval)
}
