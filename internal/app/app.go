// Package app wires the timelapse stages into a task graph and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bpradana/weave"

	"earth-timelapse/internal/config"
	"earth-timelapse/internal/geocode"
	"earth-timelapse/internal/imagery"
	"earth-timelapse/internal/imagery/cache"
	"earth-timelapse/internal/imagery/earthengine"
	"earth-timelapse/internal/naming"
	"earth-timelapse/internal/render"
	"earth-timelapse/internal/smoothing"
	"earth-timelapse/internal/telemetry"
	"earth-timelapse/internal/timeline"
	"earth-timelapse/internal/video"
)

// Output formats accepted by Options.Format. A GIF is written for every
// format; the video container beside it depends on the choice.
const (
	FormatGIF  = "gif"
	FormatMP4  = "mp4"
	FormatAVI  = "avi"
	FormatBoth = "both"
)

// Options carries the fully parsed invocation. Zero values for RadiusM,
// Width, and FPS are filled in from user settings.
type Options struct {
	// Location: either a free-text place or explicit coordinates.
	Place          string
	Lat, Lon       float64
	HasCoordinates bool

	Years     int
	Frequency string
	RadiusM   float64

	Width    int
	FPS      int
	Vertical bool

	Output       string // base path; place suffix is appended to the default
	Format       string
	SmoothWindow int
	NoCache      bool

	// Earth Engine credentials; environment variables fill empty fields.
	Project  string
	Token    string
	Endpoint string

	// Overrides for tests. A non-nil Fetcher skips the Earth Engine
	// client entirely, including its credential preflight.
	Fetcher        imagery.Fetcher
	GeocodeBaseURL string
	SettingsPath   string
	Today          time.Time
}

// Result summarizes a finished run.
type Result struct {
	Region    geocode.Region
	GIFPath   string
	VideoPath string // empty when no video container was produced
	Frames    int
	Dropped   []timeline.Interval
}

// smoothOutput pairs the smoothed sequence with the intervals dropped for
// having no usable imagery anywhere in their window.
type smoothOutput struct {
	composites []*imagery.Composite
	dropped    []timeline.Interval
}

// encodeOutput carries the written file paths out of the encode task.
type encodeOutput struct {
	gifPath   string
	videoPath string
}

// Run executes the full pipeline: resolve location, bucket time, fetch
// composites, smooth, render, encode. It returns after all requested files
// are written or on the first fatal error.
func Run(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now()

	settings, err := config.LoadSettings(opts.SettingsPath)
	if err != nil {
		log.Printf("[Settings] Failed to load, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	applyDefaults(&opts, settings)

	if err := validate(opts); err != nil {
		return nil, err
	}
	freq, err := timeline.ParseFrequency(opts.Frequency)
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewRenderer(render.Options{
		Width:    opts.Width,
		Vertical: opts.Vertical,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", timeline.ErrInvalidArgument, err)
	}
	defer renderer.Close()

	exporter := video.NewExporter(video.Options{
		FPS:        opts.FPS,
		FFmpegPath: settings.FFmpegPath,
	})
	if wantsMP4(opts.Format) && !exporter.HasFFmpeg() {
		log.Printf("[Encoder] ffmpeg not found on this system; MP4 output will be skipped")
	}

	fetcher, err := buildFetcher(ctx, opts, settings)
	if err != nil {
		return nil, err
	}

	tele := buildTelemetry(settings, opts.SettingsPath)
	defer tele.Close()

	today := opts.Today
	if today.IsZero() {
		now := time.Now().UTC()
		today = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	graph := weave.NewGraph()

	regionTask, err := weave.AddTask(graph, "resolve-location", func(ctx context.Context, deps weave.DependencyResolver) (geocode.Region, error) {
		return resolveRegion(ctx, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register resolve-location: %w", err)
	}

	intervalsTask, err := weave.AddTask(graph, "build-intervals", func(ctx context.Context, deps weave.DependencyResolver) ([]timeline.Interval, error) {
		intervals, err := timeline.Build(today, opts.Years, freq)
		if err != nil {
			return nil, err
		}
		log.Printf("[Timeline] %d %s intervals from %s to %s",
			len(intervals), freq,
			intervals[0].Start.Format("2006-01-02"),
			intervals[len(intervals)-1].End.Format("2006-01-02"))
		return intervals, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register build-intervals: %w", err)
	}

	fetchTask, err := weave.AddTask(graph, "fetch-composites", func(ctx context.Context, deps weave.DependencyResolver) ([]*imagery.Composite, error) {
		region, err := regionTask.Value(deps)
		if err != nil {
			return nil, err
		}
		intervals, err := intervalsTask.Value(deps)
		if err != nil {
			return nil, err
		}
		return fetchAll(ctx, fetcher, region, intervals)
	}, weave.DependsOn(regionTask, intervalsTask))
	if err != nil {
		return nil, fmt.Errorf("failed to register fetch-composites: %w", err)
	}

	smoothTask, err := weave.AddTask(graph, "smooth", func(ctx context.Context, deps weave.DependencyResolver) (smoothOutput, error) {
		composites, err := fetchTask.Value(deps)
		if err != nil {
			return smoothOutput{}, err
		}
		smoothed, dropped, err := smoothing.MovingMedian(composites, opts.SmoothWindow)
		if err != nil {
			return smoothOutput{}, err
		}
		for _, interval := range dropped {
			log.Printf("[Smoother] Warning: no imagery for %s in any window position, frame dropped", interval.Label)
		}
		return smoothOutput{composites: smoothed, dropped: dropped}, nil
	}, weave.DependsOn(fetchTask))
	if err != nil {
		return nil, fmt.Errorf("failed to register smooth: %w", err)
	}

	renderTask, err := weave.AddTask(graph, "render", func(ctx context.Context, deps weave.DependencyResolver) ([]render.Frame, error) {
		smoothed, err := smoothTask.Value(deps)
		if err != nil {
			return nil, err
		}
		frames := make([]render.Frame, 0, len(smoothed.composites))
		for _, comp := range smoothed.composites {
			frame, err := renderer.RenderFrame(comp)
			if err != nil {
				return nil, fmt.Errorf("failed to render frame %s: %w", comp.Interval.Label, err)
			}
			frames = append(frames, frame)
		}
		width, height := renderer.Size()
		log.Printf("[Render] %d frames at %dx%d", len(frames), width, height)
		return frames, nil
	}, weave.DependsOn(smoothTask))
	if err != nil {
		return nil, fmt.Errorf("failed to register render: %w", err)
	}

	encodeTask, err := weave.AddTask(graph, "encode", func(ctx context.Context, deps weave.DependencyResolver) (encodeOutput, error) {
		frames, err := renderTask.Value(deps)
		if err != nil {
			return encodeOutput{}, err
		}
		return encode(ctx, exporter, frames, opts)
	}, weave.DependsOn(renderTask))
	if err != nil {
		return nil, fmt.Errorf("failed to register encode: %w", err)
	}

	results, metrics, err := graph.Run(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[Pipeline] %d/%d tasks succeeded in %s",
		metrics.TasksSucceeded, metrics.TasksTotal, time.Since(started).Round(time.Millisecond))

	region, err := regionTask.Value(results)
	if err != nil {
		return nil, err
	}
	smoothed, err := smoothTask.Value(results)
	if err != nil {
		return nil, err
	}
	encoded, err := encodeTask.Value(results)
	if err != nil {
		return nil, err
	}

	frameCount := len(smoothed.composites)
	tele.Track("timelapse_generated", map[string]interface{}{
		"frequency":   string(freq),
		"years":       opts.Years,
		"frames":      frameCount,
		"format":      opts.Format,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	return &Result{
		Region:    region,
		GIFPath:   encoded.gifPath,
		VideoPath: encoded.videoPath,
		Frames:    frameCount,
		Dropped:   smoothed.dropped,
	}, nil
}

// applyDefaults fills unset numeric options from persisted user settings.
func applyDefaults(opts *Options, settings *config.UserSettings) {
	if opts.RadiusM <= 0 {
		opts.RadiusM = float64(settings.DefaultRadiusM)
	}
	if opts.Width <= 0 {
		opts.Width = settings.DefaultWidth
	}
	if opts.FPS <= 0 {
		opts.FPS = settings.DefaultFPS
	}
	if opts.SmoothWindow <= 0 {
		opts.SmoothWindow = smoothing.DefaultWindow
	}
	if opts.Format == "" {
		opts.Format = FormatBoth
	}
	if opts.Project == "" {
		opts.Project = os.Getenv("EARTHENGINE_PROJECT")
	}
	if opts.Token == "" {
		opts.Token = os.Getenv("EARTHENGINE_TOKEN")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = os.Getenv("EARTHENGINE_ENDPOINT")
	}
}

// validate rejects bad invocations before any network traffic.
func validate(opts Options) error {
	if !opts.HasCoordinates && opts.Place == "" {
		return fmt.Errorf("%w: either a place name or coordinates are required", timeline.ErrInvalidArgument)
	}
	if opts.HasCoordinates {
		region := geocode.Region{Lat: opts.Lat, Lon: opts.Lon, RadiusM: opts.RadiusM}
		if err := region.Validate(); err != nil {
			return fmt.Errorf("%w: %v", timeline.ErrInvalidArgument, err)
		}
	}
	if opts.Years <= 0 {
		return fmt.Errorf("%w: years must be positive, got %d", timeline.ErrInvalidArgument, opts.Years)
	}
	switch opts.Format {
	case FormatGIF, FormatMP4, FormatAVI, FormatBoth:
	default:
		return fmt.Errorf("%w: unknown format %q", timeline.ErrInvalidArgument, opts.Format)
	}
	if opts.SmoothWindow <= 0 {
		return fmt.Errorf("%w: smoothing window must be positive, got %d", timeline.ErrInvalidArgument, opts.SmoothWindow)
	}
	return nil
}

// buildFetcher selects the composite source. Real runs talk to Earth Engine
// behind the disk cache; tests inject their own Fetcher and bypass both the
// credential preflight and the cache.
func buildFetcher(ctx context.Context, opts Options, settings *config.UserSettings) (imagery.Fetcher, error) {
	if opts.Fetcher != nil {
		return opts.Fetcher, nil
	}

	client := earthengine.NewClient(earthengine.Config{
		Endpoint: opts.Endpoint,
		Project:  opts.Project,
		Token:    opts.Token,
	})
	if err := client.Initialize(ctx); err != nil {
		return nil, err
	}

	if opts.NoCache {
		return client, nil
	}
	diskCache, err := cache.New(settings.CacheDir, settings.CacheMaxEntries)
	if err != nil {
		log.Printf("[Cache] Failed to open composite cache, continuing without: %v", err)
		return client, nil
	}
	return cache.Wrap(client, diskCache, earthengine.DefaultScaleM), nil
}

func buildTelemetry(settings *config.UserSettings, settingsPath string) *telemetry.Client {
	if !settings.TelemetryEnabled {
		return telemetry.New(false, "")
	}
	installID, err := settings.EnsureInstallID(settingsPath)
	if err != nil {
		log.Printf("[Telemetry] Failed to persist install id: %v", err)
		return telemetry.New(false, "")
	}
	return telemetry.New(true, installID)
}

// resolveRegion turns the location options into a validated Region, calling
// the geocoder only when no explicit coordinates were given.
func resolveRegion(ctx context.Context, opts Options) (geocode.Region, error) {
	if opts.HasCoordinates {
		region := geocode.Region{
			Lat:     opts.Lat,
			Lon:     opts.Lon,
			RadiusM: opts.RadiusM,
			Name:    opts.Place,
		}
		if err := region.Validate(); err != nil {
			return geocode.Region{}, err
		}
		log.Printf("[Geocode] Using explicit coordinates %s", region)
		return region, nil
	}

	client := geocode.NewClient(opts.GeocodeBaseURL)
	region, err := client.Resolve(ctx, opts.Place, opts.RadiusM)
	if err != nil {
		return geocode.Region{}, err
	}
	log.Printf("[Geocode] Resolved %q to %s", opts.Place, region)
	return region, nil
}

// fetchAll retrieves one composite per interval, in order, one request at a
// time. Any transport or service failure aborts the run; a no-data response
// is kept as a sentinel for the smoother to work around.
func fetchAll(ctx context.Context, fetcher imagery.Fetcher, region geocode.Region, intervals []timeline.Interval) ([]*imagery.Composite, error) {
	composites := make([]*imagery.Composite, 0, len(intervals))
	for i, interval := range intervals {
		comp, err := fetcher.FetchComposite(ctx, region, interval)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch composite for %s: %w", interval.Label, err)
		}
		if comp.NoData {
			log.Printf("[Fetch] %d/%d %s: no imagery available", i+1, len(intervals), interval.Label)
		} else {
			log.Printf("[Fetch] %d/%d %s: %dx%d", i+1, len(intervals), interval.Label, comp.Width, comp.Height)
		}
		composites = append(composites, comp)
	}
	return composites, nil
}

// encode writes the GIF and, depending on the requested format and encoder
// availability, a video container next to it. A missing ffmpeg downgrades
// the MP4 to a logged warning rather than an error.
func encode(ctx context.Context, exporter *video.Exporter, frames []render.Frame, opts Options) (encodeOutput, error) {
	base := naming.OutputBase(opts.Output, opts.Place)
	out := encodeOutput{gifPath: naming.GIFPath(base)}

	if err := exporter.ExportGIF(frames, out.gifPath); err != nil {
		return encodeOutput{}, fmt.Errorf("failed to write GIF: %w", err)
	}
	log.Printf("[Encoder] Wrote %s (%d frames)", out.gifPath, len(frames))

	switch {
	case wantsMP4(opts.Format):
		mp4Path := naming.MP4Path(base)
		err := exporter.ExportMP4(ctx, frames, mp4Path)
		switch {
		case errors.Is(err, video.ErrEncoderMissing):
			log.Printf("[Encoder] Skipping MP4: %v", err)
		case err != nil:
			return encodeOutput{}, fmt.Errorf("failed to write MP4: %w", err)
		default:
			out.videoPath = mp4Path
			log.Printf("[Encoder] Wrote %s", mp4Path)
		}
	case opts.Format == FormatAVI:
		aviPath := naming.AVIPath(base)
		if err := exporter.ExportAVI(frames, aviPath); err != nil {
			return encodeOutput{}, fmt.Errorf("failed to write AVI: %w", err)
		}
		out.videoPath = aviPath
		log.Printf("[Encoder] Wrote %s", aviPath)
	}
	return out, nil
}

func wantsMP4(format string) bool {
	return format == FormatMP4 || format == FormatBoth
}
