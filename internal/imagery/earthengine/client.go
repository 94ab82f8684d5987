package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/image/tiff"

	"earth-timelapse/internal/geocode"
	"earth-timelapse/internal/imagery"
	"earth-timelapse/internal/timeline"
)

const (
	// DefaultEndpoint is the Earth Engine REST API base URL.
	DefaultEndpoint = "https://earthengine.googleapis.com/v1"

	// DefaultScaleM is the output resolution in meters per pixel (Landsat).
	DefaultScaleM = 30.0

	// reflectanceScale converts the 16-bit digital numbers in the returned
	// raster to surface reflectance.
	reflectanceScale = 10000.0
)

// ErrFetch wraps transport and service failures from the imagery provider.
// Fetches are single-attempt; a FetchError aborts the run.
var ErrFetch = errors.New("imagery fetch failed")

// ErrNotInitialized is returned when FetchComposite is called before the
// credential preflight has run.
var ErrNotInitialized = errors.New("earthengine client not initialized")

// Config holds connection settings for the Earth Engine client.
type Config struct {
	Endpoint string // empty selects DefaultEndpoint
	Project  string // cloud project id, required
	Token    string // OAuth bearer token, obtained externally
	ScaleM   float64
}

// Client issues composite queries to the Earth Engine service. Cloud
// masking, median compositing, and clipping all happen server-side; the
// client only parameterizes the request and decodes the rendered raster.
type Client struct {
	httpClient *http.Client
	endpoint   string
	project    string
	token      string
	scaleM     float64

	mu          sync.Mutex
	initialized bool
}

// NewClient creates an Earth Engine client from the given config.
func NewClient(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	scale := cfg.ScaleM
	if scale <= 0 {
		scale = DefaultScaleM
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: transport,
		},
		endpoint: endpoint,
		project:  cfg.Project,
		token:    cfg.Token,
		scaleM:   scale,
	}
}

// Initialize verifies project and credentials before any composite is
// fetched, so a bad setup fails fast instead of partway through a run.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if c.project == "" {
		return fmt.Errorf("earth engine project not set (use --project or EARTHENGINE_PROJECT)")
	}
	if c.token == "" {
		return fmt.Errorf("earth engine credentials not set (EARTHENGINE_TOKEN); authenticate before running")
	}

	url := fmt.Sprintf("%s/projects/%s/assets?pageSize=1", c.endpoint, c.project)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("earth engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("earth engine rejected credentials for project %q (status %d)", c.project, resp.StatusCode)
	default:
		return fmt.Errorf("earth engine preflight failed with status: %d", resp.StatusCode)
	}

	c.initialized = true
	return nil
}

// compositeRequest is the query sent to the composites endpoint. The
// reducer and cloud mask run inside the service.
type compositeRequest struct {
	Region      regionJSON `json:"region"`
	StartDate   string     `json:"startDate"`
	EndDate     string     `json:"endDate"`
	Bands       []string   `json:"bands"`
	Reducer     string     `json:"reducer"`
	CloudMask   bool       `json:"cloudMask"`
	ScaleMeters float64    `json:"scaleMeters"`
	Format      string     `json:"format"`
}

type regionJSON struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// FetchComposite requests one cloud-masked median composite clipped to the
// region. A 204 response means the provider has no usable pixels for the
// window and yields the no-data sentinel. Any other failure is fatal for
// the run; there is no retry.
func (c *Client) FetchComposite(ctx context.Context, region geocode.Region, interval timeline.Interval) (*imagery.Composite, error) {
	c.mu.Lock()
	ready := c.initialized
	c.mu.Unlock()
	if !ready {
		return nil, ErrNotInitialized
	}

	south, west, north, east := region.BBox()
	body := compositeRequest{
		Region:      regionJSON{South: south, West: west, North: north, East: east},
		StartDate:   interval.Start.Format("2006-01-02"),
		EndDate:     interval.End.Format("2006-01-02"),
		Bands:       []string{"red", "green", "blue"},
		Reducer:     "median",
		CloudMask:   true,
		ScaleMeters: c.scaleM,
		Format:      "tiff",
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrFetch, err)
	}

	url := fmt.Sprintf("%s/projects/%s/composites:compute", c.endpoint, c.project)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		// Provider coverage gap for this window.
		return imagery.NewNoData(interval), nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d for %s: %s", ErrFetch, resp.StatusCode, interval.Label, bytes.TrimSpace(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading raster: %v", ErrFetch, err)
	}

	comp, err := decodeRaster(data, interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return comp, nil
}

// decodeRaster converts the returned 16-bit TIFF into per-band reflectance.
func decodeRaster(data []byte, interval timeline.Interval) (*imagery.Composite, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding raster tiff: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return imagery.NewNoData(interval), nil
	}

	comp := imagery.New(interval, width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			comp.Set(imagery.BandRed, x, y, float32(r)/reflectanceScale)
			comp.Set(imagery.BandGreen, x, y, float32(g)/reflectanceScale)
			comp.Set(imagery.BandBlue, x, y, float32(b)/reflectanceScale)
		}
	}
	return comp, nil
}
