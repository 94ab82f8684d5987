package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// UserAgent identifies this tool per the Nominatim usage policy.
	UserAgent = "earth-timelapse-tool/1.0"
)

// Location is a single geocoding match.
type Location struct {
	Lat         float64
	Lon         float64
	DisplayName string
}

// Client handles forward geocoding against a Nominatim-style search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a geocoding client. An empty baseURL selects the public
// Nominatim instance.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		baseURL: baseURL,
	}
}

// nominatimResult matches the JSON shape of a /search response entry.
// Nominatim returns coordinates as strings.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves a free-text place name to its best match.
func (c *Client) Geocode(ctx context.Context, place string) (*Location, error) {
	if place == "" {
		return nil, fmt.Errorf("place name is empty")
	}

	query := url.Values{}
	query.Set("q", place)
	query.Set("format", "json")
	query.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read geocoding response: %w", err)
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to parse geocoding response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("could not find location %q", place)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude in geocoding response: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude in geocoding response: %w", err)
	}

	return &Location{
		Lat:         lat,
		Lon:         lon,
		DisplayName: results[0].DisplayName,
	}, nil
}

// Resolve turns a place name into a Region with the given radius.
func (c *Client) Resolve(ctx context.Context, place string, radiusM float64) (Region, error) {
	loc, err := c.Geocode(ctx, place)
	if err != nil {
		return Region{}, err
	}

	region := Region{
		Lat:     loc.Lat,
		Lon:     loc.Lon,
		RadiusM: radiusM,
		Name:    loc.DisplayName,
	}
	if err := region.Validate(); err != nil {
		return Region{}, fmt.Errorf("resolved region is invalid: %w", err)
	}
	return region, nil
}
