package earthengine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/image/tiff"

	"earth-timelapse/internal/geocode"
	"earth-timelapse/internal/timeline"
)

func testInterval() timeline.Interval {
	return timeline.Interval{
		Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Label: "2023",
	}
}

func testRegion() geocode.Region {
	return geocode.Region{Lat: 46.06, Lon: 13.23, RadiusM: 6000}
}

// rasterTIFF encodes a 2x2 16-bit raster with the given DN in every channel.
func rasterTIFF(t *testing.T, dn uint16) []byte {
	t.Helper()
	img := image.NewRGBA64(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetRGBA64(x, y, color.RGBA64{R: dn, G: dn, B: dn, A: 0xffff})
		}
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode test tiff: %v", err)
	}
	return buf.Bytes()
}

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		Endpoint: serverURL,
		Project:  "test-project",
		Token:    "test-token",
	})
}

func TestInitializeChecksCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		w.Write([]byte(`{"assets":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
}

func TestInitializeFailsFastWithoutProject(t *testing.T) {
	client := NewClient(Config{Token: "tok"})
	if err := client.Initialize(context.Background()); err == nil {
		t.Fatal("Expected error for missing project")
	}
}

func TestInitializeFailsFastWithoutToken(t *testing.T) {
	client := NewClient(Config{Project: "p"})
	if err := client.Initialize(context.Background()); err == nil {
		t.Fatal("Expected error for missing token")
	}
}

func TestInitializeRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Initialize(context.Background()); err == nil {
		t.Fatal("Expected error for rejected credentials")
	}
}

func TestFetchCompositeDecodesReflectance(t *testing.T) {
	// DN 3000 with the 1/10000 scale is reflectance 0.3.
	raster := rasterTIFF(t, 3000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/projects/test-project/assets" {
			w.Write([]byte(`{}`))
			return
		}
		w.Header().Set("Content-Type", "image/tiff")
		w.Write(raster)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	comp, err := client.FetchComposite(context.Background(), testRegion(), testInterval())
	if err != nil {
		t.Fatalf("FetchComposite failed: %v", err)
	}

	if comp.NoData {
		t.Fatal("Expected data composite, got no-data")
	}
	if comp.Width != 2 || comp.Height != 2 {
		t.Fatalf("Expected 2x2 raster, got %dx%d", comp.Width, comp.Height)
	}
	got := comp.At(0, 0, 0)
	if got < 0.299 || got > 0.301 {
		t.Errorf("Expected reflectance ~0.3, got %f", got)
	}
	if comp.Interval.Label != "2023" {
		t.Errorf("Composite lost its interval: %q", comp.Interval.Label)
	}
}

func TestFetchCompositeNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/projects/test-project/assets" {
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	comp, err := client.FetchComposite(context.Background(), testRegion(), testInterval())
	if err != nil {
		t.Fatalf("FetchComposite failed: %v", err)
	}
	if !comp.NoData {
		t.Fatal("Expected no-data sentinel for 204 response")
	}
}

func TestFetchCompositeServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/projects/test-project/assets" {
			w.Write([]byte(`{}`))
			return
		}
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	_, err := client.FetchComposite(context.Background(), testRegion(), testInterval())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("Expected ErrFetch, got %v", err)
	}
}

func TestFetchCompositeRequiresInitialize(t *testing.T) {
	client := newTestClient("http://localhost:0")
	_, err := client.FetchComposite(context.Background(), testRegion(), testInterval())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Expected ErrNotInitialized, got %v", err)
	}
}
