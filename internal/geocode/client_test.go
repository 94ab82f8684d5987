package geocode

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeocodeParsesBestMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Udine, Italy" {
			t.Errorf("Expected query 'Udine, Italy', got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != UserAgent {
			t.Errorf("Expected User-Agent %q, got %q", UserAgent, got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"46.0626","lon":"13.2368","display_name":"Udine, Friuli Venezia Giulia, Italia"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	loc, err := client.Geocode(context.Background(), "Udine, Italy")
	if err != nil {
		t.Fatalf("Geocode failed: %v", err)
	}

	if loc.Lat != 46.0626 || loc.Lon != 13.2368 {
		t.Errorf("Expected (46.0626, 13.2368), got (%f, %f)", loc.Lat, loc.Lon)
	}
	if loc.DisplayName != "Udine, Friuli Venezia Giulia, Italia" {
		t.Errorf("Unexpected display name: %q", loc.DisplayName)
	}
}

func TestGeocodeNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Geocode(context.Background(), "Nowhereville Xyz"); err == nil {
		t.Fatal("Expected error for empty result set")
	}
}

func TestGeocodeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Geocode(context.Background(), "Udine"); err == nil {
		t.Fatal("Expected error for non-200 status")
	}
}

func TestResolveBuildsRegion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"30.0444","lon":"31.2357","display_name":"Cairo, Egypt"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	region, err := client.Resolve(context.Background(), "Cairo", 6000)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if region.RadiusM != 6000 {
		t.Errorf("Expected radius 6000, got %f", region.RadiusM)
	}
	if region.Name != "Cairo, Egypt" {
		t.Errorf("Unexpected region name: %q", region.Name)
	}
}

func TestRegionBBox(t *testing.T) {
	region := Region{Lat: 0, Lon: 0, RadiusM: 6000}

	south, west, north, east := region.BBox()
	if south >= north || west >= east {
		t.Fatalf("Degenerate bbox: s=%f w=%f n=%f e=%f", south, west, north, east)
	}

	// At the equator one degree is ~111.3 km, so 6 km is ~0.054 degrees.
	wantHalf := 0.0539
	if math.Abs((north-south)/2-wantHalf) > 0.001 {
		t.Errorf("Expected half-height ~%f degrees, got %f", wantHalf, (north-south)/2)
	}
	// The box must be centered on the region.
	if math.Abs((north+south)/2-region.Lat) > 1e-9 {
		t.Errorf("BBox not centered on latitude: %f", (north+south)/2)
	}
	if math.Abs((east+west)/2-region.Lon) > 1e-9 {
		t.Errorf("BBox not centered on longitude: %f", (east+west)/2)
	}
}

func TestRegionValidate(t *testing.T) {
	valid := Region{Lat: 46.06, Lon: 13.23, RadiusM: 6000}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid region, got %v", err)
	}

	cases := []Region{
		{Lat: 91, Lon: 0, RadiusM: 1000},
		{Lat: 0, Lon: 181, RadiusM: 1000},
		{Lat: 0, Lon: 0, RadiusM: 0},
		{Lat: 0, Lon: 0, RadiusM: -5},
	}
	for _, r := range cases {
		if err := r.Validate(); err == nil {
			t.Errorf("Expected validation error for %+v", r)
		}
	}
}
