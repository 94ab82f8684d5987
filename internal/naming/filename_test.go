package naming

import "testing"

func TestCleanPlaceName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Udine, Italy", "Udine"},
		{"New York City, USA", "New_York_City"},
		{"São Paulo", "So_Paulo"},
		{"  Cairo  ", "Cairo"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CleanPlaceName(tc.in); got != tc.want {
			t.Errorf("CleanPlaceName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOutputBase(t *testing.T) {
	if got := OutputBase("timelapse", "Udine, Italy"); got != "timelapse_Udine" {
		t.Errorf("Expected place suffix on default base, got %q", got)
	}
	if got := OutputBase("myclip", "Udine, Italy"); got != "myclip" {
		t.Errorf("Expected explicit base kept, got %q", got)
	}
	if got := OutputBase("myclip.gif", ""); got != "myclip" {
		t.Errorf("Expected .gif stripped, got %q", got)
	}
	if got := OutputBase("", ""); got != "timelapse" {
		t.Errorf("Expected default base, got %q", got)
	}
}

func TestSanitizeCoordinate(t *testing.T) {
	cases := []struct {
		coord float64
		isLat bool
		want  string
	}{
		{46.0626, true, "46p0626N"},
		{-33.8688, true, "33p8688S"},
		{13.2368, false, "13p2368E"},
		{-70.6693, false, "70p6693W"},
	}
	for _, tc := range cases {
		if got := SanitizeCoordinate(tc.coord, tc.isLat); got != tc.want {
			t.Errorf("SanitizeCoordinate(%f, %v) = %q, want %q", tc.coord, tc.isLat, got, tc.want)
		}
	}
}

func TestCompositeKeyDistinguishesInputs(t *testing.T) {
	base := CompositeKey(45.9, 13.1, 46.2, 13.4, "2023-01-01", "2024-01-01", 30)

	variants := []string{
		CompositeKey(45.8, 13.1, 46.2, 13.4, "2023-01-01", "2024-01-01", 30),
		CompositeKey(45.9, 13.1, 46.2, 13.4, "2022-01-01", "2024-01-01", 30),
		CompositeKey(45.9, 13.1, 46.2, 13.4, "2023-01-01", "2024-01-01", 60),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("Variant %d produced the same key as base: %q", i, v)
		}
	}

	if again := CompositeKey(45.9, 13.1, 46.2, 13.4, "2023-01-01", "2024-01-01", 30); again != base {
		t.Errorf("Key is not deterministic: %q vs %q", base, again)
	}
}
