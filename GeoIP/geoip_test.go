package GeoIP

import (
	"errors"
	"testing"
)

type stubLocator struct {
	locations map[string]Location
}

func (s stubLocator) Lookup(ip string) (Location, error) {
	if location, ok := s.locations[ip]; ok {
		return location, nil
	}
	return Location{}, errors.New("not found")
}

func TestLookupFallsBackToDefaultCountry(t *testing.T) {
	restore := Use(nil, "TR")
	defer restore()

	if got := Lookup("8.8.8.8"); got.Country != "TR" || got.City != "" {
		t.Errorf("got %+v", got)
	}
}

func TestLookupUsesLocator(t *testing.T) {
	lat, long := 52.52, 13.40
	restore := Use(stubLocator{locations: map[string]Location{
		"81.2.69.160": {Country: "DE", City: "Berlin", Latitude: &lat, Longitude: &long},
		"1.1.1.1":     {City: "Nowhere"},
	}}, "GB")
	defer restore()

	tests := []struct {
		ip      string
		country string
		city    string
	}{
		{"81.2.69.160", "DE", "Berlin"},
		{"1.1.1.1", "GB", "Nowhere"},
		{"203.0.113.9", "GB", ""},
		{"192.168.1.10", "GB", ""},
		{"127.0.0.1", "GB", ""},
		{"not-an-ip", "GB", ""},
	}
	for _, tt := range tests {
		got := Lookup(tt.ip)
		if got.Country != tt.country || got.City != tt.city {
			t.Errorf("Lookup(%q) = %+v, want %s/%s", tt.ip, got, tt.country, tt.city)
		}
	}
	if DefaultCountry() != "GB" {
		t.Errorf("DefaultCountry() = %s", DefaultCountry())
	}
}

func TestOpenCityLocatorMissingFile(t *testing.T) {
	if _, err := OpenCityLocator("/nonexistent/GeoLite2-City.mmdb"); err == nil {
		t.Errorf("expected error for missing database")
	}
}
