package GeoIP

import (
	"errors"
	"net"
	"strings"

	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

var ErrInvalidIP = errors.New("invalid IP address")

type Location struct {
	Country   string   `json:"country"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type Locator interface {
	Lookup(ip string) (Location, error)
}

// CityLocator resolves addresses against a MaxMind GeoLite2/GeoIP2 City database.
type CityLocator struct {
	reader *geoip2.Reader
}

func OpenCityLocator(path string) (*CityLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &CityLocator{reader: reader}, nil
}

func (l *CityLocator) Lookup(ip string) (Location, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Location{}, ErrInvalidIP
	}
	record, err := l.reader.City(parsed)
	if err != nil {
		return Location{}, err
	}

	location := Location{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		lat, long := record.Location.Latitude, record.Location.Longitude
		location.Latitude = &lat
		location.Longitude = &long
	}
	return location, nil
}

func (l *CityLocator) Close() error {
	return l.reader.Close()
}

var (
	locator        Locator
	defaultCountry = "TR"
)

// Setup opens the database at GEOIP_DB_PATH. Without one every lookup falls
// back to DEFAULT_COUNTRY.
func Setup(cfg *Config.Config) {
	if cfg.DefaultCountry != "" {
		defaultCountry = cfg.DefaultCountry
	}
	if cfg.GeoIPDBPath == "" {
		Logging.Logger.Warn("GEOIP_DB_PATH not set, using default country", zap.String("country", defaultCountry))
		return
	}
	l, err := OpenCityLocator(cfg.GeoIPDBPath)
	if err != nil {
		Logging.Logger.Error("Failed to open GeoIP database", zap.String("path", cfg.GeoIPDBPath), zap.Error(err))
		return
	}
	locator = l
	Logging.Logger.Info("GeoIP database loaded", zap.String("path", cfg.GeoIPDBPath))
}

// Use replaces the active locator and returns a function restoring the previous one.
func Use(l Locator, country string) func() {
	prevLocator, prevCountry := locator, defaultCountry
	locator, defaultCountry = l, country
	return func() { locator, defaultCountry = prevLocator, prevCountry }
}

func DefaultCountry() string {
	return defaultCountry
}

// Lookup never fails: private, unknown or unresolvable addresses yield only the
// default country.
func Lookup(ip string) Location {
	fallback := Location{Country: defaultCountry}
	if locator == nil {
		return fallback
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() {
		return fallback
	}
	location, err := locator.Lookup(ip)
	if err != nil {
		Logging.Logger.Debug("GeoIP lookup failed", zap.String("ip", ip), zap.Error(err))
		return fallback
	}
	if location.Country == "" {
		location.Country = defaultCountry
	}
	return location
}
