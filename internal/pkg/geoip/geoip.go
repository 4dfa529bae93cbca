// Package geoip resolves client IP addresses to an approximate location.
//
// Resolution prefers a local GeoLite2 City database when one is configured;
// otherwise it calls an ipapi.co-compatible HTTP lookup service. Failures on
// either path degrade to placeholder values and are never surfaced to the
// caller as errors.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
)

const (
	// LocalPlaceholder marks loopback and private-range addresses.
	LocalPlaceholder = "Local"
	// UnknownPlaceholder marks addresses that could not be resolved.
	UnknownPlaceholder = "Unknown"
	// UnknownCountryCode is used when the upstream omits the ISO code.
	UnknownCountryCode = "XX"

	lookupTimeout = 5 * time.Second
)

// Location is a resolved client location.
type Location struct {
	IP          string `json:"ip"`
	City        string `json:"city"`
	Region      string `json:"region"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode,omitempty"`
}

// cityReader is the subset of geoip2.Reader the resolver depends on.
type cityReader interface {
	City(net.IP) (*geoip2.City, error)
	Close() error
}

// Resolver answers IP-to-location lookups.
type Resolver struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	geoDB      cityReader
	countries  gountries.Query
}

// NewResolver creates a resolver using the HTTP service at baseURL. When
// geoDBPath points at a readable GeoLite2 City database, lookups are answered
// locally and no network calls are made.
func NewResolver(logger *slog.Logger, baseURL, geoDBPath string) *Resolver {
	r := &Resolver{
		logger:     logger,
		httpClient: &http.Client{Timeout: lookupTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		countries:  *gountries.New(),
	}

	if geoDBPath != "" {
		if _, err := os.Stat(geoDBPath); err != nil {
			logger.Info("GeoLite2 database not found - falling back to HTTP lookups",
				slog.String("path", geoDBPath))
			return r
		}
		db, err := geoip2.Open(geoDBPath)
		if err != nil {
			logger.Error("Failed to open GeoLite2 database",
				slog.String("path", geoDBPath),
				slog.Any("error", err))
			return r
		}
		r.geoDB = db
		logger.Info("GeoLite2 database initialized successfully",
			slog.String("path", geoDBPath))
	}

	return r
}

// Close releases the GeoLite2 database if one is open.
func (r *Resolver) Close() {
	if r.geoDB != nil {
		r.geoDB.Close()
	}
}

// Resolve maps an IP address to a location. Loopback and private addresses
// resolve to "Local" without any lookup. Lookup failures resolve to
// "Unknown"; Resolve never returns an error.
func (r *Resolver) Resolve(ctx context.Context, ip string) Location {
	if isLocalIP(ip) {
		return Location{
			IP:      ip,
			City:    LocalPlaceholder,
			Region:  LocalPlaceholder,
			Country: LocalPlaceholder,
		}
	}

	if r.geoDB != nil {
		return r.resolveLocal(ip)
	}
	return r.resolveHTTP(ctx, ip)
}

// isLocalIP matches the addresses the ingestion path treats as local traffic:
// loopback plus the common private ranges.
func isLocalIP(ip string) bool {
	return ip == "::1" || ip == "127.0.0.1" ||
		strings.HasPrefix(ip, "192.168.") || strings.HasPrefix(ip, "10.")
}

func (r *Resolver) resolveLocal(ip string) Location {
	unknown := unknownLocation(ip)

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return unknown
	}

	record, err := r.geoDB.City(parsed)
	if err != nil {
		r.logger.Debug("GeoLite2 lookup failed", slog.String("ip", ip), slog.Any("error", err))
		return unknown
	}

	loc := unknown
	if city := record.City.Names["en"]; city != "" {
		loc.City = city
	}
	if len(record.Subdivisions) > 0 {
		if region := record.Subdivisions[0].Names["en"]; region != "" {
			loc.Region = region
		}
	}
	loc.CountryCode = record.Country.IsoCode
	if loc.CountryCode == "" {
		loc.CountryCode = UnknownCountryCode
	}
	if country := record.Country.Names["en"]; country != "" {
		loc.Country = country
	} else {
		loc.Country = r.countryNameFromCode(loc.CountryCode)
	}
	return loc
}

// lookupResponse mirrors the ipapi.co JSON payload fields we consume.
type lookupResponse struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code"`
}

func (r *Resolver) resolveHTTP(ctx context.Context, ip string) Location {
	unknown := unknownLocation(ip)

	url := fmt.Sprintf("%s/%s/json/", r.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		r.logger.Debug("Failed to build geolocation request", slog.Any("error", err))
		return unknown
	}
	req.Header.Set("User-Agent", "beaconly")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Debug("Geolocation lookup failed", slog.String("ip", ip), slog.Any("error", err))
		return unknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("Geolocation lookup returned non-success status",
			slog.String("ip", ip),
			slog.Int("status", resp.StatusCode))
		return unknown
	}

	var data lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		r.logger.Debug("Failed to decode geolocation response",
			slog.String("ip", ip),
			slog.Any("error", err))
		return unknown
	}

	loc := Location{
		IP:          ip,
		City:        data.City,
		Region:      data.Region,
		Country:     data.CountryName,
		CountryCode: data.CountryCode,
	}
	if loc.City == "" {
		loc.City = UnknownPlaceholder
	}
	if loc.Region == "" {
		loc.Region = UnknownPlaceholder
	}
	if loc.CountryCode == "" {
		loc.CountryCode = UnknownCountryCode
	}
	if loc.Country == "" {
		loc.Country = r.countryNameFromCode(loc.CountryCode)
	}
	return loc
}

// countryNameFromCode derives a display name from an ISO code when the
// upstream supplies a code but no name.
func (r *Resolver) countryNameFromCode(code string) string {
	if code == "" || code == UnknownCountryCode {
		return UnknownPlaceholder
	}
	country, err := r.countries.FindCountryByAlpha(code)
	if err != nil {
		return UnknownPlaceholder
	}
	return country.Name.Common
}

func unknownLocation(ip string) Location {
	return Location{
		IP:      ip,
		City:    UnknownPlaceholder,
		Region:  UnknownPlaceholder,
		Country: UnknownPlaceholder,
	}
}
