package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/location"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

const defaultGeoIPURL = "http://ip-api.com/json"

// IPLocator treats the IP geolocation of the host's uplink as the device position.
type IPLocator struct {
	endpoint   string
	httpClient *http.Client
}

// NewIPLocator builds a locator against an ip-api compatible endpoint.
func NewIPLocator(endpoint string, timeout time.Duration) *IPLocator {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultGeoIPURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IPLocator{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Locate returns the coordinate of the public address.
func (l *IPLocator) Locate(ctx context.Context) (prayer.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return prayer.Coordinate{}, apperrors.Wrap(prayer.CodeLocationUnavailable, "build geoip request", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return prayer.Coordinate{}, apperrors.Wrap(prayer.CodeLocationUnavailable, "geoip request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return prayer.Coordinate{}, apperrors.Wrap(prayer.CodeLocationUnavailable, fmt.Sprintf("geoip status %d", resp.StatusCode), nil)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return prayer.Coordinate{}, apperrors.Wrap(prayer.CodeLocationUnavailable, "decode geoip response", err)
	}
	if body.Status != "success" {
		return prayer.Coordinate{}, apperrors.Wrap(prayer.CodeLocationUnavailable, fmt.Sprintf("geoip lookup failed: %s", body.Message), nil)
	}
	return prayer.Coordinate{
		Latitude:    body.Lat,
		Longitude:   body.Lon,
		DisplayName: displayName(body.City, body.Country),
	}, nil
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

func displayName(city, country string) string {
	city, country = strings.TrimSpace(city), strings.TrimSpace(country)
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	default:
		return country
	}
}

var _ location.DeviceLocator = (*IPLocator)(nil)
