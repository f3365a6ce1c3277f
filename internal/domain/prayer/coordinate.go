package prayer

import (
	"fmt"
	"math"

	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// Coordinate is a geographic position with an optional human readable name.
type Coordinate struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName,omitempty"`
}

// Validate rejects non-finite or out of range values.
func (c Coordinate) Validate() error {
	if !finite(c.Latitude) || !finite(c.Longitude) {
		return apperrors.Wrap(CodeInvalidCoordinate, "latitude and longitude must be finite numbers", nil)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return apperrors.Wrap(CodeInvalidCoordinate, fmt.Sprintf("latitude %.4f out of range", c.Latitude), nil)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return apperrors.Wrap(CodeInvalidCoordinate, fmt.Sprintf("longitude %.4f out of range", c.Longitude), nil)
	}
	return nil
}

// Key renders the coordinate rounded to four decimals for cache keys.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
