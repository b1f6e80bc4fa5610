package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Geofence radius bounds in meters. Raw site radii outside this range are
// clamped before the accuracy buffer is applied.
const (
	MinGeofenceRadiusMeters = 75.0
	MaxGeofenceRadiusMeters = 250.0

	// MinAccuracyBufferMeters is the floor applied to reported GPS accuracy.
	// Consumer GPS accuracy varies 5-50m; without the floor, tight site radii
	// produce false rejections near the boundary.
	MinAccuracyBufferMeters = 15.0
)

// JobSite represents a job site with its geofence policy
type JobSite struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address,omitempty"`
	CenterLat    float64   `json:"centerLat"`
	CenterLng    float64   `json:"centerLng"`
	RadiusMeters float64   `json:"radiusMeters"`
	CreatedAt    time.Time `json:"createdAt"`
	IsActive     bool      `json:"isActive"`
}

// CreateJobSiteRequest is the request body for creating a job site
type CreateJobSiteRequest struct {
	Name         string  `json:"name"`
	Address      string  `json:"address,omitempty"`
	CenterLat    float64 `json:"centerLat"`
	CenterLng    float64 `json:"centerLng"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// NewJobSite creates a new job site with the given geofence policy
func NewJobSite(name, address string, lat, lng, radiusMeters float64) (*JobSite, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptySiteName
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, ErrInvalidCoordinates
	}
	if radiusMeters <= 0 {
		return nil, ErrInvalidRadius
	}

	return &JobSite{
		ID:           uuid.New().String(),
		Name:         name,
		Address:      strings.TrimSpace(address),
		CenterLat:    lat,
		CenterLng:    lng,
		RadiusMeters: radiusMeters,
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
	}, nil
}

// JobSite errors
var (
	ErrEmptySiteName      = SiteError{"site name cannot be empty"}
	ErrInvalidCoordinates = SiteError{"coordinates out of range"}
	ErrInvalidRadius      = SiteError{"radius must be positive"}
	ErrSiteNotFound       = SiteError{"job site not found"}
)

type SiteError struct {
	Message string
}

func (e SiteError) Error() string {
	return e.Message
}
