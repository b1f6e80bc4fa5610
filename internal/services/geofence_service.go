package services

import (
	"math"

	"github.com/fieldclock/server/internal/models"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// GeofenceService evaluates whether a reported location falls inside a job
// site's effective geofence. Distances use the spherical-Earth haversine
// approximation, accurate to within a few meters for distances under
// ~1000 km, which is far beyond any plausible geofence radius.
type GeofenceService struct{}

// NewGeofenceService creates a new GeofenceService
func NewGeofenceService() *GeofenceService {
	return &GeofenceService{}
}

// DistanceMeters returns the great-circle distance between two points
func (s *GeofenceService) DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// EffectiveRadius computes the admission radius for a site: the raw radius
// clamped to [MinGeofenceRadiusMeters, MaxGeofenceRadiusMeters] plus an
// accuracy buffer of max(reported accuracy, MinAccuracyBufferMeters).
func (s *GeofenceService) EffectiveRadius(site *models.JobSite, accuracyMeters *float64) float64 {
	radius := site.RadiusMeters
	if radius < models.MinGeofenceRadiusMeters {
		radius = models.MinGeofenceRadiusMeters
	}
	if radius > models.MaxGeofenceRadiusMeters {
		radius = models.MaxGeofenceRadiusMeters
	}

	buffer := models.MinAccuracyBufferMeters
	if accuracyMeters != nil && *accuracyMeters > buffer {
		buffer = *accuracyMeters
	}

	return radius + buffer
}

// WithinGeofence reports whether the location is inside the site's
// effective radius
func (s *GeofenceService) WithinGeofence(site *models.JobSite, lat, lng float64, accuracyMeters *float64) (bool, float64) {
	distance := s.DistanceMeters(lat, lng, site.CenterLat, site.CenterLng)
	return distance <= s.EffectiveRadius(site, accuracyMeters), distance
}
