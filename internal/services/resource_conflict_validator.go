package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/smarttransit/booking-engine/internal/models"
)

// DateBucketLayout is the format of a resource date bucket
const DateBucketLayout = "2006-01-02"

// ResourceConflictValidator finds drivers, conductors and vehicles already
// assigned to another active trip in the same date bucket.
//
// The bucket is the calendar date of departure in the operator timezone, not a
// rolling 24 hour window: trips at 23:30 and 00:30 on consecutive dates do not
// conflict, trips at 00:10 and 23:50 on the same date do.
// TODO: confirm with operations whether resource exclusivity should use a rolling 24h window.
type ResourceConflictValidator struct {
	location *time.Location
}

// NewResourceConflictValidator creates a validator bucketing dates in loc
func NewResourceConflictValidator(loc *time.Location) *ResourceConflictValidator {
	if loc == nil {
		loc = time.UTC
	}
	return &ResourceConflictValidator{location: loc}
}

// DateBucket returns the calendar date key for a departure time
func (v *ResourceConflictValidator) DateBucket(departure time.Time) string {
	return departure.In(v.location).Format(DateBucketLayout)
}

// Validate lists every conflict between candidate and the existing trips.
// Cancelled trips, trips in another bucket and the candidate itself are ignored.
func (v *ResourceConflictValidator) Validate(candidate *models.Trip, existing []models.Trip) []models.ResourceConflict {
	bucket := v.DateBucket(candidate.DepartureTime)
	conflicts := []models.ResourceConflict{}

	for i := range existing {
		other := &existing[i]
		if other.ID == candidate.ID || other.Status == models.TripStatusCancelled {
			continue
		}
		if v.DateBucket(other.DepartureTime) != bucket {
			continue
		}

		conflicts = appendIfShared(conflicts, models.ResourceTypeDriver, candidate.DriverID, other.DriverID, bucket, other.ID)
		conflicts = appendIfShared(conflicts, models.ResourceTypeConductor, candidate.ConductorID, other.ConductorID, bucket, other.ID)
		conflicts = appendIfShared(conflicts, models.ResourceTypeVehicle, candidate.VehicleID, other.VehicleID, bucket, other.ID)
	}

	return conflicts
}

func appendIfShared(
	conflicts []models.ResourceConflict,
	resourceType models.ResourceType,
	candidate, other *uuid.UUID,
	bucket string,
	otherTripID uuid.UUID,
) []models.ResourceConflict {
	if candidate == nil || other == nil || *candidate != *other {
		return conflicts
	}
	return append(conflicts, models.ResourceConflict{
		Type:              resourceType,
		ResourceID:        *candidate,
		DateBucket:        bucket,
		ConflictingTripID: otherTripID,
	})
}
