package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ResourceType is an exclusive-use asset that can be assigned to a trip
type ResourceType string

const (
	ResourceTypeDriver    ResourceType = "DRIVER"
	ResourceTypeConductor ResourceType = "CONDUCTOR"
	ResourceTypeVehicle   ResourceType = "VEHICLE"
)

// ResourceAssignment is the (type, id, date bucket) key a trip occupies
type ResourceAssignment struct {
	Type       ResourceType `json:"resource_type"`
	ResourceID uuid.UUID    `json:"resource_id"`
	DateBucket string       `json:"date_bucket"`
}

// ResourceConflict identifies an existing active trip that already holds a resource
type ResourceConflict struct {
	Type              ResourceType `json:"resource_type"`
	ResourceID        uuid.UUID    `json:"resource_id"`
	DateBucket        string       `json:"date_bucket"`
	ConflictingTripID uuid.UUID    `json:"conflicting_trip_id"`
}

func (c ResourceConflict) String() string {
	return fmt.Sprintf("%s %s already assigned to trip %s on %s", c.Type, c.ResourceID, c.ConflictingTripID, c.DateBucket)
}

// Assignments lists the resources a trip holds in its date bucket
func (t *Trip) Assignments() []ResourceAssignment {
	var out []ResourceAssignment
	if t.DriverID != nil {
		out = append(out, ResourceAssignment{Type: ResourceTypeDriver, ResourceID: *t.DriverID, DateBucket: t.DepartureDate})
	}
	if t.ConductorID != nil {
		out = append(out, ResourceAssignment{Type: ResourceTypeConductor, ResourceID: *t.ConductorID, DateBucket: t.DepartureDate})
	}
	if t.VehicleID != nil {
		out = append(out, ResourceAssignment{Type: ResourceTypeVehicle, ResourceID: *t.VehicleID, DateBucket: t.DepartureDate})
	}
	return out
}
