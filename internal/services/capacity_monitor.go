package services

import (
	"github.com/smarttransit/booking-engine/internal/models"
)

// DefaultLowSlotThreshold is the remaining-seat count at which bookings auto-halt
const DefaultLowSlotThreshold = 10

// HaltFlags are the three independently settable switches governing auto-halt
type HaltFlags struct {
	AdminResumedFromAutoHalt bool
	AutoResumeEnabled        bool
	DisableAutoHaltGlobally  bool
}

// HaltFlagsFor reads the trip-level flags and adds the company switch
func HaltFlagsFor(trip *models.Trip, companyDisabled bool) HaltFlags {
	return HaltFlags{
		AdminResumedFromAutoHalt: trip.AdminResumedFromAutoHalt,
		AutoResumeEnabled:        trip.AutoResumeEnabled,
		DisableAutoHaltGlobally:  companyDisabled,
	}
}

// HaltOverride is the single effective override derived from HaltFlags
type HaltOverride string

const (
	HaltOverrideNone             HaltOverride = "NONE"
	HaltOverrideAutoResume       HaltOverride = "AUTO_RESUME_ENABLED"
	HaltOverrideAdminResumed     HaltOverride = "ADMIN_RESUMED"
	HaltOverrideGloballyDisabled HaltOverride = "COMPANY_DISABLED"
)

// Override resolves the flags by precedence:
// company disabled > admin resumed > auto-resume enabled > none.
//
//	company  admin  auto  | override
//	   1       *     *    | COMPANY_DISABLED
//	   0       1     *    | ADMIN_RESUMED
//	   0       0     1    | AUTO_RESUME_ENABLED
//	   0       0     0    | NONE
func (f HaltFlags) Override() HaltOverride {
	switch {
	case f.DisableAutoHaltGlobally:
		return HaltOverrideGloballyDisabled
	case f.AdminResumedFromAutoHalt:
		return HaltOverrideAdminResumed
	case f.AutoResumeEnabled:
		return HaltOverrideAutoResume
	}
	return HaltOverrideNone
}

// HaltOutcome says why the monitor did or did not halt a trip
type HaltOutcome string

const (
	HaltOutcomeHalted         HaltOutcome = "HALTED"
	HaltOutcomeAboveThreshold HaltOutcome = "ABOVE_THRESHOLD"
	HaltOutcomeAlreadyHalted  HaltOutcome = "ALREADY_HALTED"
	HaltOutcomeOverridden     HaltOutcome = "OVERRIDDEN"
)

// HaltDecision is the result of evaluating a trip after a seat-consuming mutation
type HaltDecision struct {
	Halt     bool
	Outcome  HaltOutcome
	Override HaltOverride
}

// CapacityMonitor decides the one-way automatic booking halt
type CapacityMonitor struct {
	threshold int
}

// NewCapacityMonitor creates a monitor halting at or below threshold remaining seats
func NewCapacityMonitor(threshold int) *CapacityMonitor {
	return &CapacityMonitor{threshold: threshold}
}

// Threshold returns the configured low-slot threshold
func (m *CapacityMonitor) Threshold() int {
	return m.threshold
}

// Evaluate decides without mutating the trip
func (m *CapacityMonitor) Evaluate(trip *models.Trip, flags HaltFlags) HaltDecision {
	override := flags.Override()
	decision := HaltDecision{Override: override}

	switch {
	case trip.AvailableSlots > m.threshold:
		decision.Outcome = HaltOutcomeAboveThreshold
	case trip.BookingHalted:
		decision.Outcome = HaltOutcomeAlreadyHalted
	case override != HaltOverrideNone:
		decision.Outcome = HaltOutcomeOverridden
	default:
		decision.Halt = true
		decision.Outcome = HaltOutcomeHalted
	}

	return decision
}

// Apply evaluates and, when the decision is to halt, sets bookingHalted and
// lowSlotAlertSent on the trip. It never clears bookingHalted.
func (m *CapacityMonitor) Apply(trip *models.Trip, flags HaltFlags) HaltDecision {
	decision := m.Evaluate(trip, flags)
	if decision.Halt {
		trip.BookingHalted = true
		trip.LowSlotAlertSent = true
	}
	return decision
}
