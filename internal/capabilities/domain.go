package capabilities

import (
	"context"
	"fmt"
	"sort"
)

// Capability is one boolean authorization flag carried by a caller identity.
// The set is closed: flags are issued elsewhere and only ever read here, and
// guard functions check named constants instead of stringly-typed lookups.
type Capability string

const (
	// CapTime allows creating and bundling time entries.
	CapTime Capability = "time"
	// CapTimeApprover allows first-tier approval of timesheets and expenses.
	CapTimeApprover Capability = "tapr"
	// CapTimesheetRejecter allows rejecting any timesheet regardless of
	// manager assignment.
	CapTimesheetRejecter Capability = "tsrej"
	// CapExpenseApprover allows second-tier expense approval.
	CapExpenseApprover Capability = "eapr"
	// CapCommit allows committing approved expenses for payment.
	CapCommit Capability = "commit"
	// CapPurchaseOrder allows creating purchase order requests.
	CapPurchaseOrder Capability = "po"
	// CapVP allows vice-president tier purchase order approval.
	CapVP Capability = "vp"
	// CapSMG allows senior-management tier purchase order approval.
	CapSMG Capability = "smg"
	// CapReport allows read access to exports and audit counts.
	CapReport Capability = "report"
	// CapJob allows maintaining the jobs directory.
	CapJob Capability = "job"
	// CapAdmin allows administrative maintenance operations.
	CapAdmin Capability = "admin"
)

var known = map[Capability]struct{}{
	CapTime: {}, CapTimeApprover: {}, CapTimesheetRejecter: {},
	CapExpenseApprover: {}, CapCommit: {}, CapPurchaseOrder: {},
	CapVP: {}, CapSMG: {}, CapReport: {}, CapJob: {}, CapAdmin: {},
}

// Parse converts a raw flag name into a Capability, rejecting unknown names.
func Parse(raw string) (Capability, error) {
	c := Capability(raw)
	if _, ok := known[c]; !ok {
		return "", fmt.Errorf("capabilities: unknown flag %q", raw)
	}
	return c, nil
}

// Set is a read-only collection of capability flags.
type Set map[Capability]struct{}

// NewSet builds a Set from capabilities.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// ParseSet builds a Set from raw flag names, skipping unknown ones.
func ParseSet(raw []string) Set {
	s := make(Set, len(raw))
	for _, r := range raw {
		if c, err := Parse(r); err == nil {
			s[c] = struct{}{}
		}
	}
	return s
}

// Has reports whether the set contains the capability.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// HasAny reports whether the set contains at least one of the capabilities.
func (s Set) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// Names returns the sorted flag names, mostly for audit metadata.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for c := range s {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}

// Caller describes the authenticated actor as seen by every guard function.
// It is consumed, never mutated, by the workflow core.
type Caller struct {
	UID         string
	DisplayName string
	Caps        Set
}

type callerContextKey struct{}

// ContextWithCaller stores the resolved caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}
