// Package schema validates document shapes field by field before the
// workflow core acts on them. It answers "is this document shaped and
// attributed correctly" and nothing else; state-machine guards live with the
// owning services.
package schema

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/crewdesk/crewdesk/internal/shared"
)

// Known time-type codes.
const (
	TimeTypeRegular       = "R"
	TimeTypeTraining      = "RT"
	TimeTypeOffRotation   = "OR"
	TimeTypeOffWeek       = "OW"
	TimeTypePPTO          = "OP"
	TimeTypeVacation      = "OV"
	TimeTypeSick          = "OS"
	TimeTypeHoliday       = "OH"
	TimeTypeBank          = "RB"
	TimeTypePayoutRequest = "OTO"
)

// Known expense payment types.
const (
	PaymentOnAccount     = "OnAccount"
	PaymentExpense       = "Expense"
	PaymentCorporateCard = "CorporateCreditCard"
	PaymentMileage       = "Mileage"
	PaymentFuelCard      = "FuelCard"
	PaymentPersonal      = "PersonalReimbursement"
	PaymentAllowance     = "Allowance"
)

var timeTypes = map[string]struct{}{
	TimeTypeRegular: {}, TimeTypeTraining: {}, TimeTypeOffRotation: {},
	TimeTypeOffWeek: {}, TimeTypePPTO: {}, TimeTypeVacation: {},
	TimeTypeSick: {}, TimeTypeHoliday: {}, TimeTypeBank: {},
	TimeTypePayoutRequest: {},
}

var paymentTypes = map[string]struct{}{
	PaymentOnAccount: {}, PaymentExpense: {}, PaymentCorporateCard: {},
	PaymentMileage: {}, PaymentFuelCard: {}, PaymentPersonal: {},
	PaymentAllowance: {},
}

// payrollIDPattern accepts a numeric id or the literal CMS prefix with one or
// two digits.
var payrollIDPattern = regexp.MustCompile(`^(CMS[0-9]{1,2}|[0-9]+)$`)

// ValidPayrollID reports whether s is a well-formed payroll id.
func ValidPayrollID(s string) bool {
	return payrollIDPattern.MatchString(s)
}

// ValidTimeType reports whether code names a known time type.
func ValidTimeType(code string) bool {
	_, ok := timeTypes[code]
	return ok
}

// ValidPaymentType reports whether code names a known payment type.
func ValidPaymentType(code string) bool {
	_, ok := paymentTypes[code]
	return ok
}

// Validator evaluates document shapes.
type Validator struct {
	validate *validator.Validate
}

// New constructs a Validator with the struct-tag engine attached so handler
// DTOs and shape rules share one instance.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &Validator{validate: v}
}

// Struct runs struct-tag validation, converting failures into the
// InvalidArgument taxonomy kind.
func (v *Validator) Struct(target any) error {
	if err := v.validate.Struct(target); err != nil {
		return shared.InvalidArgumentf("%s", err.Error())
	}
	return nil
}

// TimeEntryShape is the field-level view of a time entry under validation.
type TimeEntryShape struct {
	TimeType            string
	Date                time.Time
	Hours               float64
	JobHours            float64
	MealsHours          float64
	Job                 string
	Division            string
	WorkDescription     string
	PayoutRequestAmount decimal.Decimal
}

// TimeEntry checks a time entry's shape against its time-type rules.
func (v *Validator) TimeEntry(s TimeEntryShape) error {
	if !ValidTimeType(s.TimeType) {
		return shared.InvalidArgumentf("unknown timetype %q", s.TimeType)
	}
	if s.Date.IsZero() {
		return shared.InvalidArgumentf("TimeEntry is missing a date")
	}
	if s.Division == "" {
		return shared.InvalidArgumentf("TimeEntry is missing a division")
	}
	for _, h := range []float64{s.Hours, s.JobHours, s.MealsHours} {
		if err := hoursField(h); err != nil {
			return err
		}
	}
	switch s.TimeType {
	case TimeTypeRegular, TimeTypeTraining:
		if s.Hours == 0 && s.JobHours == 0 {
			return shared.InvalidArgumentf("TimeEntry is missing an hours field")
		}
		if s.JobHours > 0 && s.Job == "" {
			return shared.InvalidArgumentf("TimeEntry has jobHours but no job number")
		}
	case TimeTypeOffRotation, TimeTypeOffWeek:
		if s.Hours != 0 || s.JobHours != 0 || s.MealsHours != 0 {
			return shared.InvalidArgumentf("Off-Rotation entries cannot carry hours")
		}
	case TimeTypeBank:
		if s.Hours <= 0 {
			return shared.InvalidArgumentf("an overtime banking entry requires hours")
		}
	case TimeTypePayoutRequest:
		if !s.PayoutRequestAmount.IsPositive() {
			return shared.InvalidArgumentf("a payout request entry requires a positive payoutRequestAmount")
		}
	default:
		if s.Hours <= 0 {
			return shared.InvalidArgumentf("TimeEntry is missing an hours field")
		}
	}
	return nil
}

// hoursField enforces the half-hour grid used by payroll exports.
func hoursField(h float64) error {
	if h < 0 || h > 18 {
		return shared.InvalidArgumentf("hours must be between 0 and 18")
	}
	if h*2 != float64(int(h*2)) {
		return shared.InvalidArgumentf("hours must be recorded in half-hour increments")
	}
	return nil
}

// ExpenseShape is the field-level view of an expense under validation.
type ExpenseShape struct {
	PaymentType string
	Date        time.Time
	Total       decimal.Decimal
	Distance    float64
	Description string
	Vendor      string
}

// Expense checks an expense claim's shape against its payment-type rules.
// Mileage claims carry a distance and no money fields; every monetary payment
// type requires a positive total.
func (v *Validator) Expense(s ExpenseShape) error {
	if !ValidPaymentType(s.PaymentType) {
		return shared.InvalidArgumentf("unknown paymentType %q", s.PaymentType)
	}
	if s.Date.IsZero() {
		return shared.InvalidArgumentf("Expense is missing a date")
	}
	if err := v.validate.Var(s.Description, "required,min=4"); err != nil {
		return shared.InvalidArgumentf("Expense requires a description of at least 4 characters")
	}
	switch s.PaymentType {
	case PaymentMileage:
		if s.Distance <= 0 {
			return shared.InvalidArgumentf("Mileage expenses require a distance")
		}
		if !s.Total.IsZero() {
			return shared.InvalidArgumentf("Mileage expenses cannot carry a total")
		}
	case PaymentFuelCard, PaymentCorporateCard, PaymentOnAccount:
		if !s.Total.IsPositive() {
			return shared.InvalidArgumentf("%s expenses require a positive total", s.PaymentType)
		}
		if s.Vendor == "" {
			return shared.InvalidArgumentf("%s expenses require a vendor", s.PaymentType)
		}
	case PaymentAllowance:
		// Allowance rates are fixed by policy; the total is derived later.
	default:
		if !s.Total.IsPositive() {
			return shared.InvalidArgumentf("%s expenses require a positive total", s.PaymentType)
		}
	}
	return nil
}

// PurchaseOrderRequestShape is the field-level view of a PO request.
type PurchaseOrderRequestShape struct {
	Description string
	VendorName  string
	Total       decimal.Decimal
	Type        string
}

// PurchaseOrderRequest checks a purchase order request's shape.
func (v *Validator) PurchaseOrderRequest(s PurchaseOrderRequestShape) error {
	if s.Type != "normal" && s.Type != "recurring" {
		return shared.InvalidArgumentf("unknown purchase order request type %q", s.Type)
	}
	if !s.Total.IsPositive() {
		return shared.InvalidArgumentf("a purchase order request requires a positive total")
	}
	if err := v.validate.Var(s.Description, "required,min=4"); err != nil {
		return shared.InvalidArgumentf("a purchase order request requires a description of at least 4 characters")
	}
	if s.VendorName == "" {
		return shared.InvalidArgumentf("a purchase order request requires a vendor name")
	}
	return nil
}
