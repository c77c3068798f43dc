package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies the repetition pattern of a rule.
type Type string

const (
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
	TypeYearly  Type = "yearly"
	TypeCustom  Type = "custom"
)

// Rule describes how a master event repeats. Only the fields relevant to the
// rule's Type participate in matching; Validate rejects combinations that
// would be meaningless for the type.
type Rule struct {
	Type     Type
	Interval int

	// DaysOfWeek restricts weekly rules to specific weekdays. Empty means
	// the weekday of the series start date.
	DaysOfWeek []time.Weekday

	// DayOfMonth is the day a monthly rule fires on. A monthly rule with no
	// DayOfMonth produces no occurrences.
	DayOfMonth int

	// WeekOfMonth and WeekdayOfMonth are accepted from input and persisted
	// but never consulted by matching. The "Nth weekday of month" pattern
	// they describe is not implemented.
	WeekOfMonth    int
	WeekdayOfMonth string

	// Months restricts yearly rules to specific months. Empty means the
	// month of the series start date.
	Months []time.Month

	// Count terminates the series after that many occurrences. Zero means
	// no count limit.
	Count int
	// Until terminates the series after that date. Nil means no end date.
	Until *Date
}

// ValidationError reports a rejected field with a caller-facing message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Validate checks the rule and returns a normalized copy with defaults
// applied (interval 1, no termination). It is pure and never mutates r.
func Validate(r Rule) (Rule, error) {
	switch r.Type {
	case TypeDaily, TypeWeekly, TypeMonthly, TypeYearly:
	case TypeCustom:
		return Rule{}, invalid("recurrence.type", "custom recurrence is not supported")
	default:
		return Rule{}, invalid("recurrence.type", fmt.Sprintf("unknown recurrence type %q", r.Type))
	}

	if r.Interval == 0 {
		r.Interval = 1
	}
	if r.Interval < 0 {
		return Rule{}, invalid("recurrence.interval", "interval must be a positive integer")
	}

	if len(r.DaysOfWeek) > 0 && r.Type != TypeWeekly {
		return Rule{}, invalid("recurrence.daysOfWeek", "daysOfWeek applies to weekly rules only")
	}
	for _, wd := range r.DaysOfWeek {
		if wd < time.Sunday || wd > time.Saturday {
			return Rule{}, invalid("recurrence.daysOfWeek", "unknown weekday")
		}
	}

	if r.DayOfMonth != 0 {
		if r.Type != TypeMonthly {
			return Rule{}, invalid("recurrence.dayOfMonth", "dayOfMonth applies to monthly rules only")
		}
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return Rule{}, invalid("recurrence.dayOfMonth", "dayOfMonth must be between 1 and 31")
		}
	}

	if len(r.Months) > 0 && r.Type != TypeYearly {
		return Rule{}, invalid("recurrence.months", "months applies to yearly rules only")
	}
	for _, m := range r.Months {
		if m < time.January || m > time.December {
			return Rule{}, invalid("recurrence.months", "month numbers must be between 1 and 12")
		}
	}

	if r.Count < 0 {
		return Rule{}, invalid("recurrence.endAfterOccurrences", "occurrence count must be positive")
	}
	if r.Count > 0 && r.Until != nil {
		return Rule{}, invalid("recurrence", "endAfterOccurrences and endDate are mutually exclusive")
	}

	return r, nil
}

// ParseWeekday converts a lowercase weekday name ("monday") to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(name) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// WeekdayName is the inverse of ParseWeekday.
func WeekdayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}
