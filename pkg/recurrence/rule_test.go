package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AppliesDefaults(t *testing.T) {
	rule, err := Validate(Rule{Type: TypeDaily})

	require.NoError(t, err)
	assert.Equal(t, 1, rule.Interval)
	assert.Zero(t, rule.Count)
	assert.Nil(t, rule.Until)
}

func TestValidate_KeepsExplicitInterval(t *testing.T) {
	rule, err := Validate(Rule{Type: TypeWeekly, Interval: 3})

	require.NoError(t, err)
	assert.Equal(t, 3, rule.Interval)
}

func TestValidate_RejectsUnknownType(t *testing.T) {
	_, err := Validate(Rule{Type: "fortnightly"})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "recurrence.type", vErr.Field)
}

func TestValidate_RejectsCustomType(t *testing.T) {
	_, err := Validate(Rule{Type: TypeCustom})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "not supported")
}

func TestValidate_RejectsNegativeInterval(t *testing.T) {
	_, err := Validate(Rule{Type: TypeDaily, Interval: -2})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "recurrence.interval", vErr.Field)
}

func TestValidate_RejectsFieldsForeignToType(t *testing.T) {
	testCases := []struct {
		name  string
		rule  Rule
		field string
	}{
		{
			name:  "daysOfWeek on daily",
			rule:  Rule{Type: TypeDaily, DaysOfWeek: []time.Weekday{time.Monday}},
			field: "recurrence.daysOfWeek",
		},
		{
			name:  "dayOfMonth on weekly",
			rule:  Rule{Type: TypeWeekly, DayOfMonth: 10},
			field: "recurrence.dayOfMonth",
		},
		{
			name:  "months on monthly",
			rule:  Rule{Type: TypeMonthly, DayOfMonth: 1, Months: []time.Month{time.May}},
			field: "recurrence.months",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.rule)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestValidate_RejectsDayOfMonthOutOfRange(t *testing.T) {
	_, err := Validate(Rule{Type: TypeMonthly, DayOfMonth: 32})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "recurrence.dayOfMonth", vErr.Field)
}

func TestValidate_RejectsCountAndUntilTogether(t *testing.T) {
	until := MustParseDate("2025-12-31")
	_, err := Validate(Rule{Type: TypeDaily, Count: 3, Until: &until})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestValidate_AcceptsReservedNthWeekdayFields(t *testing.T) {
	rule, err := Validate(Rule{Type: TypeMonthly, DayOfMonth: 5, WeekOfMonth: 2, WeekdayOfMonth: "tuesday"})

	require.NoError(t, err)
	assert.Equal(t, 2, rule.WeekOfMonth)
	assert.Equal(t, "tuesday", rule.WeekdayOfMonth)
}

func TestParseDate_Strict(t *testing.T) {
	_, err := ParseDate("2025-1-06")
	assert.Error(t, err)

	_, err = ParseDate("2025-02-30")
	assert.Error(t, err)

	_, err = ParseDate("06/01/2025")
	assert.Error(t, err)

	d, err := ParseDate("2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", d.String())
	assert.Equal(t, time.Monday, d.Weekday())
}

func TestParseWeekday(t *testing.T) {
	wd, err := ParseWeekday("monday")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, wd)

	wd, err = ParseWeekday("Friday")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, wd)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestDateSet_IsIdempotent(t *testing.T) {
	s := NewDateSet()
	d := MustParseDate("2025-01-13")

	s.Add(d)
	s.Add(d)
	assert.Len(t, s, 1)
	assert.True(t, s.Contains(d))

	s.Remove(d)
	s.Remove(d)
	assert.Empty(t, s)
}
