package recurrence

import "time"

// maxIterations bounds the expansion loop so never-terminated rules cannot
// spin against an effectively unbounded window.
const maxIterations = 1000

// Expand generates the occurrence dates of a series inside [from, to], in
// ascending order. start is the series start date, exceptions the dates
// excluded from generation. Excluded dates never count toward a rule's
// occurrence limit.
//
// Expand is pure: identical inputs always produce the identical list and no
// argument is mutated.
func Expand(rule Rule, start Date, exceptions DateSet, from, to Date) []Date {
	if rule.Type == TypeCustom {
		return nil
	}
	if rule.Interval < 1 {
		rule.Interval = 1
	}

	cursor := MaxDate(start, from)
	if rule.Type == TypeDaily {
		// snap forward onto the interval grid so stepping stays aligned
		if rem := cursor.DaysSince(start) % rule.Interval; rem != 0 {
			cursor = cursor.AddDays(rule.Interval - rem)
		}
	}

	var out []Date
	emitted := 0
	for i := 0; i < maxIterations && !cursor.After(to); i++ {
		if rule.Until != nil && cursor.After(*rule.Until) {
			break
		}
		if rule.Count > 0 && emitted >= rule.Count {
			break
		}
		if exceptions.Contains(cursor) {
			cursor = nextCandidate(rule, start, cursor)
			continue
		}
		if isOccurrence(cursor, start, rule) {
			out = append(out, cursor)
			emitted++
		}
		cursor = nextCandidate(rule, start, cursor)
	}
	return out
}

// isOccurrence reports whether date is a point of the pattern anchored at
// start. It never consults WeekOfMonth or WeekdayOfMonth.
func isOccurrence(date, start Date, rule Rule) bool {
	daysSince := date.DaysSince(start)
	if daysSince < 0 {
		return false
	}

	switch rule.Type {
	case TypeDaily:
		return daysSince%rule.Interval == 0

	case TypeWeekly:
		if (daysSince/7)%rule.Interval != 0 {
			return false
		}
		if len(rule.DaysOfWeek) == 0 {
			return date.Weekday() == start.Weekday()
		}
		return containsWeekday(rule.DaysOfWeek, date.Weekday())

	case TypeMonthly:
		if rule.DayOfMonth == 0 {
			return false
		}
		return date.MonthsSince(start)%rule.Interval == 0 && date.Day == rule.DayOfMonth

	case TypeYearly:
		if (date.Year-start.Year)%rule.Interval != 0 {
			return false
		}
		if len(rule.Months) > 0 {
			return containsMonth(rule.Months, date.Month) && date.Day == start.Day
		}
		return date.Month == start.Month && date.Day == start.Day
	}
	return false
}

// nextCandidate returns the next date worth testing after cursor. It always
// moves strictly forward so the expansion loop terminates.
func nextCandidate(rule Rule, start, cursor Date) Date {
	switch rule.Type {
	case TypeDaily:
		return cursor.AddDays(rule.Interval)
	case TypeWeekly:
		return nextWeekly(rule, start, cursor)
	case TypeMonthly:
		return nextMonthly(rule, start, cursor)
	case TypeYearly:
		return nextYearly(rule, start, cursor)
	}
	return cursor.AddDays(1)
}

func nextWeekly(rule Rule, start, cursor Date) Date {
	days := rule.DaysOfWeek
	if len(days) == 0 {
		days = []time.Weekday{start.Weekday()}
	}
	for d := 1; d <= 7; d++ {
		c := cursor.AddDays(d)
		if containsWeekday(days, c.Weekday()) {
			return c
		}
	}
	return cursor.AddDays(7 * rule.Interval)
}

func nextMonthly(rule Rule, start, cursor Date) Date {
	if rule.DayOfMonth == 0 {
		// nothing will ever match; keep the loop moving
		y, m := addMonths(cursor.Year, cursor.Month, rule.Interval)
		return Date{Year: y, Month: m, Day: 1}
	}
	k := cursor.MonthsSince(start)
	if k < 0 {
		k = 0
	}
	if rem := k % rule.Interval; rem != 0 {
		k += rule.Interval - rem
	}
	// months without the target day (e.g. Feb 31) are skipped entirely
	for tries := 0; tries < 4*12; tries++ {
		y, m := addMonths(start.Year, start.Month, k)
		if rule.DayOfMonth <= DaysInMonth(y, m) {
			c := Date{Year: y, Month: m, Day: rule.DayOfMonth}
			if c.After(cursor) {
				return c
			}
		}
		k += rule.Interval
	}
	return cursor.AddDays(1)
}

func nextYearly(rule Rule, start, cursor Date) Date {
	months := rule.Months
	if len(months) == 0 {
		months = []time.Month{start.Month}
	}
	k := cursor.Year - start.Year
	if k < 0 {
		k = 0
	}
	k -= k % rule.Interval
	// a Feb 29 anchor only fires in years that have it
	for tries := 0; tries < 8; tries++ {
		y := start.Year + k
		for m := time.January; m <= time.December; m++ {
			if !containsMonth(months, m) || start.Day > DaysInMonth(y, m) {
				continue
			}
			c := Date{Year: y, Month: m, Day: start.Day}
			if c.After(cursor) {
				return c
			}
		}
		k += rule.Interval
	}
	return cursor.AddDays(1)
}

func containsWeekday(days []time.Weekday, wd time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

func containsMonth(months []time.Month, m time.Month) bool {
	for _, c := range months {
		if c == m {
			return true
		}
	}
	return false
}
