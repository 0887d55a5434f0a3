// Package options normalizes a raw export request into the canonical
// options structure every downstream stage consumes.
package options

import (
	"fmt"
	"sort"
	"time"
)

// DateScope controls which lines a query sees relative to the range.
type DateScope string

const (
	// StrictRange keeps only lines dated inside [From, To].
	StrictRange DateScope = "strict_range"
	// FromBeginning keeps every line dated on or before To.
	FromBeginning DateScope = "from_beginning"
)

// ExportMode is what the caller intends to do with the result.
type ExportMode string

const (
	ModeView  ExportMode = "view"
	ModeFile  ExportMode = "file"
	ModePrint ExportMode = "print"
)

// DateRange is an inclusive date interval with a scope.
type DateRange struct {
	From  time.Time
	To    time.Time
	Scope DateScope
}

// Contains reports whether d falls inside the range under its scope.
func (r DateRange) Contains(d time.Time) bool {
	if d.After(r.To) {
		return false
	}
	if r.Scope == FromBeginning {
		return true
	}
	return !d.Before(r.From)
}

// Condition is one term of a forced domain filter, in field/op/value
// form. The stores interpret a small set of fields and operators.
type Condition struct {
	Field string
	Op    string // "=", "!=", "in"
	Value any
}

// ColumnGroup is one comparison column in a multi-period report.
type ColumnGroup struct {
	Key   string
	Label string
	Range DateRange
}

// Period is a raw comparison period as the caller supplies it.
type Period struct {
	Label string
	From  time.Time
	To    time.Time
}

// Raw is the export request before normalization.
type Raw struct {
	DateFrom          time.Time
	DateTo            time.Time
	Scope             DateScope // empty = StrictRange
	ComparisonPeriods []Period
	ForcedDomain      []Condition
	ExportMode        ExportMode // empty = ModeFile
	Dialect           string
	Variant           string
}

// Options is the canonical, fully derived options structure.
type Options struct {
	Date         DateRange
	ColumnGroups []ColumnGroup
	ForcedDomain []Condition
	ExportMode   ExportMode
	Dialect      string
	Variant      string
}

// Group returns the column group with the given key, or false.
func (o Options) Group(key string) (ColumnGroup, bool) {
	for _, g := range o.ColumnGroups {
		if g.Key == key {
			return g, true
		}
	}
	return ColumnGroup{}, false
}

// Resolve derives canonical Options from a raw request. Dates are
// inclusive bounds; comparison periods come out ascending by start
// date; the first column group is always "default" covering the main
// range. Resolve never fails: missing fields get their zero-value
// defaults.
func Resolve(raw Raw) Options {
	scope := raw.Scope
	if scope == "" {
		scope = StrictRange
	}
	mode := raw.ExportMode
	if mode == "" {
		mode = ModeFile
	}

	main := DateRange{From: day(raw.DateFrom), To: day(raw.DateTo), Scope: scope}
	groups := []ColumnGroup{{Key: "default", Label: "Current", Range: main}}

	periods := make([]Period, len(raw.ComparisonPeriods))
	copy(periods, raw.ComparisonPeriods)
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].From.Before(periods[j].From)
	})
	for i, p := range periods {
		label := p.Label
		if label == "" {
			label = p.From.Format("2006-01-02")
		}
		groups = append(groups, ColumnGroup{
			Key:   fmt.Sprintf("comparison_%d", i+1),
			Label: label,
			Range: DateRange{From: day(p.From), To: day(p.To), Scope: scope},
		})
	}

	return Options{
		Date:         main,
		ColumnGroups: groups,
		ForcedDomain: raw.ForcedDomain,
		ExportMode:   mode,
		Dialect:      raw.Dialect,
		Variant:      raw.Variant,
	}
}

// InitialBalance derives options for opening-balance computations:
// the range runs from the fiscal year start through the day before
// the main range, with FromBeginning scope so prior years carry over.
func (o Options) InitialBalance(fiscalYearStart time.Time) Options {
	derived := o
	derived.Date = DateRange{
		From:  day(fiscalYearStart),
		To:    day(o.Date.From).AddDate(0, 0, -1),
		Scope: FromBeginning,
	}
	derived.ColumnGroups = []ColumnGroup{{Key: "default", Label: "Initial", Range: derived.Date}}
	return derived
}

// FiscalYearStart returns the start of the fiscal year containing d,
// given the configured "MM-DD" year start.
func FiscalYearStart(d time.Time, yearStart string) time.Time {
	var month, dayOfMonth int
	if _, err := fmt.Sscanf(yearStart, "%d-%d", &month, &dayOfMonth); err != nil {
		month, dayOfMonth = 1, 1
	}
	start := time.Date(d.Year(), time.Month(month), dayOfMonth, 0, 0, 0, 0, time.UTC)
	if start.After(day(d)) {
		start = start.AddDate(-1, 0, 0)
	}
	return start
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
