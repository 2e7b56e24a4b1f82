package models

import (
	"sort"
	"time"
)

// LogChange is one audit-trail line: the effect one entry or realized-gain
// event had on the report, attributed to the reporter that produced it.
type LogChange struct {
	Date     time.Time
	Reporter string
	Detail   string
	Delta    TaxRecord
}

// TaxReportLogs is the chronological ledger of every change that contributed
// to a report. Storage is append-only in arrival order; the sorted view is
// derived on read, stable on equal dates.
type TaxReportLogs struct {
	changes []LogChange
}

// Append records one change. Callers may append in any order.
func (l *TaxReportLogs) Append(change LogChange) {
	l.changes = append(l.changes, change)
}

// Len returns the number of recorded changes.
func (l *TaxReportLogs) Len() int {
	return len(l.changes)
}

// Ordered returns all changes sorted by transaction date ascending,
// preserving append order for equal dates.
func (l *TaxReportLogs) Ordered() []LogChange {
	ordered := make([]LogChange, len(l.changes))
	copy(ordered, l.changes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})
	return ordered
}
