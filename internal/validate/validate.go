// Package validate enforces the schema of an exportable dataset.
package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/recset/internal/cleaning"
	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/labels"
)

// Sentinel causes. Every failure is an *Error wrapping one of these.
var (
	ErrMissingColumn     = errors.New("required column missing")
	ErrNullRequired      = errors.New("required column has null values")
	ErrIllegalEngagement = errors.New("illegal engagement_score value")
	ErrNonBinaryBooking  = errors.New("booking_probability is not 0 or 1")
	ErrLabelMismatch     = errors.New("booking_probability disagrees with engagement_score")
)

// Error is a schema violation.
type Error struct {
	Err    error
	Column string
	Count  int
	Detail string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("validate: ")
	b.WriteString(e.Err.Error())
	if e.Column != "" {
		fmt.Fprintf(&b, " (column=%s", e.Column)
		if e.Count > 0 {
			fmt.Fprintf(&b, ", rows=%d", e.Count)
		}
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Report carries the non-fatal repairs made while validating.
type Report struct {
	Clipped map[string]int
}

// RangeColumns returns the active number columns whose names end in _pref,
// _level or _type. They must lie in [0,1].
func RangeColumns(ds *dataset.Dataset) []dataset.Column {
	var out []dataset.Column
	for _, col := range ds.ActiveColumns() {
		if col.Kind != dataset.KindNumber {
			continue
		}
		if strings.HasSuffix(col.Name, "_pref") || strings.HasSuffix(col.Name, "_level") || strings.HasSuffix(col.Name, "_type") {
			out = append(out, col)
		}
	}
	return out
}

// Dataset checks ds in place. Out-of-range values in RangeColumns are
// clipped and reported; every other violation is returned as an *Error.
func Dataset(ds *dataset.Dataset) (Report, error) {
	report := Report{Clipped: map[string]int{}}

	for _, name := range dataset.RequiredColumns() {
		if !ds.Has(name) {
			return report, &Error{Err: ErrMissingColumn, Column: name}
		}
		if n := ds.NullCount(name); n > 0 {
			return report, &Error{Err: ErrNullRequired, Column: name, Count: n}
		}
	}

	for _, col := range RangeColumns(ds) {
		n := 0
		for _, r := range ds.Rows {
			if v, ok := col.Number(r); ok {
				if c := cleaning.Clip01(v); c != v {
					col.SetNumber(r, c)
					n++
				}
			}
		}
		if n > 0 {
			report.Clipped[col.Name] = n
		}
	}

	var illegal []float64
	illegalRows, nonBinary, mismatch := 0, 0, 0
	for _, r := range ds.Rows {
		score := r.EngagementScore.V
		if !slices.Contains(labels.LegalScores, score) {
			illegalRows++
			if !slices.Contains(illegal, score) {
				illegal = append(illegal, score)
			}
		}
		booking := r.BookingProbability.V
		switch {
		case booking != 0 && booking != 1:
			nonBinary++
		case (booking == 1) != (score == labels.ScoreBooked):
			mismatch++
		}
	}
	if illegalRows > 0 {
		return report, &Error{Err: ErrIllegalEngagement, Column: dataset.ColEngagementScore, Count: illegalRows, Detail: fmt.Sprint(illegal)}
	}
	if nonBinary > 0 {
		return report, &Error{Err: ErrNonBinaryBooking, Column: dataset.ColBookingProbability, Count: nonBinary}
	}
	if mismatch > 0 {
		return report, &Error{Err: ErrLabelMismatch, Column: dataset.ColBookingProbability, Count: mismatch}
	}
	return report, nil
}
