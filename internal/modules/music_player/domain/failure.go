package domain

import (
	"strconv"
	"strings"
)

// TrackFailure records one entry that could not be resolved or streamed.
type TrackFailure struct {
	Title string // best known label for the entry
	Track *Track // set when the failure happened after resolution
	Err   error
}

// FailureReport aggregates per-track failures so they can be surfaced once.
type FailureReport struct {
	Failures []TrackFailure
}

// Add records a failure.
func (r *FailureReport) Add(title string, track *Track, err error) {
	r.Failures = append(r.Failures, TrackFailure{Title: title, Track: track, Err: err})
}

// Merge appends all failures of other.
func (r *FailureReport) Merge(other FailureReport) {
	r.Failures = append(r.Failures, other.Failures...)
}

// Count returns the number of failures.
func (r FailureReport) Count() int {
	return len(r.Failures)
}

// Empty returns true if nothing failed.
func (r FailureReport) Empty() bool {
	return len(r.Failures) == 0
}

// Summary returns a short user-facing description of the failures.
func (r FailureReport) Summary() string {
	switch len(r.Failures) {
	case 0:
		return ""
	case 1:
		f := r.Failures[0]
		return "Could not play **" + f.Title + "**: " + ReasonOf(f.Err)
	}

	const maxListed = 5
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(len(r.Failures)))
	sb.WriteString(" tracks could not be played:")
	for i, f := range r.Failures {
		if i == maxListed {
			sb.WriteString("\n…and ")
			sb.WriteString(strconv.Itoa(len(r.Failures) - maxListed))
			sb.WriteString(" more")
			break
		}
		sb.WriteString("\n- ")
		sb.WriteString(f.Title)
	}
	return sb.String()
}
