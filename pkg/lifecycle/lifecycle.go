// Package lifecycle defines the audit scan workflow and its legal transitions.
package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

// Status is one of the seven scan workflow states
type Status string

const (
	Planned         Status = "PLANNED"
	Scoping         Status = "SCOPING"
	InProgress      Status = "IN_PROGRESS"
	Review          Status = "REVIEW"
	ReportGenerated Status = "REPORT_GENERATED"
	Completed       Status = "COMPLETED"
	Archived        Status = "ARCHIVED"
)

// Statuses lists every state in workflow order
var Statuses = []Status{Planned, Scoping, InProgress, Review, ReportGenerated, Completed, Archived}

var transitions = map[Status][]Status{
	Planned:         {Scoping, InProgress},
	Scoping:         {InProgress, Planned},
	InProgress:      {Review},
	Review:          {ReportGenerated, InProgress},
	ReportGenerated: {Completed, Review},
	Completed:       {Archived, ReportGenerated},
	Archived:        {Completed},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Active reports whether fieldwork on the scan is still ongoing
func (s Status) Active() bool {
	return s == Planned || s == Scoping || s == InProgress
}

// Closed reports whether the engagement is finished
func (s Status) Closed() bool {
	return s == Completed || s == Archived
}

// Runnable reports whether the engine may be run against a scan in this state
func (s Status) Runnable() bool {
	return s == Planned || s == Scoping || s == InProgress
}

// Parse accepts any casing and dashes for underscores
func Parse(v string) (Status, error) {
	s := Status(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(v)), "-", "_"))
	if !s.Valid() {
		return "", fmt.Errorf("invalid scan status: %q", v)
	}
	return s, nil
}

// Next returns the states reachable from s without an override
func Next(s Status) []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError is returned for a move the table does not allow
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Record describes an applied transition
type Record struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Forced bool      `json:"forced"`
	At     time.Time `json:"at"`
}

// Transition validates from -> to. An admin may bypass the table; the record is then marked Forced.
func Transition(from, to Status, admin bool) (Record, error) {
	if !from.Valid() {
		return Record{}, fmt.Errorf("invalid scan status: %q", from)
	}
	if !to.Valid() {
		return Record{}, fmt.Errorf("invalid scan status: %q", to)
	}
	rec := Record{From: from, To: to, At: time.Now().UTC()}
	if CanTransition(from, to) {
		return rec, nil
	}
	if !admin {
		return Record{}, &TransitionError{From: from, To: to}
	}
	rec.Forced = true
	return rec, nil
}
