// Package records holds the append-only validation record stream produced for
// each validated file. Every step of a run (reading, header checks, rules)
// appends (subject, message, passed) triples that the reporter and the caller
// consume once the run is over.
package records

import (
	"fmt"
)

const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Record is a single (subject, message, passed) entry.
type Record struct {
	Subject string `json:"name"`
	Message string `json:"message"`
	Passed  bool   `json:"status"`
}

// Status returns the display status of the record.
func (r Record) Status() string {
	if r.Passed {
		return StatusPassed
	}
	return StatusFailed
}

// String renders the record as "<subject, status, message>".
func (r Record) String() string {
	return fmt.Sprintf("<%s, %s, %s>", r.Subject, r.Status(), r.Message)
}

// Stream is an ordered, append-only sequence of records.
// It is owned by a single run and is not safe for concurrent use.
type Stream struct {
	records []Record
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{}
}

// Add appends a new record.
func (s *Stream) Add(subject, message string, passed bool) {
	s.records = append(s.records, Record{Subject: subject, Message: message, Passed: passed})
}

// Append appends existing records in order.
func (s *Stream) Append(recs ...Record) {
	s.records = append(s.records, recs...)
}

// Merge appends the records of other that are not already present.
// Identical triples are kept once; relative order of other is preserved.
func (s *Stream) Merge(other *Stream) {
	if other == nil {
		return
	}
	seen := make(map[Record]struct{}, len(s.records))
	for _, r := range s.records {
		seen[r] = struct{}{}
	}
	for _, r := range other.records {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		s.records = append(s.records, r)
	}
}

// Records returns a copy of the records in insertion order.
func (s *Stream) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// BySubject returns the records whose subject equals name.
func (s *Stream) BySubject(name string) []Record {
	var out []Record
	for _, r := range s.records {
		if r.Subject == name {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the failed records.
func (s *Stream) Failed() []Record {
	var out []Record
	for _, r := range s.records {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Passed reports whether every record passed. An empty stream passes.
func (s *Stream) Passed() bool {
	for _, r := range s.records {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Len returns the number of records.
func (s *Stream) Len() int {
	return len(s.records)
}

// Strings returns the display form of every record.
func (s *Stream) Strings() []string {
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.String())
	}
	return out
}
