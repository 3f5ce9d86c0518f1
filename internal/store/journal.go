package store

import (
	"fmt"
	"time"
)

// JournalTimeLayout is the timestamp layout of journal records.
const JournalTimeLayout = "2006-01-02 15:04:05.000000"

// Journal is a caller-owned transaction log filled by Add.
// The zero value is ready to use.
type Journal struct {
	records []string
}

// Records returns a copy of the records in the order they were written.
func (j *Journal) Records() []string {
	out := make([]string, len(j.records))
	copy(out, j.records)
	return out
}

// Len returns the number of records.
func (j *Journal) Len() int {
	return len(j.records)
}

// Last returns the most recent record, or "" for an empty journal.
func (j *Journal) Last() string {
	if len(j.records) == 0 {
		return ""
	}
	return j.records[len(j.records)-1]
}

func (j *Journal) recordAdd(at time.Time, item string, qty int) {
	j.records = append(j.records, fmt.Sprintf("%s: Added %d of %s", at.Format(JournalTimeLayout), qty, item))
}
