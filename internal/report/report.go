// Package report aggregates the finance dashboard figures from a directory
// snapshot and persists them for the admin summary endpoint. Snapshots are
// derived data: the remote store stays authoritative for every underlying
// record, and each aggregate is recomputed from the fee fields at the
// moment the snapshot is taken.
package report

import (
	"time"

	"github.com/google/uuid"

	"schoolportal/internal/balance"
	"schoolportal/internal/recordstore"
)

// Summary is one point-in-time aggregate of the student collection.
type Summary struct {
	ID              string    `json:"id"`
	TakenAt         time.Time `json:"taken_at"`
	TotalStudents   int       `json:"total_students"`
	ActiveStudents  int       `json:"active_students"`
	TotalFees       float64   `json:"total_fees"`
	AmountCollected float64   `json:"amount_collected"`
	Outstanding     float64   `json:"outstanding"`
}

// Summarize computes a summary over a directory snapshot.
func Summarize(students []recordstore.Student) Summary {
	s := Summary{
		ID:            uuid.NewString(),
		TakenAt:       time.Now().UTC(),
		TotalStudents: len(students),
	}
	for _, st := range students {
		if st.Active {
			s.ActiveStudents++
		}
		s.TotalFees += st.TotalFee
		s.AmountCollected += st.AmountPaid
		s.Outstanding += balance.Outstanding(st.TotalFee, st.AmountPaid)
	}
	return s
}
