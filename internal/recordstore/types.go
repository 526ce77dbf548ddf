package recordstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"schoolportal/internal/balance"
)

// Courses is the fixed set of course names accepted by the admin forms.
var Courses = []string{
	"Web Development",
	"Data Science",
	"Mobile Development",
	"DevOps",
	"UI/UX Design",
}

// ValidCourse reports whether name is one of the known courses.
func ValidCourse(name string) bool {
	for _, c := range Courses {
		if c == name {
			return true
		}
	}
	return false
}

// ID is a store-assigned record identifier. The store is loose about the
// JSON type (numbers in some deployments, strings in others), so ids are
// held and compared as text.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("student id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Phase is a student's course phase. The store returns either a single
// label or an ordered sequence of completed labels; both shapes are
// resolved here once so callers never branch on the wire type.
type Phase struct {
	Labels []string
	Multi  bool
}

// SinglePhase wraps one label in the single-value shape.
func SinglePhase(label string) Phase {
	if label == "" {
		return Phase{}
	}
	return Phase{Labels: []string{label}}
}

// Current returns the most recent label, or "" when unset.
func (p Phase) Current() string {
	if len(p.Labels) == 0 {
		return ""
	}
	return p.Labels[len(p.Labels)-1]
}

// IsZero reports whether no phase label is set.
func (p Phase) IsZero() bool { return len(p.Labels) == 0 }

// MarshalJSON writes the phase back in the shape it arrived in, so patches
// round-trip against stores with either schema.
func (p Phase) MarshalJSON() ([]byte, error) {
	if p.Multi {
		labels := p.Labels
		if labels == nil {
			labels = []string{}
		}
		return json.Marshal(labels)
	}
	return json.Marshal(p.Current())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*p = Phase{}
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var labels []string
		if err := json.Unmarshal(data, &labels); err != nil {
			return fmt.Errorf("phase list: %w", err)
		}
		*p = Phase{Labels: labels, Multi: true}
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("phase: %w", err)
	}
	*p = SinglePhase(label)
	return nil
}

// Student is the canonical record held by the remote store. Every copy in
// this process is a possibly-stale mirror; the store's returned
// representation always wins over locally guessed values.
type Student struct {
	ID         ID
	FirstName  string
	LastName   string
	Email      string
	Phase      Phase
	CourseName string
	Active     bool
	TotalFee   float64
	AmountPaid float64
}

// Outstanding recomputes the derived balance from the current fee figures.
func (s Student) Outstanding() float64 {
	return balance.Outstanding(s.TotalFee, s.AmountPaid)
}

// FullName joins first and last name for display.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// studentWire carries every field shape the store is known to emit. The two
// admin views historically used different active-flag representations
// (string "active"/"inactive" vs a boolean), and some deployments return an
// outstanding_balance; all of that is normalized here and the returned
// balance is discarded as untrusted.
type studentWire struct {
	ID                 ID       `json:"id,omitempty"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Email              string   `json:"email,omitempty"`
	Phase              Phase    `json:"phase,omitempty"`
	CourseName         string   `json:"course_name,omitempty"`
	Status             string   `json:"status,omitempty"`
	IsActive           *bool    `json:"isActive,omitempty"`
	IsActiveSnake      *bool    `json:"is_active,omitempty"`
	TotalFee           float64  `json:"total_fee"`
	AmountPaid         float64  `json:"amount_paid"`
	OutstandingBalance *float64 `json:"outstanding_balance,omitempty"`
}

func (s *Student) UnmarshalJSON(data []byte) error {
	var w studentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	active := true // store omits the flag on legacy rows, which are active
	switch {
	case w.IsActive != nil:
		active = *w.IsActive
	case w.IsActiveSnake != nil:
		active = *w.IsActiveSnake
	case w.Status != "":
		active = strings.EqualFold(w.Status, "active")
	}
	*s = Student{
		ID:         w.ID,
		FirstName:  w.FirstName,
		LastName:   w.LastName,
		Email:      w.Email,
		Phase:      w.Phase,
		CourseName: w.CourseName,
		Active:     active,
		TotalFee:   w.TotalFee,
		AmountPaid: w.AmountPaid,
	}
	return nil
}

// MarshalJSON emits both active-flag representations so either admin view's
// consumers see the shape they expect, and always carries a freshly
// recomputed outstanding balance.
func (s Student) MarshalJSON() ([]byte, error) {
	status := "inactive"
	if s.Active {
		status = "active"
	}
	active := s.Active
	outstanding := s.Outstanding()
	return json.Marshal(studentWire{
		ID:                 s.ID,
		FirstName:          s.FirstName,
		LastName:           s.LastName,
		Email:              s.Email,
		Phase:              s.Phase,
		CourseName:         s.CourseName,
		Status:             status,
		IsActive:           &active,
		TotalFee:           s.TotalFee,
		AmountPaid:         s.AmountPaid,
		OutstandingBalance: &outstanding,
	})
}
