// Package directory is the administrative student-management view's local
// mirror of the remote student collection. Entries are copies; the
// authoritative record lives in the store, and every successful mutation
// reconciles against the store's returned representation rather than the
// locally guessed value. Failures leave the mirror untouched.
package directory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"schoolportal/internal/metrics"
	"schoolportal/internal/recordstore"
	"schoolportal/internal/session"
)

// State is the cache lifecycle: Empty until the first fetch, Loading while
// a full refetch is in flight, Populated after any successful fetch.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePopulated:
		return "populated"
	default:
		return "empty"
	}
}

// Notifier is called after a mutation the store accepted. Nil disables
// cross-view invalidation; the two admin caches are otherwise independent.
type Notifier interface {
	RecordChanged(ctx context.Context, id recordstore.ID)
}

// CreateInput is the admin "add student" form. Password is forwarded to the
// store for account creation and never cached back.
type CreateInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phase      string
	CourseName string
	Password   string
	TotalFee   float64
	AmountPaid float64
	Active     bool
}

// Cache mirrors the student collection for the directory view.
//
// One mutex guards the mirrored slice and state; network calls run outside
// it, so overlapping operations resolve in whatever order their responses
// land (last response wins per id) and no operation blocks reads.
type Cache struct {
	client *recordstore.Client
	creds  session.Provider
	log    *zap.SugaredLogger

	// Notifier may be set before the cache is shared between goroutines.
	Notifier Notifier

	mu       sync.Mutex
	state    State
	students []recordstore.Student
	mutating map[recordstore.ID]int
}

// New creates an empty cache over the given transport and credential source.
func New(client *recordstore.Client, creds session.Provider, log *zap.SugaredLogger) *Cache {
	return &Cache{
		client:   client,
		creds:    creds,
		log:      log,
		mutating: make(map[recordstore.ID]int),
	}
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Students returns a snapshot copy of the mirror in store order.
func (c *Cache) Students() []recordstore.Student {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recordstore.Student, len(c.students))
	copy(out, c.students)
	return out
}

// Get returns a copy of one entry by id.
func (c *Cache) Get(id recordstore.ID) (recordstore.Student, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.students {
		if s.ID == id {
			return s, true
		}
	}
	return recordstore.Student{}, false
}

// Mutating reports whether a create/update/delete for id is in flight.
func (c *Cache) Mutating(id recordstore.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutating[id] > 0
}

// Refresh refetches the full collection. On success the local sequence is
// replaced wholesale; records absent from the response are dropped even if
// they were present before. On any failure, including an authorization
// rejection, the previous entries and state are kept.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	prev := c.state
	c.state = StateLoading
	c.mu.Unlock()

	cred, _ := c.creds.Credential()
	students, err := c.client.ListStudents(ctx, cred)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = prev
		metrics.CacheRefreshes.WithLabelValues("directory", "error").Inc()
		c.log.Warnw("student list refresh failed", "err", err)
		return err
	}
	c.students = students
	c.state = StatePopulated
	metrics.CacheRefreshes.WithLabelValues("directory", "ok").Inc()
	return nil
}

// Create validates the form, posts the new record, and on success appends
// the store's representation (with its assigned id) at the end of the list.
// The required-field check is advisory; the store remains the authority.
func (c *Cache) Create(ctx context.Context, in CreateInput) (recordstore.Student, error) {
	if err := in.validate(); err != nil {
		return recordstore.Student{}, err
	}

	status := "inactive"
	if in.Active {
		status = "active"
	}
	body := map[string]any{
		"first_name":  in.FirstName,
		"last_name":   in.LastName,
		"email":       in.Email,
		"phase":       in.Phase,
		"course_name": in.CourseName,
		"password":    in.Password,
		"total_fee":   in.TotalFee,
		"amount_paid": in.AmountPaid,
		"status":      status,
	}

	cred, _ := c.creds.Credential()
	created, err := c.client.CreateStudent(ctx, cred, body)
	if err != nil {
		metrics.CacheMutations.WithLabelValues("directory", "create", "error").Inc()
		return recordstore.Student{}, err
	}

	c.mu.Lock()
	c.students = append(c.students, created)
	c.mu.Unlock()
	metrics.CacheMutations.WithLabelValues("directory", "create", "ok").Inc()
	c.notify(ctx, created.ID)
	return created, nil
}

// Update patches a partial field set. On success the local entry is
// replaced with the store's returned representation; client-guessed fields
// are never merged in. On failure the cached entry stays untouched.
func (c *Cache) Update(ctx context.Context, id recordstore.ID, patch map[string]any) (recordstore.Student, error) {
	if course, ok := patch["course_name"].(string); ok && course != "" && !recordstore.ValidCourse(course) {
		return recordstore.Student{}, &recordstore.ValidationError{Field: "course_name", Reason: "unknown course"}
	}

	c.beginMutation(id)
	defer c.endMutation(id)

	cred, _ := c.creds.Credential()
	updated, err := c.client.UpdateStudent(ctx, cred, id, patch)
	if err != nil {
		metrics.CacheMutations.WithLabelValues("directory", "update", "error").Inc()
		return recordstore.Student{}, err
	}

	c.mu.Lock()
	for i := range c.students {
		if c.students[i].ID == id {
			c.students[i] = updated
			break
		}
	}
	c.mu.Unlock()
	metrics.CacheMutations.WithLabelValues("directory", "update", "ok").Inc()
	c.notify(ctx, id)
	return updated, nil
}

// ToggleStatus flips activation through the endpoint matching the locally
// known flag, without re-querying the store first. The toggle endpoints
// return no body, so on success only the local flag is flipped in place.
// The flip can drift if the held flag was already stale.
func (c *Cache) ToggleStatus(ctx context.Context, id recordstore.ID, currentlyActive bool) error {
	c.beginMutation(id)
	defer c.endMutation(id)

	cred, _ := c.creds.Credential()
	if err := c.client.SetStudentActive(ctx, cred, id, !currentlyActive); err != nil {
		metrics.CacheMutations.WithLabelValues("directory", "toggle", "error").Inc()
		return err
	}

	c.mu.Lock()
	for i := range c.students {
		if c.students[i].ID == id {
			c.students[i].Active = !currentlyActive
			break
		}
	}
	c.mu.Unlock()
	metrics.CacheMutations.WithLabelValues("directory", "toggle", "ok").Inc()
	c.notify(ctx, id)
	return nil
}

// Delete removes a record. On failure the local entry is retained.
func (c *Cache) Delete(ctx context.Context, id recordstore.ID) error {
	c.beginMutation(id)
	defer c.endMutation(id)

	cred, _ := c.creds.Credential()
	if err := c.client.DeleteStudent(ctx, cred, id); err != nil {
		metrics.CacheMutations.WithLabelValues("directory", "delete", "error").Inc()
		return err
	}

	c.mu.Lock()
	kept := c.students[:0]
	for _, s := range c.students {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	c.students = kept
	c.mu.Unlock()
	metrics.CacheMutations.WithLabelValues("directory", "delete", "ok").Inc()
	c.notify(ctx, id)
	return nil
}

func (in CreateInput) validate() error {
	required := []struct{ field, value string }{
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"email", in.Email},
		{"phase", in.Phase},
		{"course_name", in.CourseName},
		{"password", in.Password},
	}
	for _, r := range required {
		if r.value == "" {
			return &recordstore.ValidationError{Field: r.field, Reason: "required"}
		}
	}
	if !recordstore.ValidCourse(in.CourseName) {
		return &recordstore.ValidationError{Field: "course_name", Reason: "unknown course"}
	}
	if in.TotalFee < 0 {
		return &recordstore.ValidationError{Field: "total_fee", Reason: "must not be negative"}
	}
	if in.AmountPaid < 0 {
		return &recordstore.ValidationError{Field: "amount_paid", Reason: "must not be negative"}
	}
	return nil
}

func (c *Cache) beginMutation(id recordstore.ID) {
	c.mu.Lock()
	c.mutating[id]++
	c.mu.Unlock()
}

func (c *Cache) endMutation(id recordstore.ID) {
	c.mu.Lock()
	if c.mutating[id] > 1 {
		c.mutating[id]--
	} else {
		delete(c.mutating, id)
	}
	c.mu.Unlock()
}

func (c *Cache) notify(ctx context.Context, id recordstore.ID) {
	if c.Notifier != nil {
		c.Notifier.RecordChanged(ctx, id)
	}
}
