// Package ledger is the payments view's local mirror of the same remote
// student collection the directory mirrors, scoped to the financial fields.
// The two views are not coordinated: an edit made here is invisible to an
// already-loaded directory until that cache's own next refresh (and vice
// versa). That staleness window is a property of the request/response
// model, not a bug to be papered over locally.
package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"schoolportal/internal/balance"
	"schoolportal/internal/metrics"
	"schoolportal/internal/recordstore"
	"schoolportal/internal/session"
)

// Record is the financial projection of one student row.
type Record struct {
	ID         recordstore.ID
	FirstName  string
	LastName   string
	TotalFee   float64
	AmountPaid float64
}

// Outstanding recomputes the derived balance; it is never read from a
// stored field.
func (r Record) Outstanding() float64 {
	return balance.Outstanding(r.TotalFee, r.AmountPaid)
}

func fromStudent(s recordstore.Student) Record {
	return Record{
		ID:         s.ID,
		FirstName:  s.FirstName,
		LastName:   s.LastName,
		TotalFee:   s.TotalFee,
		AmountPaid: s.AmountPaid,
	}
}

// PaymentInput is the add/edit payment form.
type PaymentInput struct {
	FirstName  string
	LastName   string
	TotalFee   float64
	AmountPaid float64
}

func (in PaymentInput) validate() error {
	if in.FirstName == "" {
		return &recordstore.ValidationError{Field: "first_name", Reason: "required"}
	}
	if in.LastName == "" {
		return &recordstore.ValidationError{Field: "last_name", Reason: "required"}
	}
	if in.TotalFee < 0 {
		return &recordstore.ValidationError{Field: "total_fee", Reason: "must not be negative"}
	}
	if in.AmountPaid < 0 {
		return &recordstore.ValidationError{Field: "amount_paid", Reason: "must not be negative"}
	}
	return nil
}

// body builds the submitted payload. The outstanding balance is computed
// from the entered amounts at submission time; the store may keep or
// recompute it, and its response becomes local truth either way.
func (in PaymentInput) body() map[string]any {
	return map[string]any{
		"first_name":          in.FirstName,
		"last_name":           in.LastName,
		"total_fee":           in.TotalFee,
		"amount_paid":         in.AmountPaid,
		"outstanding_balance": balance.Outstanding(in.TotalFee, in.AmountPaid),
	}
}

// Notifier is called after a mutation the store accepted.
type Notifier interface {
	RecordChanged(ctx context.Context, id recordstore.ID)
}

// Cache mirrors the financial field subset of the student collection.
type Cache struct {
	client *recordstore.Client
	creds  session.Provider
	log    *zap.SugaredLogger

	// Notifier may be set before the cache is shared between goroutines.
	Notifier Notifier

	mu      sync.Mutex
	loaded  bool
	records []Record
}

// New creates an empty ledger cache.
func New(client *recordstore.Client, creds session.Provider, log *zap.SugaredLogger) *Cache {
	return &Cache{client: client, creds: creds, log: log}
}

// Loaded reports whether at least one refresh has succeeded.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Records returns a snapshot copy in store order.
func (c *Cache) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Get returns one entry by id.
func (c *Cache) Get(id recordstore.ID) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Refresh refetches the collection and replaces the mirror wholesale on
// success. Failure keeps the previous records and returns the error.
func (c *Cache) Refresh(ctx context.Context) error {
	cred, _ := c.creds.Credential()
	students, err := c.client.ListStudents(ctx, cred)
	if err != nil {
		metrics.CacheRefreshes.WithLabelValues("ledger", "error").Inc()
		c.log.Warnw("payment list refresh failed", "err", err)
		return err
	}
	records := make([]Record, 0, len(students))
	for _, s := range students {
		records = append(records, fromStudent(s))
	}
	c.mu.Lock()
	c.records = records
	c.loaded = true
	c.mu.Unlock()
	metrics.CacheRefreshes.WithLabelValues("ledger", "ok").Inc()
	return nil
}

// Create posts a new payment record and appends the store's representation.
func (c *Cache) Create(ctx context.Context, in PaymentInput) (Record, error) {
	if err := in.validate(); err != nil {
		return Record{}, err
	}
	cred, _ := c.creds.Credential()
	created, err := c.client.CreateStudent(ctx, cred, in.body())
	if err != nil {
		metrics.CacheMutations.WithLabelValues("ledger", "create", "error").Inc()
		return Record{}, err
	}
	rec := fromStudent(created)
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	metrics.CacheMutations.WithLabelValues("ledger", "create", "ok").Inc()
	c.notify(ctx, rec.ID)
	return rec, nil
}

// Update patches the financial fields of one record and replaces the local
// entry with the store's response. Failure leaves the entry untouched.
func (c *Cache) Update(ctx context.Context, id recordstore.ID, in PaymentInput) (Record, error) {
	if err := in.validate(); err != nil {
		return Record{}, err
	}
	cred, _ := c.creds.Credential()
	updated, err := c.client.UpdateStudent(ctx, cred, id, in.body())
	if err != nil {
		metrics.CacheMutations.WithLabelValues("ledger", "update", "error").Inc()
		return Record{}, err
	}
	rec := fromStudent(updated)
	c.mu.Lock()
	for i := range c.records {
		if c.records[i].ID == id {
			c.records[i] = rec
			break
		}
	}
	c.mu.Unlock()
	metrics.CacheMutations.WithLabelValues("ledger", "update", "ok").Inc()
	c.notify(ctx, id)
	return rec, nil
}

// Delete removes one record. On failure the entry is retained.
func (c *Cache) Delete(ctx context.Context, id recordstore.ID) error {
	cred, _ := c.creds.Credential()
	if err := c.client.DeleteStudent(ctx, cred, id); err != nil {
		metrics.CacheMutations.WithLabelValues("ledger", "delete", "error").Inc()
		return err
	}
	c.mu.Lock()
	kept := c.records[:0]
	for _, r := range c.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	c.records = kept
	c.mu.Unlock()
	metrics.CacheMutations.WithLabelValues("ledger", "delete", "ok").Inc()
	c.notify(ctx, id)
	return nil
}

func (c *Cache) notify(ctx context.Context, id recordstore.ID) {
	if c.Notifier != nil {
		c.Notifier.RecordChanged(ctx, id)
	}
}
