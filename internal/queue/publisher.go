package queue

import (
	"context"

	"go.uber.org/zap"

	"schoolportal/internal/recordstore"
)

// Publisher adapts a Queue to the caches' change-notification hook. Publish
// failures are logged and dropped; invalidation is advisory and must never
// fail a mutation that the store already accepted.
type Publisher struct {
	Q   Queue
	Log *zap.SugaredLogger
}

// RecordChanged publishes an invalidation notice for one record id.
func (p *Publisher) RecordChanged(ctx context.Context, id recordstore.ID) {
	if p == nil || p.Q == nil {
		return
	}
	msg := Message{Type: TypeRecordChanged, Body: []byte(id)}
	if err := p.Q.Publish(ctx, msg); err != nil && p.Log != nil {
		p.Log.Warnw("invalidation publish failed", "id", id.String(), "err", err)
	}
}
