package bus

import (
	"context"
	"encoding/json"

	"github.com/aep/mintdb/db"
)

// Notifier publishes committed changes of a handle as JSON on
// <subject>.<partition>.<op>.
type Notifier struct {
	Bus     Bus
	Subject string
}

func (n *Notifier) Topic(ev db.Event) string {
	return n.Subject + "." + ev.Partition + "." + ev.Op
}

func (n *Notifier) Publish(ctx context.Context, ev db.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.Bus.Send(n.Topic(ev), data)
}
