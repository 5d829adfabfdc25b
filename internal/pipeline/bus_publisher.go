package pipeline

import (
	"context"
	"encoding/json"

	"github.com/Aman-CERP/vectorfs/internal/bus"
)

// BusPublisher adapts a *bus.Bus into a Publisher, publishing the
// Item's Encoded bytes (falling back to its Code or Text) under a fixed
// subject.
type BusPublisher struct {
	Bus     *bus.Bus
	Subject string
}

type busEnvelope struct {
	Path string            `json:"path"`
	Meta map[string]string `json:"meta,omitempty"`
}

func (p *BusPublisher) Publish(ctx context.Context, item Item) error {
	envelope := busEnvelope{Path: item.Path, Meta: item.Meta}
	header, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	payload := item.Encoded
	if len(payload) == 0 {
		payload = item.Code
	}
	if len(payload) == 0 {
		payload = []byte(item.Text)
	}

	data := append(header, '\n')
	data = append(data, payload...)
	return p.Bus.Send(ctx, bus.Message{Subject: p.Subject, Data: data})
}
