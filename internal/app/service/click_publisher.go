package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkguard/internal/app/model"
)

// JetStreamPublisher is the slice of nats.JetStreamContext the publisher needs.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ClickPublisher is a ClickHistorySink that queues click records on NATS JetStream.
// ClickConsumer persists them.
type ClickPublisher struct {
	js JetStreamPublisher
}

// NewClickPublisher creates a new click record publisher
func NewClickPublisher(js JetStreamPublisher) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Append publishes the record. The record ID doubles as the JetStream message ID,
// so a retried publish is deduplicated by the server.
func (p *ClickPublisher) Append(ctx context.Context, record *model.ClickRecord) error {
	event := model.ClickEvent{
		ID:        record.ID,
		LinkCode:  record.Code,
		IP:        record.IP,
		UserAgent: record.UserAgent,
		Timestamp: record.ClickedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data, nats.Context(ctx), nats.MsgId(record.ID))
	return err
}

var _ ClickHistorySink = (*ClickPublisher)(nil)
