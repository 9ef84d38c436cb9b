// Package events publishes claim events to Kafka so downstream consumers
// (notifications, reporting) can react without sitting in the request path.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// DefaultClaimTopic is where successful claims are announced.
const DefaultClaimTopic = "donation-claims"

// ClaimEvent is the record published after a donation transitions to
// claimed. It carries identifiers only; consumers resolve details
// themselves.
type ClaimEvent struct {
	ReceiptID    string    `json:"receiptId"`
	DonationID   string    `json:"donationId"`
	DonorRef     string    `json:"donorRef"`
	RecipientRef string    `json:"recipientRef"`
	ClaimedAt    time.Time `json:"claimedAt"`
}

// Publisher writes claim events. Publishing is strictly best-effort: the
// claim has already committed by the time an event is emitted, so a broker
// outage must never surface to the caller as a claim failure.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Publisher connected to the given brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultClaimTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishClaim writes one claim event, keyed by donation ID so all events
// for a donation land on the same partition.
func (p *Publisher) PublishClaim(ctx context.Context, ev ClaimEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode claim event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.DonationID),
		Value: value,
	})
}

// Close releases the Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
