// Package notify publishes reminder notification events onto the gateway's
// outbound channel.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/challenge/internal/domain"
)

// ReminderEvent is the JSON payload consumed by the chat gateway.
type ReminderEvent struct {
	UserID     string         `json:"user_id"`
	Date       string         `json:"date"`
	Challenges []ChallengeRef `json:"challenges"`
	EmittedAt  time.Time      `json:"emitted_at"`
}

// ChallengeRef names one incomplete challenge.
type ChallengeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// KafkaNotifier writes reminder events to a single topic, keyed by user so a
// user's reminders stay ordered per partition.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a notifier for the given brokers and topic.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

// Notify emits exactly one event for the user's incomplete challenges.
func (n *KafkaNotifier) Notify(ctx context.Context, userID string, date domain.Date, challenges []domain.Challenge) error {
	event := ReminderEvent{
		UserID:    userID,
		Date:      date.String(),
		EmittedAt: time.Now().UTC(),
	}
	for _, ch := range challenges {
		event.Challenges = append(event.Challenges, ChallengeRef{ID: ch.ID, Name: ch.Name})
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("challenge.reminder")},
		},
	})
}

// Close releases the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
