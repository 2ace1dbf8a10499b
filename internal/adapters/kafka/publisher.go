package kafkapub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"bank_reviews/internal/domain"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits one JSON message per labeled review, keyed by review_id so
// re-runs land on the same partition.
type Publisher struct {
	w     messageWriter
	batch int
	now   func() time.Time
}

func New(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newWithWriter(w)
}

func newWithWriter(w messageWriter) *Publisher {
	return &Publisher{w: w, batch: 500, now: time.Now}
}

func (p *Publisher) PublishReviews(ctx context.Context, rs []domain.LabeledReview) error {
	msgs := make([]kafka.Message, 0, min(len(rs), p.batch))
	flush := func() error {
		if len(msgs) == 0 {
			return nil
		}
		if err := p.w.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("kafka write: %w", err)
		}
		msgs = msgs[:0]
		return nil
	}
	ts := p.now().UTC()
	for _, r := range rs {
		v, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode review %s: %w", r.ReviewID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.ReviewID),
			Value: v,
			Time:  ts,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
				{Key: "bank", Value: []byte(r.BankName)},
			},
		})
		if len(msgs) == p.batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (p *Publisher) Close() error { return p.w.Close() }
