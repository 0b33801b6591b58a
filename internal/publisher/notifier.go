// Package publisher announces newly stored articles on a message topic.
package publisher

import (
	"context"
	"fmt"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// Publisher sends a payload to a topic and returns the broker's message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Event is the payload published for each inserted article.
type Event struct {
	Collection string          `json:"collection"`
	SourceURL  string          `json:"source_url"`
	Title      string          `json:"title"`
	Priority   ingest.Priority `json:"priority"`
}

// Notifier adapts a Publisher to ingest.Notifier.
type Notifier struct {
	pub   Publisher
	topic string
}

// NewNotifier publishes every event to topic.
func NewNotifier(pub Publisher, topic string) *Notifier {
	return &Notifier{pub: pub, topic: topic}
}

// Notify publishes an Event for the article.
func (n *Notifier) Notify(ctx context.Context, collection string, a ingest.Article) error {
	ev := Event{Collection: collection, SourceURL: a.SourceURL, Title: a.Title, Priority: a.Priority}
	if _, err := n.pub.Publish(ctx, n.topic, ev); err != nil {
		return fmt.Errorf("notify %s: %w", a.SourceURL, err)
	}
	return nil
}
