// Package publisher defines the contract for pushing crawl snapshots to
// downstream consumers.
package publisher

import "context"

// Publisher pushes a payload to a named topic and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
