// Package notify delivers state-transition notifications to observers. Every
// sink is best-effort: the engine has already committed by the time a
// notification is published, and a failed delivery never changes state.
package notify

import (
	"context"

	"github.com/seantiz/timelock/internal/model"
)

// Publisher accepts a notification for delivery.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, n model.Notification) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

// Discard drops every notification.
var Discard Publisher = PublisherFunc(func(context.Context, model.Notification) error { return nil })
