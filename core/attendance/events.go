package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// Publisher receives attendance changes once they are stored.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, change Change) error

func (f PublisherFunc) Publish(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// Publishers fans a change out to every publisher, in order, and reports the first failure.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, change Change) error {
	var first error
	for _, p := range ps {
		if err := p.Publish(ctx, change); err != nil && first == nil {
			first = errors.Wrap(err, "publishing attendance change")
		}
	}
	return first
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Change) error { return nil }
