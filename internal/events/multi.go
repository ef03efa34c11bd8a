package events

import (
	"context"
	"errors"
)

// Multi fans every event out to all of its publishers. Errors from
// individual publishers are joined; a failing publisher does not stop the
// others.
type Multi []Publisher

// Combine returns the publishers as one. Nil entries are skipped; with no
// publishers left it returns a NoopPublisher.
func Combine(pubs ...Publisher) Publisher {
	var m Multi
	for _, p := range pubs {
		if p != nil {
			m = append(m, p)
		}
	}
	switch len(m) {
	case 0:
		return &NoopPublisher{}
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
