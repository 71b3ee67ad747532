package event

import (
	"context"
	"errors"

	"github.com/erp/stocksync/internal/domain/shared"
)

// MultiPublisher fans events out to several publishers.
// Every publisher is attempted; their errors are joined.
type MultiPublisher struct {
	publishers []shared.EventPublisher
}

// NewMultiPublisher creates a publisher over the non-nil publishers given
func NewMultiPublisher(publishers ...shared.EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish implements shared.EventPublisher
func (m *MultiPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ shared.EventPublisher = (*MultiPublisher)(nil)
