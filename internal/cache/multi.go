// internal/cache/multi.go
package cache

import (
	"context"
	"errors"

	"github.com/Furiten/riichi-api/internal/models"
)

// Publisher is satisfied by every sink in this package.
type Publisher interface {
	Publish(ctx context.Context, ev models.RoundEvent) error
}

// MultiPublisher hands each event to every sink; one failing sink does not
// keep the event from the others.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev models.RoundEvent) error {
	var errList []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
