package storage

import "liquidityEngine/internal/model"

// Journal defines a sink for pool operation events.
type Journal interface {
	PutEventBatch(events []model.Event) error
}
