package legion

import (
	"encoding/json"

	"github.com/google/uuid"
)

// serviceDescriptor is the supervisor-side record of one registered service
// family -- cotyledon's _ServiceConfig, generalized so "factory" is a
// registered name rather than a live callable (see DESIGN.md).
type serviceDescriptor struct {
	id          uuid.UUID
	factoryName string
	workerCount int
	params      json.RawMessage
}

// serviceRegistry is an insertion-ordered map of serviceDescriptor, mirroring
// cotyledon's use of collections.OrderedDict so that "services start in the
// order they were added" (spec invariant) holds.
type serviceRegistry struct {
	order []uuid.UUID
	byID  map[uuid.UUID]*serviceDescriptor
}

func newServiceRegistry() *serviceRegistry {
	return &serviceRegistry{byID: make(map[uuid.UUID]*serviceDescriptor)}
}

func (r *serviceRegistry) add(factoryName string, workers int, params json.RawMessage) uuid.UUID {
	id := uuid.New()
	r.byID[id] = &serviceDescriptor{
		id:          id,
		factoryName: factoryName,
		workerCount: workers,
		params:      params,
	}
	r.order = append(r.order, id)
	return id
}

func (r *serviceRegistry) get(id uuid.UUID) (*serviceDescriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// inOrder returns descriptors in registration order, the iteration order
// every supervisor tick must use for initial bring-up and reconciliation.
func (r *serviceRegistry) inOrder() []*serviceDescriptor {
	out := make([]*serviceDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
