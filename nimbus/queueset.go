package nimbus

import (
	"sort"
	"time"
)

// QueueSet maps endpoint -> EndpointQueue, creating queues lazily (§4.4).
// It is the cross-endpoint fairness layer: select() picks the globally
// oldest waiting request among a permitted set of endpoints, breaking ties
// by endpoint name so the result is deterministic.
type QueueSet struct {
	store  DurableStore
	queues map[string]*EndpointQueue
}

// NewQueueSet builds an empty QueueSet backed by store; every lazily
// created EndpointQueue shares this same store.
func NewQueueSet(store DurableStore) *QueueSet {
	return &QueueSet{
		store:  store,
		queues: make(map[string]*EndpointQueue),
	}
}

func (qs *QueueSet) queueFor(endpoint string) *EndpointQueue {
	q, ok := qs.queues[endpoint]
	if !ok {
		q = NewEndpointQueue(qs.store)
		qs.queues[endpoint] = q
	}
	return q
}

// Append enqueues request onto the queue named by request.Endpoint.
func (qs *QueueSet) Append(request *ClientRequest) error {
	return qs.queueFor(request.Endpoint).Append(request)
}

// Select returns the non-empty queue, restricted to endpoints, whose head
// has the oldest arrival timestamp. Ties are broken by endpoint name
// ascending. Fails with ErrEmptyQueue when every referenced queue is
// empty or endpoints is empty.
func (qs *QueueSet) Select(endpoints map[string]struct{}) (*EndpointQueue, error) {
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	var best *EndpointQueue
	var bestTs time.Time

	for _, name := range names {
		q, ok := qs.queues[name]
		if !ok {
			continue
		}
		_, ts, err := q.Peek()
		if err != nil {
			continue
		}
		if best == nil || ts.Before(bestTs) {
			best, bestTs = q, ts
		}
	}
	if best == nil {
		return nil, ErrEmptyQueue
	}
	return best, nil
}

// Retrieve scans every queue for id and returns the matching request. This
// finds a request whether it is still waiting or has already been popped
// (processing), since the durable content record outlives the in-memory
// entry until Remove is called.
func (qs *QueueSet) Retrieve(id string) (*ClientRequest, error) {
	for _, q := range qs.queues {
		if req, err := q.Get(id); err == nil {
			return req, nil
		}
	}
	return nil, NewObjectDoesNotExistError("request " + id)
}

// Remove scans every queue and deletes id from whichever one holds it.
func (qs *QueueSet) Remove(id string) error {
	for _, q := range qs.queues {
		if err := q.Remove(id); err != nil {
			return err
		}
	}
	return nil
}
