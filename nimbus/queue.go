package nimbus

import (
	"fmt"
	"strconv"
	"time"
)

// EndpointQueue is the ordered FIFO of requests for one endpoint, backed
// by a DurableStore for crash-recoverable buffering (§4.3). Grounded on
// core/mdp/persistence.go's RequestManager/MemoryPersistenceStore pairing,
// generalized to the explicit append/pop/peek/contains/get/remove/len
// surface spec.md §9 calls for ("do not reproduce the full mapping
// surface").
type EndpointQueue struct {
	queueID string
	store   DurableStore

	order      []string
	timestamps map[string]time.Time
}

// NewEndpointQueue builds an EndpointQueue with a fresh queue_id, so
// durable keys from a crashed predecessor never collide (§3).
func NewEndpointQueue(store DurableStore) *EndpointQueue {
	return &EndpointQueue{
		queueID:    newID(),
		store:      store,
		timestamps: make(map[string]time.Time),
	}
}

func (q *EndpointQueue) contentKey(id string) string {
	return fmt.Sprintf("%s:%s:request:content:%s", durableKeyPrefix, q.queueID, id)
}

func (q *EndpointQueue) statusKey(id string) string {
	return fmt.Sprintf("%s:%s:request:status:%s", durableKeyPrefix, q.queueID, id)
}

func (q *EndpointQueue) timestampKey(id string) string {
	return fmt.Sprintf("%s:%s:request:timestamp:%s", durableKeyPrefix, q.queueID, id)
}

// Append adds request to the tail, recording arrival time as now, and
// writes the three durable records with status "waiting" (§4.3).
func (q *EndpointQueue) Append(req *ClientRequest) error {
	content, err := req.ToCachedPayload()
	if err != nil {
		return err
	}
	now := time.Now()
	if err := q.store.Put(q.contentKey(req.ID), content); err != nil {
		return NewDurableStoreError("put", q.contentKey(req.ID), err)
	}
	if err := q.store.Put(q.statusKey(req.ID), []byte(statusWaiting)); err != nil {
		return NewDurableStoreError("put", q.statusKey(req.ID), err)
	}
	if err := q.store.Put(q.timestampKey(req.ID), []byte(strconv.FormatInt(now.Unix(), 10))); err != nil {
		return NewDurableStoreError("put", q.timestampKey(req.ID), err)
	}
	q.order = append(q.order, req.ID)
	q.timestamps[req.ID] = now
	return nil
}

// Pop removes the head id, reads its content back from the store, flips
// its durable status to "processing", and returns the reconstructed
// request (§4.3). Fails with ErrEmptyQueue when empty.
func (q *EndpointQueue) Pop() (*ClientRequest, error) {
	if len(q.order) == 0 {
		return nil, ErrEmptyQueue
	}
	id := q.order[0]
	q.order = q.order[1:]
	delete(q.timestamps, id)

	raw, ok, err := q.store.Get(q.contentKey(id))
	if err != nil {
		return nil, NewDurableStoreError("get", q.contentKey(id), err)
	}
	if !ok {
		return nil, NewObjectDoesNotExistError("request " + id)
	}
	req, err := requestFromCachedPayload(raw)
	if err != nil {
		return nil, err
	}
	if err := q.store.Put(q.statusKey(id), []byte(statusProcessing)); err != nil {
		return nil, NewDurableStoreError("put", q.statusKey(id), err)
	}
	return req, nil
}

// Peek returns the head id and its arrival timestamp without mutation.
// Fails with ErrEmptyQueue when empty.
func (q *EndpointQueue) Peek() (id string, arrivedAt time.Time, err error) {
	if len(q.order) == 0 {
		return "", time.Time{}, ErrEmptyQueue
	}
	head := q.order[0]
	return head, q.timestamps[head], nil
}

// Contains reports whether id is currently waiting in memory.
func (q *EndpointQueue) Contains(id string) bool {
	_, ok := q.timestamps[id]
	return ok
}

// Get looks the request up in the durable store regardless of whether it
// is still waiting in memory or already popped (processing).
func (q *EndpointQueue) Get(id string) (*ClientRequest, error) {
	raw, ok, err := q.store.Get(q.contentKey(id))
	if err != nil {
		return nil, NewDurableStoreError("get", q.contentKey(id), err)
	}
	if !ok {
		return nil, NewObjectDoesNotExistError("request " + id)
	}
	return requestFromCachedPayload(raw)
}

// Remove purges all three durable records and the in-memory entry for
// id, if present. It succeeds silently whether or not id is present in
// memory or in the store, matching the post-pop cleanup path (§4.3).
func (q *EndpointQueue) Remove(id string) error {
	for i, existing := range q.order {
		if existing == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	delete(q.timestamps, id)

	if err := q.store.Delete(q.contentKey(id)); err != nil {
		return NewDurableStoreError("delete", q.contentKey(id), err)
	}
	if err := q.store.Delete(q.statusKey(id)); err != nil {
		return NewDurableStoreError("delete", q.statusKey(id), err)
	}
	if err := q.store.Delete(q.timestampKey(id)); err != nil {
		return NewDurableStoreError("delete", q.timestampKey(id), err)
	}
	return nil
}

// Len returns the count of waiting entries.
func (q *EndpointQueue) Len() int {
	return len(q.order)
}
