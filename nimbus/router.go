package nimbus

// RequestRouter tracks worker registrations, readiness, and matches ready
// workers to queued work (§4.5). Grounded on core/mdp/broker.go's Service/
// brokerWorker bookkeeping (Waiting/Dispatch), generalized from MDP's
// single-service-per-worker model to Nimbus's per-worker endpoint sets.
type RequestRouter struct {
	queues *QueueSet

	endpointsByWorker map[string]map[string]struct{}
	readyWorkers      map[string]struct{}
}

// NewRequestRouter builds a RequestRouter wrapping one QueueSet.
func NewRequestRouter(queues *QueueSet) *RequestRouter {
	return &RequestRouter{
		queues:            queues,
		endpointsByWorker: make(map[string]map[string]struct{}),
		readyWorkers:      make(map[string]struct{}),
	}
}

// Register records workerID's endpoint set, overwriting any prior set,
// and marks it ready. Re-registration is idempotent per §4.5/§9's open
// question: the specification is authoritative over the source's
// commented-out WorkerAlreadyRegistered raise.
func (r *RequestRouter) Register(workerID string, endpoints []string) {
	r.endpointsByWorker[workerID] = newEndpointSet(endpoints)
	r.readyWorkers[workerID] = struct{}{}
}

// Unregister removes both the endpoint mapping and the readiness mark for
// workerID. Both removals are best-effort: unregistering an unknown
// worker is a no-op.
func (r *RequestRouter) Unregister(workerID string) {
	delete(r.endpointsByWorker, workerID)
	delete(r.readyWorkers, workerID)
}

// MarkReady inserts workerID into the ready set.
func (r *RequestRouter) MarkReady(workerID string) {
	r.readyWorkers[workerID] = struct{}{}
}

// IsRegistered reports whether workerID has an endpoint set on file.
func (r *RequestRouter) IsRegistered(workerID string) bool {
	_, ok := r.endpointsByWorker[workerID]
	return ok
}

// Enqueue forwards request to the underlying QueueSet.
func (r *RequestRouter) Enqueue(request *ClientRequest) error {
	return r.queues.Append(request)
}

// dispatchPair is one (worker, request) match produced by Dispatch.
type dispatchPair struct {
	WorkerID string
	Request  *ClientRequest
}

// Dispatch matches each currently-ready worker, snapshotted at entry,
// against the QueueSet restricted to that worker's endpoints. A worker
// that successfully receives work is removed from the ready set; a
// worker whose eligible queues are all empty stays ready for the next
// cycle. Because the ready set is snapshotted up front, no worker can be
// matched twice within one Dispatch call (§4.5, and the RequestRouter
// safety property in §8).
func (r *RequestRouter) Dispatch() []dispatchPair {
	snapshot := make([]string, 0, len(r.readyWorkers))
	for workerID := range r.readyWorkers {
		snapshot = append(snapshot, workerID)
	}

	var pairs []dispatchPair
	for _, workerID := range snapshot {
		endpoints, ok := r.endpointsByWorker[workerID]
		if !ok {
			delete(r.readyWorkers, workerID)
			continue
		}
		queue, err := r.queues.Select(endpoints)
		if err != nil {
			continue
		}
		request, err := queue.Pop()
		if err != nil {
			continue
		}
		delete(r.readyWorkers, workerID)
		pairs = append(pairs, dispatchPair{WorkerID: workerID, Request: request})
	}
	return pairs
}
