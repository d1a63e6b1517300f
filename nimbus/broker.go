package nimbus

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/vmihailenco/msgpack/v5"
)

// BrokerConfig carries the three bind addresses and the liveness timers
// consumed from configuration (§6).
type BrokerConfig struct {
	ClientAddr         string
	WorkerControlAddr  string
	WorkerResponseAddr string
	TProbe             time.Duration
	TDisconnect        time.Duration
}

// BrokerLoop is the single-threaded event loop binding the three
// broker-side sockets and orchestrating RequestRouter and LivenessMonitor
// (§4.7). Grounded on core/mdp/broker.go's Broker.Bind/Broker.Run, which
// this generalizes from one combined ROUTER socket to Nimbus's three
// independent ones, and on original_source/nimbus/broker/__init__.py's
// Broker.run, which fixes the control-frame case ordering this loop
// reproduces exactly.
type BrokerLoop struct {
	clientSock         *czmq.Sock
	workerControlSock  *czmq.Sock
	workerResponseSock *czmq.Sock

	cfg      BrokerConfig
	security *SecurityManager
	router   *RequestRouter
	liveness *LivenessMonitor

	ErrorChannel chan error
}

// NewBrokerLoop binds the three ROUTER sockets and wires a RequestRouter
// over store plus a fresh LivenessMonitor.
func NewBrokerLoop(cfg BrokerConfig, store DurableStore, security *SecurityManager) (*BrokerLoop, error) {
	clientSock, err := czmq.NewRouter(cfg.ClientAddr)
	if err != nil {
		return nil, fmt.Errorf("nimbus: bind client socket %s: %w", cfg.ClientAddr, err)
	}
	workerControlSock, err := czmq.NewRouter(cfg.WorkerControlAddr)
	if err != nil {
		return nil, fmt.Errorf("nimbus: bind worker-control socket %s: %w", cfg.WorkerControlAddr, err)
	}
	workerResponseSock, err := czmq.NewRouter(cfg.WorkerResponseAddr)
	if err != nil {
		return nil, fmt.Errorf("nimbus: bind worker-response socket %s: %w", cfg.WorkerResponseAddr, err)
	}

	log.WithFields(log.Fields{
		"client":          cfg.ClientAddr,
		"worker_control":  cfg.WorkerControlAddr,
		"worker_response": cfg.WorkerResponseAddr,
	}).Info("nimbus broker bound")

	return &BrokerLoop{
		clientSock:         clientSock,
		workerControlSock:  workerControlSock,
		workerResponseSock: workerResponseSock,
		cfg:                cfg,
		security:           security,
		router:             NewRequestRouter(NewQueueSet(store)),
		liveness:           NewLivenessMonitor(cfg.TProbe, cfg.TDisconnect),
		ErrorChannel:       make(chan error, 1),
	}, nil
}

// Close destroys the three bound sockets.
func (b *BrokerLoop) Close() {
	b.clientSock.Destroy()
	b.workerControlSock.Destroy()
	b.workerResponseSock.Destroy()
	close(b.ErrorChannel)
}

func encodePayload(payload map[string]interface{}) ([]byte, error) {
	return msgpack.Marshal(payload)
}

func decodePayload(raw []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := msgpack.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Run drives the event loop until the poller errors, then sends true on
// done.
// Steps 1-3 read whichever sockets are readable this cycle; steps 4-6 run
// every iteration regardless, including poll-timeout iterations with no
// readable socket (§4.7).
func (b *BrokerLoop) Run(done chan bool) {
	poller, err := czmq.NewPoller(b.clientSock, b.workerControlSock, b.workerResponseSock)
	if err != nil {
		b.ErrorChannel <- fmt.Errorf("nimbus: create broker poller: %w", err)
		return
	}

	timeout := pollTimeout(b.cfg.TProbe, b.cfg.TDisconnect)
	log.WithFields(log.Fields{"timeout": timeout}).Debug("starting broker loop")

	for {
		socket, err := poller.Wait(int(timeout / time.Millisecond))
		if err != nil {
			break
		}

		switch socket {
		case b.clientSock:
			b.handleClientFrame()
		case b.workerControlSock:
			b.handleWorkerControlFrame()
		case b.workerResponseSock:
			b.handleWorkerResponseFrame()
		}

		for _, pair := range b.router.Dispatch() {
			b.sendToWorker(pair.WorkerID, pair.Request.ToBrokerWorkerPayload())
		}
		for _, peer := range b.liveness.DueForProbe() {
			b.sendControl(peer, controlPing)
		}
		for _, peer := range b.liveness.DueForDisconnect() {
			b.sendControl(peer, controlKick)
			b.router.Unregister(peer)
		}
	}

	done <- true
}

// handleClientFrame implements §4.7 step 1.
func (b *BrokerLoop) handleClientFrame() {
	frames, err := b.clientSock.RecvMessage()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("failed to receive client message")
		return
	}
	source, raw, err := splitEnvelope(frames)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("malformed client envelope")
		return
	}
	inner, err := b.security.Unwrap(clientIdentity(source), raw)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("client signature verification failed")
		return
	}
	payload, err := decodePayload(inner)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("malformed client payload")
		return
	}

	request, err := NewClientRequest(source, payload)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("invalid client request")
		return
	}
	if err := b.router.Enqueue(request); err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": request.ID}).Error("failed to enqueue client request")
	}
}

// clientIdentity derives a stable identity string for signature lookups
// from a (possibly multi-frame) client routing prefix.
func clientIdentity(source [][]byte) string {
	if len(source) == 0 {
		return ""
	}
	return string(source[len(source)-1])
}

// handleWorkerControlFrame implements §4.7 step 2: the exact case
// ordering (endpoints, ping, pong, disconnect, r, w) is load-bearing —
// scenario 5 (unknown-worker ping) depends on ping being checked before
// any registration would otherwise be created.
func (b *BrokerLoop) handleWorkerControlFrame() {
	frames, err := b.workerControlSock.RecvMessage()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("failed to receive worker-control message")
		return
	}
	source, raw, err := splitEnvelope(frames)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("malformed worker-control envelope")
		return
	}
	if len(source) != 1 {
		log.WithFields(log.Fields{"frames": len(source)}).Error("worker-control envelope must carry exactly one source frame")
		return
	}
	workerID := string(source[0])

	inner, err := b.security.Unwrap(workerID, raw)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("worker-control signature verification failed")
		return
	}
	payload, err := decodePayload(inner)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("malformed worker-control payload")
		return
	}

	b.liveness.ContactFrom(workerID)

	if endpoints, ok := payload[fieldEndpoints]; ok {
		b.router.Register(workerID, decodeStringSlice(endpoints))
	}
	if ping, _ := payload[fieldPing].(bool); ping {
		if b.router.IsRegistered(workerID) {
			b.sendControl(workerID, controlPong)
		} else {
			b.sendControl(workerID, controlKick)
			b.liveness.Disconnect(workerID)
		}
	}
	if pong, _ := payload[fieldPong].(bool); pong {
		// contact already recorded above; nothing further to do.
	}
	if disconnect, _ := payload[fieldDisconnect].(bool); disconnect {
		b.router.Unregister(workerID)
		b.liveness.Disconnect(workerID)
	}
	if _, ok := payload[fieldReceipt]; ok {
		// task-receipt acknowledgement; no broker action required.
	}
	if ready, _ := payload[fieldReady].(bool); ready {
		b.router.MarkReady(workerID)
	}
}

// handleWorkerResponseFrame implements §4.7 step 3.
func (b *BrokerLoop) handleWorkerResponseFrame() {
	frames, err := b.workerResponseSock.RecvMessage()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("failed to receive worker-response message")
		return
	}
	source, raw, err := splitEnvelope(frames)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("malformed worker-response envelope")
		return
	}
	if len(source) != 1 {
		log.WithFields(log.Fields{"frames": len(source)}).Error("worker-response envelope must carry exactly one source frame")
		return
	}
	workerID := string(source[0])

	inner, err := b.security.Unwrap(workerID, raw)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("worker-response signature verification failed")
		return
	}
	payload, err := decodePayload(inner)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("malformed worker-response payload")
		return
	}

	if err := b.workerResponseSock.SendMessage([][]byte{source[0], []byte(responseAck)}); err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("failed to ack worker response")
	}

	id, _ := payload[fieldID].(string)
	request, err := b.router.queues.Retrieve(id)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("response for unknown request")
		return
	}
	if err := b.router.queues.Remove(id); err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to remove completed request")
	}

	delete(payload, fieldID)
	out, err := encodePayload(payload)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to encode client response")
		return
	}
	wrapped, err := b.security.Wrap(out)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to sign client response")
		return
	}
	if err := b.clientSock.SendMessage(buildEnvelope(request.Source, wrapped)); err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to forward response to client")
	}
}

func (b *BrokerLoop) sendToWorker(workerID string, payload map[string]interface{}) {
	out, err := encodePayload(payload)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("failed to encode worker request")
		return
	}
	wrapped, err := b.security.Wrap(out)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("failed to sign worker request")
		return
	}
	if err := b.workerControlSock.SendMessage([][]byte{[]byte(workerID), {}, wrapped}); err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("failed to dispatch request to worker")
	}
}

func (b *BrokerLoop) sendControl(workerID, control string) {
	out, err := encodePayload(map[string]interface{}{fieldControl: control})
	if err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("failed to encode control frame")
		return
	}
	wrapped, err := b.security.Wrap(out)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID}).Error("failed to sign control frame")
		return
	}
	if err := b.workerControlSock.SendMessage([][]byte{[]byte(workerID), {}, wrapped}); err != nil {
		log.WithFields(log.Fields{"error": err, "worker": workerID, "control": control}).Error("failed to send control frame")
	}
}
