package nimbus

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// WorkerRequest is what a Handler sees: the broker-minted id plus the
// client's original method/endpoint/parameters/data (§4.8).
type WorkerRequest struct {
	ID         string
	Method     string
	Endpoint   string
	Parameters map[string]string
	Data       map[string][]byte
}

// Handler is a user-registered request handler. It returns a response
// value (packed as-is into the "response" wire field) and a status code,
// or an error. A RequestError dictates its own HTTPStatus(); any other
// error is logged and reported as 500 with an empty response, matching
// §7's "the worker loop MUST NOT die on handler faults."
type Handler func(req *WorkerRequest) (response interface{}, status int, err error)

type handlerKey struct {
	method   string
	endpoint string
}

// WorkerConfig carries the two broker-facing addresses and the liveness
// timers the worker uses for its own "broker" peer (§6).
type WorkerConfig struct {
	ControlAddr  string
	ResponseAddr string
	TProbe       time.Duration
	TDisconnect  time.Duration
}

// Worker is the symmetric worker-side loop (§4.8). Grounded on
// core/mdp/worker.go's Worker/ConnectToBroker/Recv, generalized from a
// single DEALER socket with MDP's READY/REQUEST/HEARTBEAT commands to
// Nimbus's two-socket control/response split and its ping/pong/kick
// control vocabulary. The handler registry replaces the source's
// decorator-bound RequestContext (original_source/nimbus/worker/context.py)
// with the explicit (method, endpoint) -> Handler map spec.md §9 calls
// for.
type Worker struct {
	cfg       WorkerConfig
	identity  string
	security  *SecurityManager
	endpoints []string

	controlSock  *czmq.Sock
	responseSock *czmq.Sock
	poller       *czmq.Poller

	liveness *LivenessMonitor
	handlers map[handlerKey]Handler
}

// NewWorker connects to the broker's two sockets and sends the initial
// handshake frame.
func NewWorker(cfg WorkerConfig, identity string, security *SecurityManager, endpoints []string) (*Worker, error) {
	controlSock, err := czmq.NewDealer(cfg.ControlAddr)
	if err != nil {
		return nil, fmt.Errorf("nimbus: connect worker-control socket %s: %w", cfg.ControlAddr, err)
	}
	responseSock, err := czmq.NewDealer(cfg.ResponseAddr)
	if err != nil {
		return nil, fmt.Errorf("nimbus: connect worker-response socket %s: %w", cfg.ResponseAddr, err)
	}
	poller, err := czmq.NewPoller(controlSock)
	if err != nil {
		return nil, fmt.Errorf("nimbus: create worker poller: %w", err)
	}

	w := &Worker{
		cfg:          cfg,
		identity:     identity,
		security:     security,
		endpoints:    endpoints,
		controlSock:  controlSock,
		responseSock: responseSock,
		poller:       poller,
		liveness:     NewLivenessMonitor(cfg.TProbe, cfg.TDisconnect),
		handlers:     make(map[handlerKey]Handler),
	}
	if err := w.sendHandshake(); err != nil {
		return nil, err
	}
	return w, nil
}

// Handle registers h for (method, endpoint).
func (w *Worker) Handle(method, endpoint string, h Handler) {
	w.handlers[handlerKey{method: method, endpoint: endpoint}] = h
}

// Close destroys both sockets.
func (w *Worker) Close() {
	w.controlSock.Destroy()
	w.responseSock.Destroy()
}

func (w *Worker) sendHandshake() error {
	return w.sendControlPayload(map[string]interface{}{
		fieldEndpoints: w.endpoints,
		fieldReady:     true,
	})
}

func (w *Worker) sendControlPayload(payload map[string]interface{}) error {
	out, err := encodePayload(payload)
	if err != nil {
		return err
	}
	wrapped, err := w.security.Wrap(out)
	if err != nil {
		return err
	}
	return w.controlSock.SendMessage([][]byte{{}, wrapped})
}

// Run drives the worker loop until the poller errors (§4.8). Termination
// happens when the broker fails to answer a probe in time: the loop
// returns an error rather than retrying forever, since reconnection
// policy is left to the caller (a supervising process, per spec.md §1's
// "process signal" termination model).
func (w *Worker) Run() error {
	timeout := pollTimeout(w.cfg.TProbe, w.cfg.TDisconnect)

	for {
		socket, err := w.poller.Wait(int(timeout / time.Millisecond))
		if err != nil {
			return fmt.Errorf("nimbus: worker poll: %w", err)
		}
		if socket != nil {
			w.handleControlFrame()
		}

		if due := w.liveness.DueForProbe(); len(due) > 0 {
			if err := w.sendControlPayload(map[string]interface{}{fieldPing: true}); err != nil {
				log.WithFields(log.Fields{"error": err}).Error("failed to send ping to broker")
			}
		}
		if due := w.liveness.DueForDisconnect(); len(due) > 0 {
			_ = w.sendControlPayload(map[string]interface{}{fieldDisconnect: true})
			return fmt.Errorf("nimbus: broker %q did not answer probe, disconnecting", brokerPeer)
		}
	}
}

func (w *Worker) handleControlFrame() {
	frames, err := w.controlSock.RecvMessage()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("failed to receive control message")
		return
	}
	_, raw, err := splitEnvelope(frames)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("malformed control envelope")
		return
	}
	inner, err := w.security.Unwrap(brokerPeer, raw)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("broker signature verification failed")
		return
	}
	payload, err := decodePayload(inner)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("malformed control payload")
		return
	}

	w.liveness.ContactFrom(brokerPeer)

	if control, ok := payload[fieldControl].(string); ok {
		switch control {
		case controlPing:
			_ = w.sendControlPayload(map[string]interface{}{fieldPong: true})
		case controlPong:
			// no-op
		case controlKick:
			if err := w.sendHandshake(); err != nil {
				log.WithFields(log.Fields{"error": err}).Error("failed to re-send handshake after kick")
			}
		}
		return
	}

	w.handleRequest(payload)
}

func (w *Worker) handleRequest(payload map[string]interface{}) {
	id, _ := payload[fieldID].(string)
	method, _ := payload[fieldMethod].(string)
	endpoint, _ := payload[fieldEndpoint].(string)

	if err := w.sendControlPayload(map[string]interface{}{fieldReceipt: id}); err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to ack request receipt")
	}

	req := &WorkerRequest{
		ID:         id,
		Method:     method,
		Endpoint:   endpoint,
		Parameters: decodeStringMap(payload[fieldParameters]),
		Data:       decodeBytesMap(payload[fieldData]),
	}

	response, status := w.invoke(req)

	out, err := encodePayload(map[string]interface{}{
		fieldID:       id,
		fieldStatus:   status,
		fieldResponse: response,
	})
	if err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to encode response")
		return
	}
	wrapped, err := w.security.Wrap(out)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to sign response")
		return
	}
	if err := w.responseSock.SendMessage([][]byte{{}, wrapped}); err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to send response")
		return
	}
	if err := w.sendControlPayload(map[string]interface{}{fieldReady: true}); err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to signal ready")
	}

	if _, err := w.responseSock.RecvMessage(); err != nil {
		log.WithFields(log.Fields{"error": err, "request_id": id}).Error("failed to read response ack")
	}
}

// invoke looks the handler up by (method, endpoint) and runs it, turning
// any RequestError or other panic/error into a status code per §7 and
// §4.8's "expect either response or (response, status)".
func (w *Worker) invoke(req *WorkerRequest) (response interface{}, status int) {
	handler, ok := w.handlers[handlerKey{method: req.Method, endpoint: req.Endpoint}]
	if !ok {
		err := NewEndpointDoesNotExistError(req.Endpoint)
		log.WithFields(log.Fields{"endpoint": req.Endpoint, "method": req.Method}).Error(err.Error())
		return nil, err.HTTPStatus()
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"request_id": req.ID, "panic": r}).Error("handler panicked")
			response, status = nil, StatusServerError
		}
	}()

	resp, code, err := handler(req)
	if err != nil {
		if reqErr, ok := err.(RequestError); ok {
			log.WithFields(log.Fields{"request_id": req.ID, "error": reqErr}).Warn("handler returned request error")
			return nil, reqErr.HTTPStatus()
		}
		log.WithFields(log.Fields{"request_id": req.ID, "error": err}).Error("handler returned unexpected error")
		return nil, StatusServerError
	}
	if code == 0 {
		code = StatusOK
	}
	return resp, code
}
