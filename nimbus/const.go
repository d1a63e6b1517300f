package nimbus

import "time"

// Status codes returned to clients, HTTP-style.
const (
	StatusOK          = 200
	StatusBadRequest  = 400
	StatusNotFound    = 404
	StatusServerError = 500
)

// Wire field names used by the binary-packed payload maps (§6). Keeping
// them as named constants avoids typos scattered across broker.go,
// worker.go and client.go.
const (
	fieldID         = "id"
	fieldMethod     = "method"
	fieldEndpoint   = "endpoint"
	fieldParameters = "parameters"
	fieldData       = "data"
	fieldResponse   = "response"
	fieldStatus     = "status"
	fieldEndpoints  = "endpoints"
	fieldReady      = "w"
	fieldReceipt    = "r"
	fieldControl    = "control"
	fieldPing       = "ping"
	fieldPong       = "pong"
	fieldDisconnect = "disconnect"
)

// Control frame literals exchanged on the worker-control socket (§6).
const (
	controlPing = "ping"
	controlPong = "pong"
	controlKick = "kick"
)

// responseAck is the literal broker->worker acknowledgement on the
// worker-response socket (§4.7 step 3, §6).
const responseAck = "OK"

// durableKeyPrefix is the first segment of every durable-store key (§6).
const durableKeyPrefix = "broker"

// Durable status values recorded alongside a queued request (§3).
const (
	statusWaiting    = "waiting"
	statusProcessing = "processing"
)

// defaultPollTimeout is the floor on the broker/worker poll timeout: both
// loops poll for max(500ms, min(T_probe, T_disconnect)/10) so heartbeat
// ticks are never starved (§4.7).
const defaultPollTimeout = 500 * time.Millisecond

// brokerPeer is the synthetic peer name the worker's own LivenessMonitor
// uses to track its single upstream connection (§4.8).
const brokerPeer = "broker"

// pollTimeout computes the broker/worker poll interval from the two
// liveness timers.
func pollTimeout(tProbe, tDisconnect time.Duration) time.Duration {
	min := tProbe
	if tDisconnect < min {
		min = tDisconnect
	}
	tenth := min / 10
	if tenth < defaultPollTimeout {
		return defaultPollTimeout
	}
	return tenth
}
