package nimbus

import (
	"strings"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// newID mints a 32-hex-character identifier, matching the original
// source's uuid.uuid4().hex (SPEC_FULL.md AMBIENT STACK, "IDs").
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ClientRequest is the entity created when a client frame arrives (§3).
// Once constructed, ID, Source, Method and Endpoint are immutable by
// convention: nothing in this package mutates them after NewClientRequest
// returns.
type ClientRequest struct {
	ID         string
	Source     [][]byte
	Method     string
	Endpoint   string
	Parameters map[string]string
	Data       map[string][]byte
}

// NewClientRequest mints a new id and builds a ClientRequest from a
// decoded client->broker payload (§6). source is the routing prefix
// captured off the client socket's envelope.
func NewClientRequest(source [][]byte, payload map[string]interface{}) (*ClientRequest, error) {
	method, _ := payload[fieldMethod].(string)
	endpoint, _ := payload[fieldEndpoint].(string)
	if endpoint == "" {
		return nil, NewDataNotCompleteError(fieldEndpoint)
	}
	return &ClientRequest{
		ID:         newID(),
		Source:     source,
		Method:     method,
		Endpoint:   endpoint,
		Parameters: decodeStringMap(payload[fieldParameters]),
		Data:       decodeBytesMap(payload[fieldData]),
	}, nil
}

// ToCachedPayload packs the request (source plus content, but not the
// durable status/timestamp, which EndpointQueue tracks in separate
// records per §3) for storage under the "content" durable key.
func (r *ClientRequest) ToCachedPayload() ([]byte, error) {
	wire := cachedRequestWire{
		ID:         r.ID,
		Source:     r.Source,
		Method:     r.Method,
		Endpoint:   r.Endpoint,
		Parameters: r.Parameters,
		Data:       r.Data,
	}
	return msgpack.Marshal(&wire)
}

// requestFromCachedPayload reverses ToCachedPayload, used by
// EndpointQueue.pop/get to reconstruct a request from the durable store
// (§4.3, and the round-trip property in §8).
func requestFromCachedPayload(raw []byte) (*ClientRequest, error) {
	var wire cachedRequestWire
	if err := msgpack.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return &ClientRequest{
		ID:         wire.ID,
		Source:     wire.Source,
		Method:     wire.Method,
		Endpoint:   wire.Endpoint,
		Parameters: wire.Parameters,
		Data:       wire.Data,
	}, nil
}

// cachedRequestWire is the msgpack shape stored under the "content"
// durable key (§6's key layout: "cached payload (source + content)").
type cachedRequestWire struct {
	ID         string            `msgpack:"id"`
	Source     [][]byte          `msgpack:"source"`
	Method     string            `msgpack:"method"`
	Endpoint   string            `msgpack:"endpoint"`
	Parameters map[string]string `msgpack:"parameters,omitempty"`
	Data       map[string][]byte `msgpack:"data,omitempty"`
}

// ToBrokerWorkerPayload builds the Broker->Worker request payload (§6):
// the client fields plus the broker-minted id.
func (r *ClientRequest) ToBrokerWorkerPayload() map[string]interface{} {
	out := map[string]interface{}{
		fieldID:       r.ID,
		fieldMethod:   r.Method,
		fieldEndpoint: r.Endpoint,
	}
	if len(r.Parameters) > 0 {
		out[fieldParameters] = r.Parameters
	}
	if len(r.Data) > 0 {
		out[fieldData] = r.Data
	}
	return out
}

// WorkerRegistration tracks one worker's advertised capability set and
// readiness (§3).
type WorkerRegistration struct {
	WorkerID  string
	Endpoints map[string]struct{}
	Ready     bool
}

func newEndpointSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func decodeStringMap(v interface{}) map[string]string {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		switch t := val.(type) {
		case string:
			out[k] = t
		case []byte:
			out[k] = string(t)
		}
	}
	return out
}

func decodeBytesMap(v interface{}) map[string][]byte {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string][]byte, len(raw))
	for k, val := range raw {
		switch t := val.(type) {
		case []byte:
			out[k] = t
		case string:
			out[k] = []byte(t)
		}
	}
	return out
}

func decodeStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case []byte:
			out = append(out, string(t))
		}
	}
	return out
}

// decodeInt normalizes the various integer types msgpack may decode a
// wire integer into interface{} as (int8/int16/int32/int64/uint* depending
// on magnitude) into a plain int.
func decodeInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int8:
		return int(t)
	case int16:
		return int(t)
	case int32:
		return int(t)
	case int64:
		return int(t)
	case uint:
		return int(t)
	case uint8:
		return int(t)
	case uint16:
		return int(t)
	case uint32:
		return int(t)
	case uint64:
		return int(t)
	default:
		return 0
	}
}
