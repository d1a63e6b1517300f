package nimbus

import (
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// Response is what Client.Send returns: the handler's response value and
// its HTTP-style status code (§4.9, §6).
type Response struct {
	Response   interface{}
	StatusCode int
}

// Client is a blocking, single-shot request/reply helper over the
// client-facing socket (§4.9). Grounded on core/mdp/client.go's
// DEALER-based Client, simplified from MDP's async fire-and-forget
// Send/Recv pair into one blocking call, since spec.md §4.9 describes a
// single request/reply round trip rather than a pipeline of outstanding
// requests.
type Client struct {
	broker   string
	identity string
	security *SecurityManager
	timeout  time.Duration

	sock   *czmq.Sock
	poller *czmq.Poller
}

// NewClient connects to the broker's client-facing address.
func NewClient(broker, identity string, security *SecurityManager, timeout time.Duration) (*Client, error) {
	sock, err := czmq.NewDealer(broker)
	if err != nil {
		return nil, err
	}
	poller, err := czmq.NewPoller(sock)
	if err != nil {
		sock.Destroy()
		return nil, err
	}
	return &Client{
		broker:   broker,
		identity: identity,
		security: security,
		timeout:  timeout,
		sock:     sock,
		poller:   poller,
	}, nil
}

// Close destroys the underlying socket.
func (c *Client) Close() {
	c.sock.Destroy()
}

// Send issues one request and blocks up to the configured timeout for a
// reply (§4.9). On timeout it returns a neutral empty Response and a nil
// error, matching the specification's "On timeout returns a neutral empty
// value."
func (c *Client) Send(method, endpoint string, parameters map[string]string, data map[string][]byte) (Response, error) {
	payload := map[string]interface{}{
		fieldMethod:   method,
		fieldEndpoint: endpoint,
	}
	if len(parameters) > 0 {
		payload[fieldParameters] = parameters
	}
	if len(data) > 0 {
		payload[fieldData] = data
	}

	out, err := encodePayload(payload)
	if err != nil {
		return Response{}, err
	}
	wrapped, err := c.security.Wrap(out)
	if err != nil {
		return Response{}, err
	}
	if err := c.sock.SendMessage([][]byte{{}, wrapped}); err != nil {
		return Response{}, err
	}

	socket, err := c.poller.Wait(int(c.timeout / time.Millisecond))
	if err != nil {
		return Response{}, err
	}
	if socket == nil {
		log.WithFields(log.Fields{
			"broker":   c.broker,
			"endpoint": endpoint,
			"timeout":  c.timeout,
		}).Warn("no reply received within timeout")
		return Response{}, nil
	}

	frames, err := socket.RecvMessage()
	if err != nil {
		return Response{}, err
	}
	_, raw, err := splitEnvelope(frames)
	if err != nil {
		return Response{}, err
	}
	inner, err := c.security.Unwrap(c.identity, raw)
	if err != nil {
		return Response{}, err
	}
	reply, err := decodePayload(inner)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Response:   reply[fieldResponse],
		StatusCode: decodeInt(reply[fieldStatus]),
	}, nil
}

// Get issues a GET request, mirroring original_source's
// nimbus/client/__init__.py Client.get convenience method.
func (c *Client) Get(endpoint string, parameters map[string]string) (Response, error) {
	return c.Send("GET", endpoint, parameters, nil)
}

// List issues a LIST request.
func (c *Client) List(endpoint string, parameters map[string]string) (Response, error) {
	return c.Send("LIST", endpoint, parameters, nil)
}

// Post issues a POST request carrying data.
func (c *Client) Post(endpoint string, data map[string][]byte) (Response, error) {
	return c.Send("POST", endpoint, nil, data)
}

// Patch issues a PATCH request carrying data.
func (c *Client) Patch(endpoint string, parameters map[string]string, data map[string][]byte) (Response, error) {
	return c.Send("PATCH", endpoint, parameters, data)
}

// Delete issues a DELETE request.
func (c *Client) Delete(endpoint string, parameters map[string]string) (Response, error) {
	return c.Send("DELETE", endpoint, parameters, nil)
}
