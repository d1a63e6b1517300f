// Package service provides a JSON convenience layer over nimbus.Client,
// the application-layer serialization spec.md §9 explicitly keeps out of
// the core ("serializers are an application-layer concern implemented by
// user code on top of the handler interface"). Grounded on
// core/service/client.go's Connection/Client/sendMessage pairing, adapted
// from MDP's service-name/string-frame wire shape to Nimbus's
// method/endpoint/parameters/data requests.
package service

import (
	"encoding/json"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/nimbusmq/nimbus/nimbus"
)

// Connection is satisfied by *nimbus.Client; tests substitute a fake.
type Connection interface {
	Close()
	Send(method, endpoint string, parameters map[string]string, data map[string][]byte) (nimbus.Response, error)
}

// Client is a JSON-body service client built on top of a raw nimbus
// Connection.
type Client struct {
	conn Connection
}

// NewClient wraps an already-connected nimbus.Client.
func NewClient(conn Connection) *Client {
	return &Client{conn: conn}
}

// Close the underlying connection.
func (c *Client) Close() {
	log.Debug("closing service client connection")
	c.conn.Close()
}

const jsonBodyField = "body"

// sendJSON marshals in to JSON, sends it as the request body, and
// unmarshals the response body into out.
func (c *Client) sendJSON(method, endpoint string, parameters map[string]string, in interface{}, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	resp, err := c.conn.Send(method, endpoint, parameters, map[string][]byte{jsonBodyField: body})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return errors.New("service request failed")
	}

	raw, ok := resp.Response.([]byte)
	if !ok {
		if s, ok := resp.Response.(string); ok {
			raw = []byte(s)
		}
	}
	if len(raw) == 0 {
		return nil
	}

	log.WithFields(log.Fields{"endpoint": endpoint, "method": method}).Debug("decoding service response")
	return json.Unmarshal(raw, out)
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(endpoint string, parameters map[string]string, out interface{}) error {
	return c.sendJSON("GET", endpoint, parameters, nil, out)
}

// Post marshals in as the request body and decodes the JSON response
// into out.
func (c *Client) Post(endpoint string, in interface{}, out interface{}) error {
	return c.sendJSON("POST", endpoint, nil, in, out)
}
