package nimbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIdentity(t *testing.T) {
	assert.Equal(t, "", clientIdentity(nil))
	assert.Equal(t, "client-1", clientIdentity([][]byte{[]byte("client-1")}))
	assert.Equal(t, "client-1", clientIdentity([][]byte{[]byte("proxy"), []byte("client-1")}),
		"a multi-frame routing prefix is keyed by its last hop")
}

func TestEncodeDecodePayloadRoundTrip(t *testing.T) {
	payload := map[string]interface{}{
		fieldMethod:   "GET",
		fieldEndpoint: "widgets",
		fieldStatus:   StatusOK,
	}
	raw, err := encodePayload(payload)
	assert.NoError(t, err)

	decoded, err := decodePayload(raw)
	assert.NoError(t, err)
	assert.Equal(t, "GET", decoded[fieldMethod])
	assert.Equal(t, "widgets", decoded[fieldEndpoint])
	assert.Equal(t, StatusOK, decodeInt(decoded[fieldStatus]))
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	_, err := decodePayload([]byte("not msgpack"))
	assert.Error(t, err)
}
