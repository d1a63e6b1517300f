package nimbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClientRequest(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		req, err := NewClientRequest([][]byte{[]byte("client-1")}, map[string]interface{}{
			fieldMethod:   "POST",
			fieldEndpoint: "widgets",
			fieldParameters: map[string]interface{}{
				"id": "42",
			},
			fieldData: map[string]interface{}{
				"body": []byte(`{"name":"foo"}`),
			},
		})
		assert.NoError(t, err)
		assert.NotEmpty(t, req.ID)
		assert.Len(t, req.ID, 32)
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, "widgets", req.Endpoint)
		assert.Equal(t, "42", req.Parameters["id"])
		assert.Equal(t, []byte(`{"name":"foo"}`), req.Data["body"])
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := NewClientRequest(nil, map[string]interface{}{fieldMethod: "GET"})
		var nimbusErr *Error
		assert.ErrorAs(t, err, &nimbusErr)
		assert.Equal(t, ErrCodeDataNotComplete, nimbusErr.Code)
	})
}

func TestClientRequestCachedPayloadRoundTrip(t *testing.T) {
	original := &ClientRequest{
		ID:         newID(),
		Source:     [][]byte{[]byte("client-1")},
		Method:     "PATCH",
		Endpoint:   "widgets",
		Parameters: map[string]string{"id": "7"},
		Data:       map[string][]byte{"body": []byte("payload")},
	}

	packed, err := original.ToCachedPayload()
	assert.NoError(t, err)

	restored, err := requestFromCachedPayload(packed)
	assert.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestClientRequestToBrokerWorkerPayload(t *testing.T) {
	req := &ClientRequest{
		ID:       "abc123",
		Method:   "GET",
		Endpoint: "status",
	}
	payload := req.ToBrokerWorkerPayload()
	assert.Equal(t, "abc123", payload[fieldID])
	assert.Equal(t, "GET", payload[fieldMethod])
	assert.Equal(t, "status", payload[fieldEndpoint])
	_, hasParams := payload[fieldParameters]
	assert.False(t, hasParams, "empty parameters should be omitted")
}

func TestDecodeInt(t *testing.T) {
	cases := []interface{}{
		int(200), int8(7), int16(400), int32(404), int64(500),
		uint(200), uint8(7), uint16(400), uint32(404), uint64(500),
	}
	for _, c := range cases {
		assert.NotPanics(t, func() { decodeInt(c) })
	}
	assert.Equal(t, 404, decodeInt(int32(404)))
	assert.Equal(t, 0, decodeInt("not-a-number"))
}

func TestNewIDFormat(t *testing.T) {
	id := newID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
}
