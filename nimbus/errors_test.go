package nimbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewMissingParameterError("name")
		assert.Equal(t, `nimbus MISSING_PARAMETER: missing parameter "name"`, err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewDurableStoreError("get", "broker:q:request:content:1", cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestErrorIs(t *testing.T) {
	a := NewEndpointDoesNotExistError("status")
	b := NewEndpointDoesNotExistError("other-endpoint")
	assert.True(t, errors.Is(a, b), "errors with the same code are equivalent")

	c := NewWrongEndpointError("status")
	assert.False(t, errors.Is(a, c))
}

func TestErrorHTTPStatus(t *testing.T) {
	assert.Equal(t, StatusBadRequest, NewMissingParameterError("x").HTTPStatus())
	assert.Equal(t, StatusNotFound, NewObjectDoesNotExistError("widget").HTTPStatus())
	assert.Equal(t, StatusServerError, NewWrongMethodError("PUT").HTTPStatus())

	bare := &Error{Code: "SOMETHING"}
	assert.Equal(t, StatusServerError, bare.HTTPStatus())
}

func TestErrorWithContext(t *testing.T) {
	err := NewMissingParameterError("id").WithContext("request_id", "abc123")
	assert.Equal(t, "id", err.Context["parameter"])
	assert.Equal(t, "abc123", err.Context["request_id"])
}

func TestRequestErrorInterface(t *testing.T) {
	var re RequestError = NewObjectDoesNotExistError("widget")
	assert.Equal(t, StatusNotFound, re.HTTPStatus())
}
