package nimbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	_, ok, err := store.Get("missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Put("key", []byte("value")))
	value, ok, err := store.Get("key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), value)

	assert.NoError(t, store.Delete("key"))
	_, ok, err = store.Get("key")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreDeleteOfMissingKeyIsSilent(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	assert.NoError(t, store.Delete("never-existed"))
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Close()

	assert.NoError(t, store.Put("key", []byte("value")))
	_, ok, err := store.Get("key")
	assert.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok, err = store.Get("key")
	assert.NoError(t, err)
	assert.False(t, ok, "entry should expire once past its ttl")
}
