package nimbus

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writePEMKey(t *testing.T, dir, filename string, der []byte, blockType string) string {
	t.Helper()
	path := dir + "/" + filename
	block := &pem.Block{Type: blockType, Bytes: der}
	assert.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestSecurityManagerUnsignedRoundTrip(t *testing.T) {
	sender := NewSecurityManager("client-1", nil, t.TempDir())
	wrapped, err := sender.Wrap([]byte("hello"))
	assert.NoError(t, err)

	receiver := NewSecurityManager("broker", nil, t.TempDir())
	unwrapped, err := receiver.Unwrap("client-1", wrapped)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), unwrapped)
}

func TestSecurityManagerSignedRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	keyDir := t.TempDir()
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	assert.NoError(t, err)
	writePEMKey(t, keyDir, "client-1.pem", pubDER, "PUBLIC KEY")

	sender := NewSecurityManager("client-1", priv, keyDir)
	wrapped, err := sender.Wrap([]byte("hello"))
	assert.NoError(t, err)

	receiver := NewSecurityManager("broker", nil, keyDir)
	unwrapped, err := receiver.Unwrap("client-1", wrapped)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), unwrapped)
}

func TestSecurityManagerSignatureMismatchIsRejected(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	keyDir := t.TempDir()
	pubDER, err := x509.MarshalPKIXPublicKey(otherPub)
	assert.NoError(t, err)
	writePEMKey(t, keyDir, "client-1.pem", pubDER, "PUBLIC KEY")

	sender := NewSecurityManager("client-1", priv, keyDir)
	wrapped, err := sender.Wrap([]byte("hello"))
	assert.NoError(t, err)

	receiver := NewSecurityManager("broker", nil, keyDir)
	_, err = receiver.Unwrap("client-1", wrapped)
	var nimbusErr *Error
	assert.ErrorAs(t, err, &nimbusErr)
	assert.Equal(t, ErrCodeSignatureInvalid, nimbusErr.Code)
}

func TestLoadSigningKeyFromPEM(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	assert.NoError(t, err)

	keyDir := t.TempDir()
	path := writePEMKey(t, keyDir, "broker.key.pem", der, "PRIVATE KEY")

	loaded, err := LoadSigningKeyFromPEM(path)
	assert.NoError(t, err)
	assert.Equal(t, priv, loaded)
}

func TestLoadSigningKeyFromPEMMissingFile(t *testing.T) {
	_, err := LoadSigningKeyFromPEM("/nonexistent/path.pem")
	assert.Error(t, err)
}
