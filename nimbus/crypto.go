package nimbus

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// wireEnvelope is the outer signed/unsigned wrapper around every payload
// frame (§4.1): {"message": inner_bytes} unsigned, or
// {"message": inner_bytes, "signature": bytes} signed.
type wireEnvelope struct {
	Message   []byte `msgpack:"message"`
	Signature []byte `msgpack:"signature,omitempty"`
}

// SecurityManager signs outgoing payloads with this peer's private key (if
// configured) and verifies incoming ones against the sender's public key,
// one PEM file per identity. Grounded on original_source/nimbus/crypto.py's
// SecurityManager, whose DSA/DSS-over-SHA256 scheme this replaces with
// ed25519 signing over the same SHA-256 digest — no ed25519/ecdsa library
// appears anywhere else in the pack, so this piece is stdlib per
// SPEC_FULL.md's DOMAIN STACK section.
type SecurityManager struct {
	identity   string
	signingKey ed25519.PrivateKey
	keyDir     string

	mu     sync.Mutex
	pubkeys map[string]ed25519.PublicKey
}

// NewSecurityManager builds a SecurityManager. identity is this peer's own
// name; it is stored but Wrap and Unwrap do not use it. signingKey may be
// nil to run unsigned, matching §4.1's "unsigned mode" fallback. keyDir is
// the directory public keys for other peers are loaded from, one
// lowercase(identity)+".pem" file per peer.
func NewSecurityManager(identity string, signingKey ed25519.PrivateKey, keyDir string) *SecurityManager {
	return &SecurityManager{
		identity:   identity,
		signingKey: signingKey,
		keyDir:     keyDir,
		pubkeys:    make(map[string]ed25519.PublicKey),
	}
}

// LoadSigningKeyFromPEM reads an ed25519 private key from the PKCS#8 PEM
// file at path. The file name is up to the caller; the cmd binaries use
// <key_dir>/<service id>.key.pem.
func LoadSigningKeyFromPEM(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nimbus: read signing key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("nimbus: no PEM block in %s", path)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("nimbus: parse signing key %s: %w", path, err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("nimbus: key in %s is not ed25519", path)
	}
	return priv, nil
}

// publicKeyPath mirrors the original's "identity.lower() + '.pem'" file
// naming (nimbus/crypto.py).
func (s *SecurityManager) publicKeyPath(identity string) string {
	return filepath.Join(s.keyDir, strings.ToLower(identity)+".pem")
}

func (s *SecurityManager) loadPublicKey(identity string) (ed25519.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.pubkeys[identity]; ok {
		return key, nil
	}
	raw, err := os.ReadFile(s.publicKeyPath(identity))
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("nimbus: no PEM block in public key for %q", identity)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("nimbus: parse public key for %q: %w", identity, err)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("nimbus: public key for %q is not ed25519", identity)
	}
	s.pubkeys[identity] = pub
	return pub, nil
}

// Wrap packs and, if a signing key is configured, signs inner, returning
// the bytes to send as the single payload frame.
func (s *SecurityManager) Wrap(inner []byte) ([]byte, error) {
	env := wireEnvelope{Message: inner}
	if s.signingKey != nil {
		digest := sha256.Sum256(inner)
		env.Signature = ed25519.Sign(s.signingKey, digest[:])
	}
	return msgpack.Marshal(&env)
}

// Unwrap unpacks a payload frame received from peerIdentity. If the frame
// carries a signature, it is verified against peerIdentity's public key;
// on mismatch this returns a *Error with code ErrCodeSignatureInvalid and
// the caller MUST drop the frame without replying (§7, scenario 6). If the
// frame carries no signature, it passes through unchecked (unsigned mode).
func (s *SecurityManager) Unwrap(peerIdentity string, wire []byte) ([]byte, error) {
	var env wireEnvelope
	if err := msgpack.Unmarshal(wire, &env); err != nil {
		return nil, fmt.Errorf("nimbus: decode wire envelope: %w", err)
	}
	if len(env.Signature) == 0 {
		return env.Message, nil
	}
	pub, err := s.loadPublicKey(peerIdentity)
	if err != nil {
		return nil, NewSignatureInvalidError(peerIdentity, err)
	}
	digest := sha256.Sum256(env.Message)
	if !ed25519.Verify(pub, digest[:], env.Signature) {
		return nil, NewSignatureInvalidError(peerIdentity, nil)
	}
	return env.Message, nil
}

// SecureSocket is an abstract transport-level mutual-authentication hook
// (CURVE certificate configuration in the underlying CZMQ library). The
// core treats it opaquely, as spec'd; concrete wiring is left to the
// caller. Grounded on the split between BrokerSecurityManager (connection
// security) and message-level signing in original_source/nimbus/crypto.py.
type SecureSocket func(sock interface{}) error

// NoopSecureSocket performs no transport-level authentication.
func NoopSecureSocket(sock interface{}) error { return nil }
