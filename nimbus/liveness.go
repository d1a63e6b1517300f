package nimbus

import (
	"sync"
	"time"
)

// LivenessMonitor tracks per-peer last-contact timestamps and emits
// ping-due and disconnect-due peer sets on a clock (§4.6). Grounded
// directly on original_source/nimbus/statemanager.py's
// ConnectionStateManager, which this is a close structural translation
// of: _last_contact -> lastContact, _checking_connection -> probeSentAt,
// get_connections_to_ping -> DueForProbe, get_connections_to_disconnect ->
// DueForDisconnect.
type LivenessMonitor struct {
	mu sync.Mutex

	tProbe      time.Duration
	tDisconnect time.Duration

	lastContact map[string]time.Time
	probeSentAt map[string]time.Time
}

// NewLivenessMonitor builds a LivenessMonitor configured with the probe
// interval and the grace period after a probe is sent.
func NewLivenessMonitor(tProbe, tDisconnect time.Duration) *LivenessMonitor {
	return &LivenessMonitor{
		tProbe:      tProbe,
		tDisconnect: tDisconnect,
		lastContact: make(map[string]time.Time),
		probeSentAt: make(map[string]time.Time),
	}
}

// ContactFrom cancels any outstanding probe for peer and records contact
// at now.
func (m *LivenessMonitor) ContactFrom(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.probeSentAt, peer)
	m.lastContact[peer] = time.Now()
}

// Disconnect removes all records for peer.
func (m *LivenessMonitor) Disconnect(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.probeSentAt, peer)
	delete(m.lastContact, peer)
}

// DueForProbe returns every peer whose last contact is older than tProbe
// and that is not already in probe. Each returned peer is atomically
// moved from lastContact into probeSentAt, so it becomes "in probe" until
// it answers or is disconnected.
func (m *LivenessMonitor) DueForProbe() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var due []string
	for peer, contact := range m.lastContact {
		if _, checking := m.probeSentAt[peer]; checking {
			continue
		}
		if now.Sub(contact) > m.tProbe {
			due = append(due, peer)
		}
	}
	for _, peer := range due {
		delete(m.lastContact, peer)
		m.probeSentAt[peer] = now
	}
	return due
}

// DueForDisconnect returns every peer whose outstanding probe is older
// than tDisconnect, clearing its probe record.
func (m *LivenessMonitor) DueForDisconnect() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var due []string
	for peer, sentAt := range m.probeSentAt {
		if now.Sub(sentAt) > m.tDisconnect {
			due = append(due, peer)
		}
	}
	for _, peer := range due {
		delete(m.probeSentAt, peer)
	}
	return due
}
