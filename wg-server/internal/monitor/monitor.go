// Package monitor derives connection status from the latest handshake time
// the interface reports for each peer.
package monitor

import (
	"time"

	"wg-lifecycle/wg-server/internal/model"
)

// DefaultThreshold is how recent a handshake must be for a peer to count as
// connected.
const DefaultThreshold = 130 * time.Second

type Monitor struct {
	Threshold time.Duration
}

func New(threshold time.Duration) *Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Monitor{Threshold: threshold}
}

// Connected reports whether a handshake at ts is recent enough at now.
// A zero ts means the peer never completed a handshake.
func (m *Monitor) Connected(now, ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return now.Sub(ts) < m.Threshold
}

// Evaluate returns a change for every client whose connection status
// differs from what its peer's handshake implies. Clients with no entry in
// handshakes are left as they are.
func (m *Monitor) Evaluate(now time.Time, handshakes map[string]time.Time, clients []model.Client) []model.StatusChange {
	if len(handshakes) == 0 {
		return nil
	}

	byKey := make(map[string][]int, len(clients))
	for i, c := range clients {
		byKey[c.PublicKey] = append(byKey[c.PublicKey], i)
	}

	var changes []model.StatusChange
	for key, ts := range handshakes {
		connected := m.Connected(now, ts)
		for _, i := range byKey[key] {
			if clients[i].ConnectionStatus != connected {
				changes = append(changes, model.StatusChange{ID: clients[i].UUID, Value: connected})
			}
		}
	}
	return changes
}
