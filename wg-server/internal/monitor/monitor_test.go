package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wg-lifecycle/wg-server/internal/model"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := New(0)

	clients := []model.Client{
		{UUID: "fresh", PublicKey: "K1", ConnectionStatus: false},
		{UUID: "stale", PublicKey: "K2", ConnectionStatus: true},
		{UUID: "unseen", PublicKey: "K3", ConnectionStatus: true},
		{UUID: "never", PublicKey: "K4", ConnectionStatus: true},
		{UUID: "steady", PublicKey: "K5", ConnectionStatus: true},
	}
	handshakes := map[string]time.Time{
		"K1": now.Add(-10 * time.Second),
		"K2": now.Add(-200 * time.Second),
		"K4": {},
		"K5": now.Add(-time.Minute),
	}

	changes := m.Evaluate(now, handshakes, clients)

	assert.ElementsMatch(t, []model.StatusChange{
		{ID: "fresh", Value: true},
		{ID: "stale", Value: false},
		{ID: "never", Value: false},
	}, changes)
}

func TestEvaluateNoHandshakes(t *testing.T) {
	m := New(DefaultThreshold)
	clients := []model.Client{{UUID: "a", PublicKey: "K1", ConnectionStatus: true}}

	assert.Empty(t, m.Evaluate(time.Now(), nil, clients))
}

func TestConnectedThreshold(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := New(30 * time.Second)

	assert.True(t, m.Connected(now, now.Add(-29*time.Second)))
	assert.False(t, m.Connected(now, now.Add(-30*time.Second)))
	assert.False(t, m.Connected(now, time.Time{}))
}
