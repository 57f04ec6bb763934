package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wg-lifecycle/wg-server/internal/model"
)

func TestNext(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name       string
		admin      bool
		account    bool
		release    time.Time
		expiration time.Time
		want       bool
	}{
		{"admin off forces inactive inside window", false, true, past, future, false},
		{"admin off forces inactive without schedule", false, true, model.MinTime, model.MaxTime, false},
		{"admin off stays inactive", false, false, past, future, false},
		{"active expires", true, true, past, past.Add(time.Hour), false},
		{"active inside window stays active", true, true, past, future, true},
		{"active before release is not revoked", true, true, future, future.Add(time.Hour), true},
		{"inactive activates inside window", true, false, past, future, true},
		{"inactive activates with default schedule", true, false, model.MinTime, model.MaxTime, true},
		{"inactive waits for release", true, false, future, future.Add(time.Hour), false},
		{"inactive does not activate after expiration", true, false, past, past.Add(time.Hour), false},
		{"release boundary is inclusive", true, false, now, future, true},
		{"expiration boundary is inclusive", true, false, past, now, true},
		{"active at expiration boundary stays active", true, true, past, now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(now, tt.admin, tt.account, tt.release, tt.expiration)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clients := []model.Client{
		{UUID: "a", AdministrativeStatus: true, AccountStatus: false, ReleaseDate: model.MinTime, ExpirationDate: model.MaxTime},
		{UUID: "b", AdministrativeStatus: false, AccountStatus: true, ReleaseDate: model.MinTime, ExpirationDate: model.MaxTime},
		{UUID: "c", AdministrativeStatus: true, AccountStatus: true, ReleaseDate: model.MinTime, ExpirationDate: model.MaxTime},
		{UUID: "d", AdministrativeStatus: true, AccountStatus: true, ReleaseDate: model.MinTime, ExpirationDate: now.Add(-time.Second)},
	}

	changes := Evaluate(now, clients)

	assert.Equal(t, []model.StatusChange{
		{ID: "a", Value: true},
		{ID: "b", Value: false},
		{ID: "d", Value: false},
	}, changes)
}

func TestEvaluateNoChanges(t *testing.T) {
	now := time.Now()
	clients := []model.Client{
		{UUID: "a", AdministrativeStatus: false, AccountStatus: false},
	}
	assert.Empty(t, Evaluate(now, clients))
}
