// Package lifecycle derives a client's account status from its
// administrative status and its release/expiration schedule.
package lifecycle

import (
	"time"

	"wg-lifecycle/wg-server/internal/model"
)

// Next returns the account status a client should have at now.
//
//   - administratively disabled clients are always inactive
//   - an active account expires once now is past expiration
//   - an inactive account activates while release <= now <= expiration
func Next(now time.Time, admin, account bool, release, expiration time.Time) bool {
	if !admin {
		return false
	}
	if account {
		return !now.After(expiration)
	}
	return !now.Before(release) && !now.After(expiration)
}

// Evaluate returns the clients whose account status differs from Next.
func Evaluate(now time.Time, clients []model.Client) []model.StatusChange {
	var changes []model.StatusChange
	for _, c := range clients {
		next := Next(now, c.AdministrativeStatus, c.AccountStatus, c.ReleaseDate, c.ExpirationDate)
		if next != c.AccountStatus {
			changes = append(changes, model.StatusChange{ID: c.UUID, Value: next})
		}
	}
	return changes
}
