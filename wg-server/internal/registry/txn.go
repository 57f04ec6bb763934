package registry

import (
	"wg-lifecycle/wg-server/internal/model"
)

// Txn is the registry as seen by a reconciliation pass holding the lock.
// It must not be used after the Exclusive callback returns.
type Txn struct {
	r *Registry
}

// Exclusive runs fn with the registry locked. Admin operations block until
// it returns.
func (r *Registry) Exclusive(fn func(tx *Txn) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&Txn{r: r})
}

func (tx *Txn) Server() model.Server {
	return tx.r.server
}

func (tx *Txn) Clients() []model.Client {
	return tx.r.snapshot()
}

// ApplyAccountStatus writes lifecycle results back by id and returns how
// many records changed. Ids that no longer exist are skipped.
func (tx *Txn) ApplyAccountStatus(changes []model.StatusChange) int {
	return tx.apply(changes, func(c *model.Client) *bool { return &c.AccountStatus })
}

// ApplyConnectionStatus writes connection monitor results back by id.
func (tx *Txn) ApplyConnectionStatus(changes []model.StatusChange) int {
	return tx.apply(changes, func(c *model.Client) *bool { return &c.ConnectionStatus })
}

func (tx *Txn) apply(changes []model.StatusChange, status func(*model.Client) *bool) int {
	n := 0
	for _, ch := range changes {
		c, ok := tx.r.clients[ch.ID]
		if !ok {
			continue
		}
		if dst := status(c); *dst != ch.Value {
			*dst = ch.Value
			n++
		}
	}
	if n > 0 {
		tx.r.dirty = true
	}
	return n
}

// Dirty reports whether there are changes not yet saved.
func (tx *Txn) Dirty() bool {
	return tx.r.dirty
}

// Persist saves the snapshot if it is dirty.
func (tx *Txn) Persist() error {
	return tx.r.persist()
}
