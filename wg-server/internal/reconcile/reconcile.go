// Package reconcile brings the peer set of a live interface in line with
// the set of peers that should be there.
package reconcile

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wg-lifecycle/wg-server/internal/model"
)

const DefaultPeerTimeout = 5 * time.Second

// PeerController is the part of the interface the reconciler drives.
type PeerController interface {
	ListConfiguredPeers(ctx context.Context, iface string) ([]string, error)
	AddPeer(ctx context.Context, iface, publicKey, allowedIPs string) error
	RemovePeer(ctx context.Context, iface, publicKey string) error
}

// DesiredPeer is a peer that should be configured on the interface.
type DesiredPeer struct {
	PublicKey  string
	AllowedIPs string
}

// Result lists what one reconciliation did. Added and Removed hold only
// keys whose call succeeded.
type Result struct {
	Added    []string
	Removed  []string
	Failures []*model.PeerError
	// ListErr is set when the live peers could not be read; nothing else
	// was attempted.
	ListErr *model.PeerError
}

func (r Result) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Diff returns the keys to remove (live but not desired) and the peers to
// add (desired but not live), both sorted by public key.
func Diff(live []string, desired []DesiredPeer) ([]string, []DesiredPeer) {
	want := make(map[string]struct{}, len(desired))
	for _, p := range desired {
		want[p.PublicKey] = struct{}{}
	}
	have := make(map[string]struct{}, len(live))
	for _, k := range live {
		have[k] = struct{}{}
	}

	var remove []string
	for k := range have {
		if _, ok := want[k]; !ok {
			remove = append(remove, k)
		}
	}
	var add []DesiredPeer
	seen := make(map[string]struct{}, len(desired))
	for _, p := range desired {
		if _, ok := have[p.PublicKey]; ok {
			continue
		}
		if _, dup := seen[p.PublicKey]; dup {
			continue
		}
		seen[p.PublicKey] = struct{}{}
		add = append(add, p)
	}

	sort.Strings(remove)
	sort.Slice(add, func(i, j int) bool { return add[i].PublicKey < add[j].PublicKey })
	return remove, add
}

type Reconciler struct {
	peers   PeerController
	timeout time.Duration
	workers int
	log     logrus.FieldLogger
}

type Option func(*Reconciler)

// WithTimeout bounds every single call to the interface.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithWorkers sets how many calls of one phase may run at once.
func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

func New(peers PeerController, log logrus.FieldLogger, opts ...Option) *Reconciler {
	r := &Reconciler{
		peers:   peers,
		timeout: DefaultPeerTimeout,
		workers: 1,
		log:     log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile removes stale peers, then adds missing ones. A failing key does
// not stop the others.
func (r *Reconciler) Reconcile(ctx context.Context, iface string, desired []DesiredPeer) Result {
	var res Result

	live, err := r.list(ctx, iface)
	if err != nil {
		res.ListErr = err
		r.log.WithError(err).WithField("iface", iface).Warn("list peers failed")
		return res
	}

	remove, add := Diff(live, desired)
	if len(remove) == 0 && len(add) == 0 {
		return res
	}

	var mu sync.Mutex
	record := func(ok *[]string, key string, err *model.PeerError) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Failures = append(res.Failures, err)
			return
		}
		*ok = append(*ok, key)
	}

	r.run(len(remove), func(i int) {
		key := remove[i]
		err := r.call(ctx, model.OpRemovePeer, key, func(ctx context.Context) error {
			return r.peers.RemovePeer(ctx, iface, key)
		})
		record(&res.Removed, key, err)
	})
	r.run(len(add), func(i int) {
		p := add[i]
		err := r.call(ctx, model.OpAddPeer, p.PublicKey, func(ctx context.Context) error {
			return r.peers.AddPeer(ctx, iface, p.PublicKey, p.AllowedIPs)
		})
		record(&res.Added, p.PublicKey, err)
	})

	sort.Strings(res.Removed)
	sort.Strings(res.Added)
	for _, f := range res.Failures {
		r.log.WithFields(logrus.Fields{
			"iface": iface,
			"op":    f.Op,
			"peer":  f.PublicKey,
			"kind":  f.Kind,
		}).WithError(f.Err).Warn("peer call failed")
	}
	r.log.WithFields(logrus.Fields{
		"iface":    iface,
		"added":    len(res.Added),
		"removed":  len(res.Removed),
		"failures": len(res.Failures),
	}).Info("peers reconciled")
	return res
}

func (r *Reconciler) run(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Reconciler) list(ctx context.Context, iface string) ([]string, *model.PeerError) {
	var live []string
	err := r.call(ctx, model.OpListPeers, "", func(ctx context.Context) error {
		var err error
		live, err = r.peers.ListConfiguredPeers(ctx, iface)
		return err
	})
	return live, err
}

func (r *Reconciler) call(ctx context.Context, op, key string, fn func(context.Context) error) *model.PeerError {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	return &model.PeerError{Kind: Classify(callCtx, err), Op: op, PublicKey: key, Err: err}
}

// Classify maps an interface call error to a PeerErrorKind.
func Classify(ctx context.Context, err error) model.PeerErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.PeerTimeout
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return model.PeerUnavailable
	default:
		return model.PeerRejected
	}
}
