// Package syncer runs reconciliation passes over the registry, once on
// demand or periodically.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wg-lifecycle/wg-server/internal/journal"
	"wg-lifecycle/wg-server/internal/lifecycle"
	"wg-lifecycle/wg-server/internal/metrics"
	"wg-lifecycle/wg-server/internal/model"
	"wg-lifecycle/wg-server/internal/monitor"
	"wg-lifecycle/wg-server/internal/reconcile"
	"wg-lifecycle/wg-server/internal/registry"
)

const DefaultInterval = 30 * time.Second

// ErrPassInProgress is returned when a pass is requested while another one
// is still running.
var ErrPassInProgress = errors.New("reconciliation pass already in progress")

// Device is the live interface as the syncer uses it.
type Device interface {
	reconcile.PeerController
	LastHandshakeTimes(ctx context.Context, iface string) (map[string]time.Time, error)
	InterfaceUp(ctx context.Context, server model.Server) error
	InterfaceDown(ctx context.Context, server model.Server) error
}

type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Registry    *registry.Registry
	Device      Device
	Reconciler  *reconcile.Reconciler
	Monitor     *monitor.Monitor
	Interval    time.Duration
	PeerTimeout time.Duration
	// Journal and Metrics are optional.
	Journal   Journal
	Retention time.Duration
	Metrics   *metrics.Metrics
	Now       func() time.Time
	Log       logrus.FieldLogger
}

type Syncer struct {
	reg         *registry.Registry
	dev         Device
	rec         *reconcile.Reconciler
	mon         *monitor.Monitor
	interval    time.Duration
	peerTimeout time.Duration
	journal     Journal
	retention   time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time
	log         logrus.FieldLogger

	running sync.Mutex
}

func New(cfg Config) *Syncer {
	s := &Syncer{
		reg:         cfg.Registry,
		dev:         cfg.Device,
		rec:         cfg.Reconciler,
		mon:         cfg.Monitor,
		interval:    cfg.Interval,
		peerTimeout: cfg.PeerTimeout,
		journal:     cfg.Journal,
		retention:   cfg.Retention,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		log:         cfg.Log,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.peerTimeout <= 0 {
		s.peerTimeout = reconcile.DefaultPeerTimeout
	}
	if s.mon == nil {
		s.mon = monitor.New(monitor.DefaultThreshold)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.rec == nil {
		s.rec = reconcile.New(s.dev, s.log, reconcile.WithTimeout(s.peerTimeout))
	}
	return s
}

// PassResult reports everything one pass did and everything that failed.
type PassResult struct {
	StartedAt         time.Time
	Duration          time.Duration
	Peers             reconcile.Result
	AccountChanges    int
	ConnectionChanges int
	HandshakeErr      *model.PeerError
	Saved             bool
	SaveErr           error
}

// Degraded reports whether any step of the pass failed.
func (r PassResult) Degraded() bool {
	return r.Peers.ListErr != nil || len(r.Peers.Failures) > 0 || r.HandshakeErr != nil || r.SaveErr != nil
}

// Failures renders every failed step of the pass.
func (r PassResult) Failures() []string {
	var out []string
	if r.Peers.ListErr != nil {
		out = append(out, r.Peers.ListErr.Error())
	}
	for _, f := range r.Peers.Failures {
		out = append(out, f.Error())
	}
	if r.HandshakeErr != nil {
		out = append(out, r.HandshakeErr.Error())
	}
	return out
}

// Run performs a pass right away and then one per interval until ctx ends.
func (s *Syncer) Run(ctx context.Context) error {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Syncer) tick(ctx context.Context) {
	if _, err := s.Pass(ctx); err != nil {
		s.log.WithError(err).Warn("pass skipped")
	}
	if s.journal != nil && s.retention > 0 {
		if _, err := s.journal.Prune(ctx, s.now().Add(-s.retention)); err != nil {
			s.log.WithError(err).Warn("journal prune failed")
		}
	}
}

// Pass runs one reconciliation pass: peers against the current account
// statuses, then the lifecycle controller, then the connection monitor,
// then a save if anything changed. Lifecycle changes reach the interface
// on the following pass.
//
// The only error returned is ErrPassInProgress; failures inside the pass
// are reported in the result.
func (s *Syncer) Pass(ctx context.Context) (PassResult, error) {
	if !s.running.TryLock() {
		s.countPass("skipped")
		return PassResult{}, ErrPassInProgress
	}
	defer s.running.Unlock()

	res := PassResult{StartedAt: s.now()}
	_ = s.reg.Exclusive(func(tx *registry.Txn) error {
		server := tx.Server()
		clients := tx.Clients()

		res.Peers = s.rec.Reconcile(ctx, server.InterfaceName, desiredPeers(clients))

		now := s.now()
		res.AccountChanges = tx.ApplyAccountStatus(lifecycle.Evaluate(now, clients))

		handshakes, err := s.handshakes(ctx, server.InterfaceName)
		if err != nil {
			res.HandshakeErr = err
		} else {
			res.ConnectionChanges = tx.ApplyConnectionStatus(s.mon.Evaluate(now, handshakes, clients))
		}

		if tx.Dirty() {
			if err := tx.Persist(); err != nil {
				res.SaveErr = err
			} else {
				res.Saved = true
			}
		}

		s.observeClients(tx.Clients())
		return nil
	})
	res.Duration = s.now().Sub(res.StartedAt)

	s.report(ctx, res)
	return res, nil
}

// Up brings the interface up and adds a peer for every active client.
func (s *Syncer) Up(ctx context.Context) error {
	s.running.Lock()
	defer s.running.Unlock()
	return s.reg.Exclusive(func(tx *registry.Txn) error {
		return s.up(ctx, tx)
	})
}

// Down takes the interface down.
func (s *Syncer) Down(ctx context.Context) error {
	s.running.Lock()
	defer s.running.Unlock()
	return s.reg.Exclusive(func(tx *registry.Txn) error {
		return s.dev.InterfaceDown(ctx, tx.Server())
	})
}

// Reboot takes the interface down and brings it back up.
func (s *Syncer) Reboot(ctx context.Context) error {
	s.running.Lock()
	defer s.running.Unlock()
	return s.reg.Exclusive(func(tx *registry.Txn) error {
		if err := s.dev.InterfaceDown(ctx, tx.Server()); err != nil {
			return err
		}
		return s.up(ctx, tx)
	})
}

func (s *Syncer) up(ctx context.Context, tx *registry.Txn) error {
	server := tx.Server()
	if err := s.dev.InterfaceUp(ctx, server); err != nil {
		return fmt.Errorf("interface up: %w", err)
	}
	res := s.rec.Reconcile(ctx, server.InterfaceName, desiredPeers(tx.Clients()))
	s.observePeers(res)
	if res.ListErr != nil {
		return fmt.Errorf("add active peers: %w", res.ListErr)
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("add active peers: %d of %d failed", len(res.Failures), len(res.Failures)+len(res.Added))
	}
	return nil
}

func (s *Syncer) handshakes(ctx context.Context, iface string) (map[string]time.Time, *model.PeerError) {
	callCtx, cancel := context.WithTimeout(ctx, s.peerTimeout)
	defer cancel()
	hs, err := s.dev.LastHandshakeTimes(callCtx, iface)
	if err != nil {
		return nil, &model.PeerError{Kind: reconcile.Classify(callCtx, err), Op: model.OpHandshakes, Err: err}
	}
	return hs, nil
}

func desiredPeers(clients []model.Client) []reconcile.DesiredPeer {
	var out []reconcile.DesiredPeer
	for _, c := range clients {
		if c.AccountStatus {
			out = append(out, reconcile.DesiredPeer{PublicKey: c.PublicKey, AllowedIPs: c.AllowedIPs})
		}
	}
	return out
}

func (s *Syncer) report(ctx context.Context, res PassResult) {
	fields := logrus.Fields{
		"added":              len(res.Peers.Added),
		"removed":            len(res.Peers.Removed),
		"account_changes":    res.AccountChanges,
		"connection_changes": res.ConnectionChanges,
		"saved":              res.Saved,
		"duration":           res.Duration.String(),
	}
	if res.HandshakeErr != nil {
		s.log.WithError(res.HandshakeErr).Warn("handshake query failed")
	}
	if res.SaveErr != nil {
		s.log.WithError(res.SaveErr).Error("save failed, retrying next pass")
	}
	switch {
	case res.Degraded():
		s.log.WithFields(fields).Warn("pass degraded")
	case res.Peers.Changed():
		s.log.WithFields(fields).Info("peers changed")
	default:
		s.log.WithFields(fields).Debug("pass done")
	}

	if s.metrics != nil {
		outcome := "ok"
		if res.Degraded() {
			outcome = "degraded"
		}
		s.countPass(outcome)
		s.metrics.PassDuration.Observe(res.Duration.Seconds())
		s.metrics.StatusChanges.WithLabelValues("account").Add(float64(res.AccountChanges))
		s.metrics.StatusChanges.WithLabelValues("connection").Add(float64(res.ConnectionChanges))
		if res.SaveErr != nil {
			s.metrics.PersistFailures.Inc()
		}
		s.observePeers(res.Peers)
	}

	if s.journal != nil {
		entry := &journal.Entry{
			StartedAt:         res.StartedAt,
			DurationMillis:    res.Duration.Milliseconds(),
			Added:             len(res.Peers.Added),
			Removed:           len(res.Peers.Removed),
			AccountChanges:    res.AccountChanges,
			ConnectionChanges: res.ConnectionChanges,
			Failures:          strings.Join(res.Failures(), "; "),
			Saved:             res.Saved,
		}
		if res.SaveErr != nil {
			entry.SaveError = res.SaveErr.Error()
		}
		if err := s.journal.Record(ctx, entry); err != nil {
			s.log.WithError(err).Warn("journal record failed")
		}
	}
}

func (s *Syncer) countPass(outcome string) {
	if s.metrics != nil {
		s.metrics.Passes.WithLabelValues(outcome).Inc()
	}
}

func (s *Syncer) observePeers(res reconcile.Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.PeerOperations.WithLabelValues(model.OpAddPeer, "ok").Add(float64(len(res.Added)))
	s.metrics.PeerOperations.WithLabelValues(model.OpRemovePeer, "ok").Add(float64(len(res.Removed)))
	for _, f := range res.Failures {
		s.metrics.PeerOperations.WithLabelValues(f.Op, string(f.Kind)).Inc()
	}
}

func (s *Syncer) observeClients(clients []model.Client) {
	if s.metrics == nil {
		return
	}
	var active, connected int
	for _, c := range clients {
		if c.AccountStatus {
			active++
		}
		if c.ConnectionStatus {
			connected++
		}
	}
	s.metrics.Clients.WithLabelValues("total").Set(float64(len(clients)))
	s.metrics.Clients.WithLabelValues("active").Set(float64(active))
	s.metrics.Clients.WithLabelValues("connected").Set(float64(connected))
}
