package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"wg-lifecycle/wg-server/internal/config"
	"wg-lifecycle/wg-server/internal/journal"
	"wg-lifecycle/wg-server/internal/logging"
	"wg-lifecycle/wg-server/internal/metrics"
	"wg-lifecycle/wg-server/internal/monitor"
	"wg-lifecycle/wg-server/internal/reconcile"
	"wg-lifecycle/wg-server/internal/registry"
	"wg-lifecycle/wg-server/internal/store"
	"wg-lifecycle/wg-server/internal/syncer"
	"wg-lifecycle/wg-server/internal/wireguard"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
}

type app struct {
	cfg     config.Config
	log     logging.Logger
	reg     *registry.Registry
	syncer  *syncer.Syncer
	journal *journal.Journal
	promReg *prometheus.Registry
}

func loadConfig(opts *Options) (config.Config, error) {
	path := opts.ConfigPath
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config invalid: %w", err)
	}
	return cfg, nil
}

// newApp loads the configuration document (writing the defaults on first
// start) and wires the registry, device and syncer around it.
func newApp(opts *Options, withJournal bool) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	log := logging.New("wg-server", cfg.Log.Level)

	st := store.New(cfg.StateDir)
	server, clients, created, err := st.LoadOrInit(cfg.Interface, registry.GenerateKeyPair)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", st.Path(cfg.Interface), err)
	}
	if created {
		log.WithField("path", st.Path(cfg.Interface)).Info("wrote default configuration")
	}
	log.WithFields(logging.Fields{
		"iface":   server.InterfaceName,
		"clients": len(clients),
	}).Info("configuration loaded")

	dev := wireguard.NewDevice(log)
	reg := registry.New(registry.Config{
		Server:      server,
		Clients:     clients,
		Peers:       dev,
		PeerTimeout: cfg.Reconcile.PeerTimeout,
		Saver:       st,
		Log:         log,
	})

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	a := &app{cfg: cfg, log: log, reg: reg, promReg: promReg}
	scfg := syncer.Config{
		Registry: reg,
		Device:   dev,
		Reconciler: reconcile.New(dev, log,
			reconcile.WithTimeout(cfg.Reconcile.PeerTimeout),
			reconcile.WithWorkers(cfg.Reconcile.Workers),
		),
		Monitor:     monitor.New(cfg.Reconcile.HandshakeThreshold),
		Interval:    cfg.Reconcile.Interval,
		PeerTimeout: cfg.Reconcile.PeerTimeout,
		Metrics:     m,
		Log:         log,
	}
	if withJournal && cfg.Journal.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		a.journal = j
		scfg.Journal = j
		scfg.Retention = cfg.Journal.Retention
	}
	a.syncer = syncer.New(scfg)
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.WithError(err).Warn("close journal failed")
		}
	}
}
