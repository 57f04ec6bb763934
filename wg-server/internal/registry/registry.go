// Package registry holds the server and client records in memory and is
// the only writer of them.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"wg-lifecycle/wg-server/internal/model"
)

const (
	sectionClient = "client"
	sectionServer = "server"
)

const DefaultPeerTimeout = 5 * time.Second

// PeerRemover takes a peer off the live interface.
type PeerRemover interface {
	RemovePeer(ctx context.Context, iface, publicKey string) error
}

// Saver persists a full snapshot.
type Saver interface {
	Save(server model.Server, clients []model.Client) error
}

type Config struct {
	Server  model.Server
	Clients []model.Client

	Peers       PeerRemover
	PeerTimeout time.Duration
	Saver       Saver
	Keys        model.KeyGenerator
	NewID       model.IDGenerator
	Now         func() time.Time
	Log         logrus.FieldLogger
}

// Registry guards every record with one mutex. Reconciliation passes take
// it through Exclusive for their whole duration.
type Registry struct {
	mu      sync.Mutex
	server  model.Server
	clients map[string]*model.Client
	order   []string
	dirty   bool

	peers       PeerRemover
	peerTimeout time.Duration
	saver       Saver
	keys        model.KeyGenerator
	newID       model.IDGenerator
	now         func() time.Time
	validate    *validator.Validate
	log         logrus.FieldLogger
}

func New(cfg Config) *Registry {
	r := &Registry{
		server:      cfg.Server,
		clients:     make(map[string]*model.Client, len(cfg.Clients)),
		order:       make([]string, 0, len(cfg.Clients)),
		peers:       cfg.Peers,
		peerTimeout: cfg.PeerTimeout,
		saver:       cfg.Saver,
		keys:        cfg.Keys,
		newID:       cfg.NewID,
		now:         cfg.Now,
		validate:    model.NewValidator(),
		log:         cfg.Log,
	}
	if r.peerTimeout <= 0 {
		r.peerTimeout = DefaultPeerTimeout
	}
	if r.keys == nil {
		r.keys = GenerateKeyPair
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	for i := range cfg.Clients {
		c := cfg.Clients[i]
		r.clients[c.UUID] = &c
		r.order = append(r.order, c.UUID)
	}
	return r
}

// GenerateKeyPair returns a new Curve25519 key pair in WireGuard's base64
// form.
func GenerateKeyPair() (string, string, error) {
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate private key: %w", err)
	}
	return priv.String(), priv.PublicKey().String(), nil
}

func (r *Registry) Server() model.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.server
}

func (r *Registry) Get(id string) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return model.Client{}, &model.NotFoundError{ID: id}
	}
	return *c, nil
}

// List returns a copy of every client in creation order.
func (r *Registry) List() []model.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Create adds a client with both derived statuses false. The identifier and
// creation date are always assigned here.
func (r *Registry) Create(ctx context.Context, in model.NewClient) (model.Client, error) {
	if err := r.validate.Struct(in); err != nil {
		return model.Client{}, model.ValidationFromValidator(sectionClient, err)
	}

	release, expiration, err := schedule(in.ReleaseDate, in.ExpirationDate, model.MinTime, model.MaxTime)
	if err != nil {
		return model.Client{}, err
	}

	priv, pub, err := r.resolveKeys(in.PrivateKey, in.PublicKey)
	if err != nil {
		return model.Client{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if pub == r.server.PublicKey || r.keyInUse(pub) {
		return model.Client{}, &model.ConflictError{Field: "public_key", Value: pub}
	}

	id := r.newID()
	for r.clients[id] != nil {
		id = r.newID()
	}

	c := &model.Client{
		UUID:                 id,
		PrivateKey:           priv,
		PublicKey:            pub,
		Login:                in.Login,
		FullName:             in.FullName,
		IP:                   in.IP,
		AdministrativeStatus: in.AdministrativeStatus,
		CreationDate:         model.Canonical(r.now()),
		ReleaseDate:          release,
		ExpirationDate:       expiration,
		AllowedIPs:           in.AllowedIPs,
		DNS:                  in.DNS,
	}
	r.clients[id] = c
	r.order = append(r.order, id)
	r.dirty = true

	r.log.WithFields(logrus.Fields{"id": id, "login": c.Login}).Info("client created")
	return *c, r.persist()
}

// Update changes the administrator-owned fields of a client. Setting a
// read-only field is an error, and nothing is changed.
func (r *Registry) Update(ctx context.Context, id string, patch model.ClientPatch) (model.Client, error) {
	if err := readOnly(patch); err != nil {
		return model.Client{}, err
	}
	if err := r.validate.Struct(patch); err != nil {
		return model.Client{}, model.ValidationFromValidator(sectionClient, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return model.Client{}, &model.NotFoundError{ID: id}
	}

	release, expiration, err := schedule(patch.ReleaseDate, patch.ExpirationDate, c.ReleaseDate, c.ExpirationDate)
	if err != nil {
		return model.Client{}, err
	}

	next := *c
	if patch.AdministrativeStatus != nil {
		next.AdministrativeStatus = *patch.AdministrativeStatus
	}
	if patch.FullName != nil {
		next.FullName = *patch.FullName
	}
	if patch.AllowedIPs != nil {
		next.AllowedIPs = *patch.AllowedIPs
	}
	if patch.DNS != nil {
		next.DNS = *patch.DNS
	}
	next.ReleaseDate = release
	next.ExpirationDate = expiration

	// A live peer keeps its old allowed IPs until it is added again.
	if next.AccountStatus && next.AllowedIPs != c.AllowedIPs {
		r.removePeer(ctx, c.PublicKey)
	}

	*c = next
	r.dirty = true
	r.log.WithField("id", id).Info("client updated")
	return *c, r.persist()
}

// Remove deletes a client. An active client's peer is removed from the
// interface first; if that fails the record is still deleted and the stale
// peer is left for the next pass.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return &model.NotFoundError{ID: id}
	}
	if c.AccountStatus {
		r.removePeer(ctx, c.PublicKey)
	}

	delete(r.clients, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.dirty = true
	r.log.WithFields(logrus.Fields{"id": id, "login": c.Login}).Info("client removed")
	return r.persist()
}

// UpdateServer changes the endpoint, public port and hooks. An empty
// endpoint string clears it; at least one endpoint must remain.
func (r *Registry) UpdateServer(patch model.ServerPatch) (model.Server, error) {
	if err := r.validate.Struct(patch); err != nil {
		return model.Server{}, model.ValidationFromValidator(sectionServer, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.server
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&next.EndpointDNS, patch.EndpointDNS)
	set(&next.EndpointIP, patch.EndpointIP)
	set(&next.PreUp, patch.PreUp)
	set(&next.PostUp, patch.PostUp)
	set(&next.PreDown, patch.PreDown)
	set(&next.PostDown, patch.PostDown)
	if patch.PublicListenPort != nil {
		next.PublicListenPort = *patch.PublicListenPort
	}
	if next.EndpointDNS == "" && next.EndpointIP == "" {
		return model.Server{}, &model.ValidationError{Section: sectionServer, Msg: `needs one of "endpoint_dns" or "endpoint_ip"`}
	}

	r.server = next
	r.dirty = true
	r.log.WithField("iface", next.InterfaceName).Info("server updated")
	return next, r.persist()
}

// resolveKeys derives the public key from a supplied private key, and
// generates a pair when neither is given.
func (r *Registry) resolveKeys(priv, pub string) (string, string, error) {
	if priv == "" {
		if pub != "" {
			return "", pub, nil
		}
		priv, pub, err := r.keys()
		if err != nil {
			return "", "", fmt.Errorf("generate client keys: %w", err)
		}
		return priv, pub, nil
	}

	key, err := wgtypes.ParseKey(priv)
	if err != nil {
		return "", "", &model.ValidationError{Section: sectionClient, Field: "private_key", Msg: "must be a base64 WireGuard key"}
	}
	derived := key.PublicKey().String()
	if pub != "" && pub != derived {
		return "", "", &model.ValidationError{Section: sectionClient, Field: "public_key", Msg: "does not belong to private_key"}
	}
	return priv, derived, nil
}

func (r *Registry) keyInUse(pub string) bool {
	for _, c := range r.clients {
		if c.PublicKey == pub {
			return true
		}
	}
	return false
}

func (r *Registry) removePeer(ctx context.Context, publicKey string) {
	if r.peers == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, r.peerTimeout)
	defer cancel()
	if err := r.peers.RemovePeer(callCtx, r.server.InterfaceName, publicKey); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"iface": r.server.InterfaceName,
			"peer":  publicKey,
		}).Warn("remove peer failed, next pass retries")
	}
}

// persist saves the snapshot if anything changed since the last save. On
// failure the change stays in memory and the dirty flag keeps it pending.
func (r *Registry) persist() error {
	if !r.dirty || r.saver == nil {
		return nil
	}
	if err := r.saver.Save(r.server, r.snapshot()); err != nil {
		return err
	}
	r.dirty = false
	return nil
}

func (r *Registry) snapshot() []model.Client {
	out := make([]model.Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.clients[id])
	}
	return out
}

func readOnly(p model.ClientPatch) error {
	field := ""
	switch {
	case p.UUID != nil:
		field = "uuid"
	case p.CreationDate != nil:
		field = "creation_date"
	case p.AccountStatus != nil:
		field = "account_status"
	case p.ConnectionStatus != nil:
		field = "connection_status"
	default:
		return nil
	}
	return &model.ValidationError{Section: sectionClient, Field: field, Msg: "is read-only"}
}

// schedule resolves the optional release and expiration dates against
// their current values.
func schedule(release, expiration *time.Time, curRelease, curExpiration time.Time) (time.Time, time.Time, error) {
	r, e := curRelease, curExpiration
	if release != nil {
		r = model.Canonical(*release)
	}
	if expiration != nil {
		e = model.Canonical(*expiration)
	}
	if r.After(e) {
		return time.Time{}, time.Time{}, &model.ValidationError{Section: sectionClient, Field: "release_date", Msg: "must not be after expiration_date"}
	}
	return r, e, nil
}
