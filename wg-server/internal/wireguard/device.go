// Package wireguard talks to the kernel WireGuard interface through wgctrl
// and netlink.
package wireguard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"wg-lifecycle/wg-server/internal/model"
)

// Device implements the peer and interface operations the daemon needs.
// Every call opens its own wgctrl client.
type Device struct {
	log logrus.FieldLogger
}

func NewDevice(log logrus.FieldLogger) *Device {
	return &Device{log: log}
}

func (d *Device) ListConfiguredPeers(ctx context.Context, iface string) ([]string, error) {
	dev, err := d.device(ctx, iface)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(dev.Peers))
	for _, p := range dev.Peers {
		keys = append(keys, p.PublicKey.String())
	}
	return keys, nil
}

func (d *Device) AddPeer(ctx context.Context, iface, publicKey, allowedIPs string) error {
	key, err := wgtypes.ParseKey(publicKey)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}
	allowed, err := model.ParseAllowedIPs(allowedIPs)
	if err != nil {
		return fmt.Errorf("parse allowed_ips: %w", err)
	}
	return d.configure(ctx, iface, wgtypes.PeerConfig{
		PublicKey:         key,
		ReplaceAllowedIPs: true,
		AllowedIPs:        allowed,
	})
}

func (d *Device) RemovePeer(ctx context.Context, iface, publicKey string) error {
	key, err := wgtypes.ParseKey(publicKey)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}
	return d.configure(ctx, iface, wgtypes.PeerConfig{
		PublicKey: key,
		Remove:    true,
	})
}

// LastHandshakeTimes returns the latest handshake per peer. Peers that
// never completed one map to the zero time.
func (d *Device) LastHandshakeTimes(ctx context.Context, iface string) (map[string]time.Time, error) {
	dev, err := d.device(ctx, iface)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(dev.Peers))
	for _, p := range dev.Peers {
		ts := p.LastHandshakeTime
		if ts.Unix() <= 0 {
			ts = time.Time{}
		}
		out[p.PublicKey.String()] = ts
	}
	return out, nil
}

func (d *Device) device(ctx context.Context, iface string) (*wgtypes.Device, error) {
	var dev *wgtypes.Device
	err := d.do(ctx, func(c *wgctrl.Client) error {
		var err error
		dev, err = c.Device(iface)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read device %s: %w", iface, err)
	}
	return dev, nil
}

func (d *Device) configure(ctx context.Context, iface string, peer wgtypes.PeerConfig) error {
	err := d.do(ctx, func(c *wgctrl.Client) error {
		return c.ConfigureDevice(iface, wgtypes.Config{Peers: []wgtypes.PeerConfig{peer}})
	})
	if err != nil {
		return fmt.Errorf("configure device %s: %w", iface, err)
	}
	return nil
}

// do runs fn on a fresh wgctrl client and gives up when ctx ends. wgctrl
// has no context support, so an abandoned call finishes in the background.
func (d *Device) do(ctx context.Context, fn func(*wgctrl.Client) error) error {
	done := make(chan error, 1)
	go func() {
		client, err := wgctrl.New()
		if err != nil {
			done <- fmt.Errorf("wgctrl init: %w", err)
			return
		}
		defer client.Close()
		done <- fn(client)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
