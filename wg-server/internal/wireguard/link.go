package wireguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"wg-lifecycle/wg-server/internal/model"
)

// InterfaceUp runs pre_up, creates and configures the link, brings it up and
// runs post_up. Peers are not touched.
func (d *Device) InterfaceUp(ctx context.Context, server model.Server) error {
	if os.Geteuid() != 0 {
		return errors.New("wg-server must run as root")
	}

	priv, err := wgtypes.ParseKey(server.PrivateKey)
	if err != nil {
		return fmt.Errorf("parse server private key: %w", err)
	}
	addr, err := interfaceAddress(server.IP, server.Network)
	if err != nil {
		return err
	}

	if err := d.hook(ctx, "pre_up", server.PreUp); err != nil {
		return err
	}

	link, err := ensureWireGuardLink(server.InterfaceName)
	if err != nil {
		return err
	}
	if err := ensureAddress(link, addr); err != nil {
		return err
	}

	err = d.do(ctx, func(c *wgctrl.Client) error {
		port := int(server.ListenPort)
		return c.ConfigureDevice(server.InterfaceName, wgtypes.Config{
			PrivateKey: &priv,
			ListenPort: &port,
		})
	})
	if err != nil {
		return fmt.Errorf("configure device: %w", err)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("link set up: %w", err)
	}

	if err := d.hook(ctx, "post_up", server.PostUp); err != nil {
		return err
	}
	d.log.WithField("iface", server.InterfaceName).Info("interface up")
	return nil
}

// InterfaceDown runs pre_down, deletes the link and runs post_down. A link
// that is already gone is not an error.
func (d *Device) InterfaceDown(ctx context.Context, server model.Server) error {
	if os.Geteuid() != 0 {
		return errors.New("wg-server must run as root")
	}

	if err := d.hook(ctx, "pre_down", server.PreDown); err != nil {
		return err
	}

	link, err := netlink.LinkByName(server.InterfaceName)
	if err == nil {
		if err := netlink.LinkDel(link); err != nil {
			return fmt.Errorf("link del: %w", err)
		}
	} else {
		var notFound netlink.LinkNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("link lookup: %w", err)
		}
	}

	if err := d.hook(ctx, "post_down", server.PostDown); err != nil {
		return err
	}
	d.log.WithField("iface", server.InterfaceName).Info("interface down")
	return nil
}

// hook runs a configured shell command. Empty commands are skipped.
func (d *Device) hook(ctx context.Context, name, command string) error {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s hook: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	d.log.WithField("hook", name).WithField("output", strings.TrimSpace(string(out))).Debug("hook ran")
	return nil
}

func ensureWireGuardLink(name string) (netlink.Link, error) {
	link, err := netlink.LinkByName(name)
	if err == nil {
		if link.Type() != "wireguard" {
			return nil, fmt.Errorf("link %s exists but is not wireguard", name)
		}
		return link, nil
	}

	var notFound netlink.LinkNotFoundError
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("link lookup: %w", err)
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	wgLink := &netlink.Wireguard{LinkAttrs: attrs}
	if err := netlink.LinkAdd(wgLink); err != nil {
		return nil, fmt.Errorf("link add: %w", err)
	}

	return wgLink, nil
}

func ensureAddress(link netlink.Link, ipNet *net.IPNet) error {
	addr := &netlink.Addr{IPNet: ipNet}
	if err := netlink.AddrAdd(link, addr); err != nil {
		if errors.Is(err, syscall.EEXIST) {
			return nil
		}
		return fmt.Errorf("addr add: %w", err)
	}
	return nil
}

// interfaceAddress combines the server ip with the prefix length of its
// network, e.g. 10.0.30.1 and 10.0.30.0/24 give 10.0.30.1/24.
func interfaceAddress(ip, network string) (*net.IPNet, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, fmt.Errorf("parse server ip %q", ip)
	}
	_, ipNet, err := net.ParseCIDR(network)
	if err != nil {
		return nil, fmt.Errorf("parse server network: %w", err)
	}
	if !ipNet.Contains(addr) {
		return nil, fmt.Errorf("server ip %s is outside network %s", ip, network)
	}
	if v4 := addr.To4(); v4 != nil && len(ipNet.IP) == net.IPv4len {
		addr = v4
	}
	return &net.IPNet{IP: addr, Mask: ipNet.Mask}, nil
}
