package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"wg-lifecycle/wg-server/internal/model"
)

const DefaultDir = "/etc/wireguard"

const (
	DefaultInterfaceName = "wg0"
	DefaultListenPort    = 55255
	DefaultIP            = "10.0.30.1"
	DefaultNetwork       = "10.0.30.0/24"
	DefaultEndpointIP    = "127.0.0.1"
)

// Store reads and writes one JSON document per interface, named
// <dir>/<interface>.json.
type Store struct {
	dir string
}

func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

func (s *Store) Path(iface string) string {
	return filepath.Join(s.dir, iface+".json")
}

func (s *Store) Exists(iface string) (bool, error) {
	_, err := os.Stat(s.Path(iface))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat config: %w", err)
}

// Load reads and validates the document for iface. Nothing is returned
// unless the whole document is valid.
func (s *Store) Load(iface string) (model.Server, []model.Client, error) {
	f, err := os.Open(s.Path(iface))
	if err != nil {
		return model.Server{}, nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	server, clients, err := Decode(f)
	if err != nil {
		return model.Server{}, nil, err
	}
	if server.InterfaceName != iface {
		return model.Server{}, nil, &model.ValidationError{
			Section: sectionServer,
			Field:   "interface_name",
			Msg:     fmt.Sprintf("is %q but the document belongs to %q", server.InterfaceName, iface),
		}
	}
	return server, clients, nil
}

// Save writes the snapshot to a temp file next to the target and renames it
// into place, so a crash leaves either the old or the new document.
func (s *Store) Save(server model.Server, clients []model.Client) error {
	path := s.Path(server.InterfaceName)

	var buf bytes.Buffer
	if err := Encode(&buf, server, clients); err != nil {
		return &model.PersistenceError{Path: path, Err: err}
	}

	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return &model.PersistenceError{Path: path, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace: %w", err)
	}
	return nil
}

// Decode parses and validates a whole document.
func Decode(r io.Reader) (model.Server, []model.Client, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return model.Server{}, nil, &model.ValidationError{Msg: fmt.Sprintf("parse config: %v", err)}
	}

	for _, key := range []string{sectionServer, sectionClients} {
		if _, ok := doc[key]; !ok {
			return model.Server{}, nil, &model.ValidationError{Section: key, Msg: "is missing"}
		}
	}
	serverObj, ok := doc[sectionServer].(map[string]any)
	if !ok {
		return model.Server{}, nil, &model.ValidationError{Section: sectionServer, Msg: "must be object type"}
	}
	clientArr, ok := doc[sectionClients].([]any)
	if !ok {
		return model.Server{}, nil, &model.ValidationError{Section: sectionClients, Msg: "must be array type"}
	}

	server, err := decodeSection(sectionServer, serverFields, serverObj)
	if err != nil {
		return model.Server{}, nil, err
	}
	if err := validateServer(server); err != nil {
		return model.Server{}, nil, err
	}

	clients := make([]model.Client, 0, len(clientArr))
	seenIDs := make(map[string]struct{}, len(clientArr))
	seenKeys := make(map[string]struct{}, len(clientArr))
	for i, raw := range clientArr {
		section := fmt.Sprintf("%s[%d]", sectionClients, i)
		obj, ok := raw.(map[string]any)
		if !ok {
			return model.Server{}, nil, &model.ValidationError{Section: section, Msg: "must be object type"}
		}
		c, err := decodeSection(section, clientFields, obj)
		if err != nil {
			return model.Server{}, nil, err
		}
		if err := validateClient(section, c); err != nil {
			return model.Server{}, nil, err
		}
		if _, dup := seenIDs[c.UUID]; dup {
			return model.Server{}, nil, &model.ValidationError{Section: section, Field: "uuid", Msg: "is duplicated"}
		}
		if _, dup := seenKeys[c.PublicKey]; dup {
			return model.Server{}, nil, &model.ValidationError{Section: section, Field: "public_key", Msg: "is duplicated"}
		}
		seenIDs[c.UUID] = struct{}{}
		seenKeys[c.PublicKey] = struct{}{}
		clients = append(clients, c)
	}

	return server, clients, nil
}

// Encode writes the document with the same field layout Decode expects.
func Encode(w io.Writer, server model.Server, clients []model.Client) error {
	arr := make([]orderedObject, 0, len(clients))
	for i := range clients {
		arr = append(arr, encodeSection(clientFields, &clients[i]))
	}
	doc := orderedObject{
		{key: sectionServer, value: encodeSection(serverFields, &server)},
		{key: sectionClients, value: arr},
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func validateServer(s model.Server) error {
	invalid := func(field, msg string) error {
		return &model.ValidationError{Section: sectionServer, Field: field, Msg: msg}
	}
	if s.InterfaceName == "" {
		return invalid("interface_name", "must not be empty")
	}
	if net.ParseIP(s.IP) == nil {
		return invalid("ip", "must be an IP address")
	}
	if _, _, err := net.ParseCIDR(s.Network); err != nil {
		return invalid("network", "must be CIDR")
	}
	if s.EndpointDNS == "" && s.EndpointIP == "" {
		return &model.ValidationError{Section: sectionServer, Msg: `needs one of "endpoint_dns" or "endpoint_ip"`}
	}
	if s.EndpointIP != "" && net.ParseIP(s.EndpointIP) == nil {
		return invalid("endpoint_ip", "must be an IP address")
	}
	if !model.ValidKey(s.PrivateKey) {
		return invalid("private_key", "must be a base64 WireGuard key")
	}
	if !model.ValidKey(s.PublicKey) {
		return invalid("public_key", "must be a base64 WireGuard key")
	}
	return nil
}

func validateClient(section string, c model.Client) error {
	invalid := func(field, msg string) error {
		return &model.ValidationError{Section: section, Field: field, Msg: msg}
	}
	if c.UUID == "" {
		return invalid("uuid", "must not be empty")
	}
	if c.PrivateKey != "" && !model.ValidKey(c.PrivateKey) {
		return invalid("private_key", "must be a base64 WireGuard key")
	}
	if !model.ValidKey(c.PublicKey) {
		return invalid("public_key", "must be a base64 WireGuard key")
	}
	if net.ParseIP(c.IP) == nil {
		return invalid("ip", "must be an IP address")
	}
	if _, err := model.ParseAllowedIPs(c.AllowedIPs); err != nil {
		return invalid("allowed_ips", "must be a comma-separated list of CIDRs")
	}
	if c.DNS != "" && net.ParseIP(c.DNS) == nil {
		return invalid("dns", "must be an IP address")
	}
	if c.ReleaseDate.After(c.ExpirationDate) {
		return invalid("release_date", "must not be after expiration_date")
	}
	return nil
}
