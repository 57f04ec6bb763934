package store

import (
	"fmt"

	"wg-lifecycle/wg-server/internal/model"
)

// Default builds the server used when no document exists for iface yet.
func Default(iface string, keys model.KeyGenerator) (model.Server, error) {
	if iface == "" {
		iface = DefaultInterfaceName
	}
	priv, pub, err := keys()
	if err != nil {
		return model.Server{}, fmt.Errorf("generate server keys: %w", err)
	}
	return model.Server{
		InterfaceName:    iface,
		ListenPort:       DefaultListenPort,
		IP:               DefaultIP,
		Network:          DefaultNetwork,
		EndpointIP:       DefaultEndpointIP,
		PublicListenPort: DefaultListenPort,
		PrivateKey:       priv,
		PublicKey:        pub,
		PreUp:            "echo Wireguard PreUp",
		PostUp:           "echo Wireguard PostUp",
		PreDown:          "echo Wireguard PreDown",
		PostDown:         "echo Wireguard PostDown",
	}, nil
}

// LoadOrInit loads the document for iface, or writes and returns the
// defaults when there is none. A document that exists but is invalid is an
// error, never replaced.
func (s *Store) LoadOrInit(iface string, keys model.KeyGenerator) (model.Server, []model.Client, bool, error) {
	exists, err := s.Exists(iface)
	if err != nil {
		return model.Server{}, nil, false, err
	}
	if exists {
		server, clients, err := s.Load(iface)
		return server, clients, false, err
	}

	server, err := Default(iface, keys)
	if err != nil {
		return model.Server{}, nil, false, err
	}
	if err := s.Save(server, nil); err != nil {
		return model.Server{}, nil, false, err
	}
	return server, []model.Client{}, true, nil
}
