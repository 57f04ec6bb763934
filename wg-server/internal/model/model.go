package model

import (
	"time"
)

// Server is the single WireGuard interface managed by this process.
type Server struct {
	InterfaceName    string `json:"interface_name"`
	ListenPort       uint16 `json:"listen_port"`
	IP               string `json:"ip"`
	Network          string `json:"network"`
	EndpointDNS      string `json:"endpoint_dns,omitempty"`
	EndpointIP       string `json:"endpoint_ip,omitempty"`
	PublicListenPort uint16 `json:"public_listen_port"`
	PrivateKey       string `json:"-"`
	PublicKey        string `json:"public_key"`
	PreUp            string `json:"pre_up"`
	PostUp           string `json:"post_up"`
	PreDown          string `json:"pre_down"`
	PostDown         string `json:"post_down"`
}

// Client is a peer allowed (or not) to connect to the server.
//
// AccountStatus is owned by the lifecycle controller and ConnectionStatus by
// the connection monitor; nothing else writes them.
type Client struct {
	UUID                 string    `json:"uuid"`
	PrivateKey           string    `json:"-"`
	PublicKey            string    `json:"public_key"`
	Login                string    `json:"login"`
	FullName             string    `json:"full_name"`
	IP                   string    `json:"ip"`
	AccountStatus        bool      `json:"account_status"`
	AdministrativeStatus bool      `json:"administrative_account_status"`
	ConnectionStatus     bool      `json:"connection_status"`
	CreationDate         time.Time `json:"creation_date"`
	ReleaseDate          time.Time `json:"release_date"`
	ExpirationDate       time.Time `json:"expiration_date"`
	AllowedIPs           string    `json:"allowed_ips"`
	DNS                  string    `json:"dns"`
}

// NewClient carries the caller-supplied fields of a client to create.
// UUID exists only so that a caller-supplied identifier can be rejected.
type NewClient struct {
	UUID                 string     `json:"uuid,omitempty" validate:"isdefault"`
	PrivateKey           string     `json:"private_key,omitempty" validate:"omitempty,wgkey"`
	PublicKey            string     `json:"public_key,omitempty" validate:"omitempty,wgkey"`
	Login                string     `json:"login" validate:"required"`
	FullName             string     `json:"full_name,omitempty"`
	IP                   string     `json:"ip" validate:"required,ip"`
	AdministrativeStatus bool       `json:"administrative_account_status,omitempty"`
	ReleaseDate          *time.Time `json:"release_date,omitempty"`
	ExpirationDate       *time.Time `json:"expiration_date,omitempty"`
	AllowedIPs           string     `json:"allowed_ips" validate:"required,cidrlist"`
	DNS                  string     `json:"dns,omitempty" validate:"omitempty,ip"`
}

// ClientPatch lists the fields an administrator may change. The read-only
// fields are present so that attempts to set them can be detected and
// rejected instead of silently dropped.
type ClientPatch struct {
	AdministrativeStatus *bool      `json:"administrative_account_status,omitempty"`
	FullName             *string    `json:"full_name,omitempty"`
	AllowedIPs           *string    `json:"allowed_ips,omitempty" validate:"omitempty,cidrlist"`
	DNS                  *string    `json:"dns,omitempty" validate:"omitnil,eq=|ip"`
	ReleaseDate          *time.Time `json:"release_date,omitempty"`
	ExpirationDate       *time.Time `json:"expiration_date,omitempty"`

	UUID             *string    `json:"uuid,omitempty"`
	CreationDate     *time.Time `json:"creation_date,omitempty"`
	AccountStatus    *bool      `json:"account_status,omitempty"`
	ConnectionStatus *bool      `json:"connection_status,omitempty"`
}

// ServerPatch lists the server fields that may change while the interface
// exists. Interface name, addresses and keys are fixed.
type ServerPatch struct {
	EndpointDNS      *string `json:"endpoint_dns,omitempty" validate:"omitnil,eq=|hostname_rfc1123"`
	EndpointIP       *string `json:"endpoint_ip,omitempty" validate:"omitnil,eq=|ip"`
	PublicListenPort *uint16 `json:"public_listen_port,omitempty" validate:"omitempty,min=1"`
	PreUp            *string `json:"pre_up,omitempty"`
	PostUp           *string `json:"post_up,omitempty"`
	PreDown          *string `json:"pre_down,omitempty"`
	PostDown         *string `json:"post_down,omitempty"`
}

// StatusChange is a derived status computed for one client by a controller.
type StatusChange struct {
	ID    string
	Value bool
}

// KeyGenerator returns a fresh WireGuard key pair.
type KeyGenerator func() (privateKey, publicKey string, err error)

// IDGenerator returns a new client identifier.
type IDGenerator func() string
