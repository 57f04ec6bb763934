package client

import "time"

// WGClient is a client record as the admin API returns it.
type WGClient struct {
	UUID                 string    `json:"uuid"`
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

type NewClient struct {
	PrivateKey           string     `json:"private_key,omitempty"`
	PublicKey            string     `json:"public_key,omitempty"`
	Login                string     `json:"login"`
	FullName             string     `json:"full_name,omitempty"`
	IP                   string     `json:"ip"`
	AdministrativeStatus bool       `json:"administrative_account_status,omitempty"`
	ReleaseDate          *time.Time `json:"release_date,omitempty"`
	ExpirationDate       *time.Time `json:"expiration_date,omitempty"`
	AllowedIPs           string     `json:"allowed_ips"`
	DNS                  string     `json:"dns,omitempty"`
}

type ClientPatch struct {
	AdministrativeStatus *bool      `json:"administrative_account_status,omitempty"`
	FullName             *string    `json:"full_name,omitempty"`
	AllowedIPs           *string    `json:"allowed_ips,omitempty"`
	DNS                  *string    `json:"dns,omitempty"`
	ReleaseDate          *time.Time `json:"release_date,omitempty"`
	ExpirationDate       *time.Time `json:"expiration_date,omitempty"`
}

type Server struct {
	InterfaceName    string `json:"interface_name"`
	ListenPort       uint16 `json:"listen_port"`
	IP               string `json:"ip"`
	Network          string `json:"network"`
	EndpointDNS      string `json:"endpoint_dns,omitempty"`
	EndpointIP       string `json:"endpoint_ip,omitempty"`
	PublicListenPort uint16 `json:"public_listen_port"`
	PublicKey        string `json:"public_key"`
	PreUp            string `json:"pre_up"`
	PostUp           string `json:"post_up"`
	PreDown          string `json:"pre_down"`
	PostDown         string `json:"post_down"`
}

type ServerPatch struct {
	EndpointDNS      *string `json:"endpoint_dns,omitempty"`
	EndpointIP       *string `json:"endpoint_ip,omitempty"`
	PublicListenPort *uint16 `json:"public_listen_port,omitempty"`
	PreUp            *string `json:"pre_up,omitempty"`
	PostUp           *string `json:"post_up,omitempty"`
	PreDown          *string `json:"pre_down,omitempty"`
	PostDown         *string `json:"post_down,omitempty"`
}

type PassSummary struct {
	StartedAt         time.Time `json:"started_at"`
	DurationMillis    int64     `json:"duration_ms"`
	Added             []string  `json:"added"`
	Removed           []string  `json:"removed"`
	AccountChanges    int       `json:"account_changes"`
	ConnectionChanges int       `json:"connection_changes"`
	Failures          []string  `json:"failures"`
	Saved             bool      `json:"saved"`
	SaveError         string    `json:"save_error,omitempty"`
}

type Pass struct {
	ID                uint      `json:"id"`
	StartedAt         time.Time `json:"started_at"`
	DurationMillis    int64     `json:"duration_ms"`
	Added             int       `json:"added"`
	Removed           int       `json:"removed"`
	AccountChanges    int       `json:"account_changes"`
	ConnectionChanges int       `json:"connection_changes"`
	Failures          string    `json:"failures,omitempty"`
	Saved             bool      `json:"saved"`
	SaveError         string    `json:"save_error,omitempty"`
}
