package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"wg-lifecycle/wg-server/internal/model"
)

const (
	sectionServer  = "server"
	sectionClients = "clients"
)

type kind int

const (
	kindString kind = iota
	kindPort
	kindBool
	kindDate
)

func (k kind) String() string {
	switch k {
	case kindPort:
		return "unsigned integer"
	case kindBool:
		return "boolean"
	case kindDate:
		return "date string"
	default:
		return "string"
	}
}

// field describes one key of a section. decode, encode and the type checks
// are all driven from these lists; there is no other table of field names.
type field[T any] struct {
	name     string
	kind     kind
	nullable bool
	// read returns the JSON value to write; nil is written as null.
	read func(*T) any
	// write stores a decoded value of the field's kind, or nil for null.
	write func(*T, any)
}

func str[T any](name string, get func(*T) *string) field[T] {
	return field[T]{
		name:  name,
		kind:  kindString,
		read:  func(t *T) any { return *get(t) },
		write: func(t *T, v any) { *get(t) = v.(string) },
	}
}

// optStr is a string where null and "" mean the same thing.
func optStr[T any](name string, get func(*T) *string) field[T] {
	return field[T]{
		name:     name,
		kind:     kindString,
		nullable: true,
		read: func(t *T) any {
			if *get(t) == "" {
				return nil
			}
			return *get(t)
		},
		write: func(t *T, v any) {
			if v == nil {
				*get(t) = ""
				return
			}
			*get(t) = v.(string)
		},
	}
}

func port[T any](name string, get func(*T) *uint16) field[T] {
	return field[T]{
		name:  name,
		kind:  kindPort,
		read:  func(t *T) any { return *get(t) },
		write: func(t *T, v any) { *get(t) = v.(uint16) },
	}
}

func boolean[T any](name string, nullable bool, get func(*T) *bool) field[T] {
	return field[T]{
		name:     name,
		kind:     kindBool,
		nullable: nullable,
		read:     func(t *T) any { return *get(t) },
		write: func(t *T, v any) {
			if v == nil {
				*get(t) = false
				return
			}
			*get(t) = v.(bool)
		},
	}
}

// date fields equal to def are written as null and null reads back as def.
func date[T any](name string, nullable bool, def time.Time, get func(*T) *time.Time) field[T] {
	return field[T]{
		name:     name,
		kind:     kindDate,
		nullable: nullable,
		read: func(t *T) any {
			if nullable && get(t).Equal(def) {
				return nil
			}
			return model.FormatTime(*get(t))
		},
		write: func(t *T, v any) {
			if v == nil {
				*get(t) = def
				return
			}
			*get(t) = v.(time.Time)
		},
	}
}

var serverFields = []field[model.Server]{
	str("interface_name", func(s *model.Server) *string { return &s.InterfaceName }),
	port("listen_port", func(s *model.Server) *uint16 { return &s.ListenPort }),
	str("ip", func(s *model.Server) *string { return &s.IP }),
	str("network", func(s *model.Server) *string { return &s.Network }),
	optStr("endpoint_dns", func(s *model.Server) *string { return &s.EndpointDNS }),
	optStr("endpoint_ip", func(s *model.Server) *string { return &s.EndpointIP }),
	port("public_listen_port", func(s *model.Server) *uint16 { return &s.PublicListenPort }),
	str("private_key", func(s *model.Server) *string { return &s.PrivateKey }),
	str("public_key", func(s *model.Server) *string { return &s.PublicKey }),
	str("pre_up", func(s *model.Server) *string { return &s.PreUp }),
	str("post_up", func(s *model.Server) *string { return &s.PostUp }),
	str("pre_down", func(s *model.Server) *string { return &s.PreDown }),
	str("post_down", func(s *model.Server) *string { return &s.PostDown }),
}

var clientFields = []field[model.Client]{
	str("uuid", func(c *model.Client) *string { return &c.UUID }),
	str("private_key", func(c *model.Client) *string { return &c.PrivateKey }),
	str("public_key", func(c *model.Client) *string { return &c.PublicKey }),
	str("login", func(c *model.Client) *string { return &c.Login }),
	str("full_name", func(c *model.Client) *string { return &c.FullName }),
	str("ip", func(c *model.Client) *string { return &c.IP }),
	boolean("account_status", false, func(c *model.Client) *bool { return &c.AccountStatus }),
	boolean("administrative_account_status", false, func(c *model.Client) *bool { return &c.AdministrativeStatus }),
	boolean("connection_status", true, func(c *model.Client) *bool { return &c.ConnectionStatus }),
	date("creation_date", false, time.Time{}, func(c *model.Client) *time.Time { return &c.CreationDate }),
	date("release_date", true, model.MinTime, func(c *model.Client) *time.Time { return &c.ReleaseDate }),
	date("expiration_date", true, model.MaxTime, func(c *model.Client) *time.Time { return &c.ExpirationDate }),
	str("allowed_ips", func(c *model.Client) *string { return &c.AllowedIPs }),
	str("dns", func(c *model.Client) *string { return &c.DNS }),
}

// decodeSection fills a T from obj, failing on the first missing key or
// type mismatch.
func decodeSection[T any](section string, fields []field[T], obj map[string]any) (T, error) {
	var out T
	for _, f := range fields {
		raw, ok := obj[f.name]
		if !ok {
			return out, &model.ValidationError{Section: section, Field: f.name, Msg: "is missing"}
		}
		if raw == nil {
			if !f.nullable {
				return out, &model.ValidationError{Section: section, Field: f.name, Msg: fmt.Sprintf("must be %s type", f.kind)}
			}
			f.write(&out, nil)
			continue
		}
		v, err := convert(f.kind, raw)
		if err != nil {
			msg := fmt.Sprintf("must be %s type", f.kind)
			if f.nullable {
				msg = fmt.Sprintf("must be %s or null type", f.kind)
			}
			if !errors.Is(err, errWrongType) {
				msg = err.Error()
			}
			return out, &model.ValidationError{Section: section, Field: f.name, Msg: msg}
		}
		f.write(&out, v)
	}
	return out, nil
}

func encodeSection[T any](fields []field[T], v *T) orderedObject {
	obj := make(orderedObject, 0, len(fields))
	for _, f := range fields {
		obj = append(obj, member{key: f.name, value: f.read(v)})
	}
	return obj
}

var errWrongType = errors.New("wrong type")

func convert(k kind, raw any) (any, error) {
	switch k {
	case kindString:
		s, ok := raw.(string)
		if !ok {
			return nil, errWrongType
		}
		return s, nil
	case kindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, errWrongType
		}
		return b, nil
	case kindPort:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, errWrongType
		}
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return nil, errWrongType
		}
		if u < 1 || u > math.MaxUint16 {
			return nil, fmt.Errorf("must be 1-65535")
		}
		return uint16(u), nil
	case kindDate:
		s, ok := raw.(string)
		if !ok {
			return nil, errWrongType
		}
		t, err := model.ParseTime(s)
		if err != nil {
			return nil, fmt.Errorf("must be a date in %s format", model.TimeLayout)
		}
		return t, nil
	}
	return nil, errWrongType
}

type member struct {
	key   string
	value any
}

// orderedObject marshals as a JSON object keeping the descriptor order.
type orderedObject []member

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, m := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}
