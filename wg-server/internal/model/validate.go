package model

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// NewValidator returns a validator that knows the WireGuard specific tags
// "wgkey" and "cidrlist" and reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("wgkey", func(fl validator.FieldLevel) bool {
		return ValidKey(fl.Field().String())
	})
	_ = v.RegisterValidation("cidrlist", func(fl validator.FieldLevel) bool {
		_, err := ParseAllowedIPs(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidationFromValidator converts validator field errors into a
// *ValidationError for the first failing field.
func ValidationFromValidator(section string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return &ValidationError{Section: section, Field: fe.Field(), Msg: describeTag(fe)}
}

func describeTag(fe validator.FieldError) string {
	// "eq=|ip" allows the empty string that clears an optional field; the
	// last alternative names what a non-empty value must be.
	tags := strings.Split(fe.Tag(), "|")
	switch tags[len(tags)-1] {
	case "required":
		return "is required"
	case "isdefault":
		return "must not be set by the caller"
	case "wgkey":
		return "must be a base64 WireGuard key"
	case "cidrlist":
		return "must be a comma-separated list of CIDRs"
	case "ip":
		return "must be an IP address"
	case "hostname_rfc1123":
		return "must be a DNS name"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func ValidKey(s string) bool {
	_, err := wgtypes.ParseKey(s)
	return err == nil
}

// ParseAllowedIPs splits a comma-separated CIDR list such as
// "10.0.0.0/16, 192.168.31.5/32".
func ParseAllowedIPs(s string) ([]net.IPNet, error) {
	parts := strings.Split(s, ",")
	out := make([]net.IPNet, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("allowed_ips[%d] is empty", i)
		}
		_, ipNet, err := net.ParseCIDR(part)
		if err != nil {
			return nil, fmt.Errorf("allowed_ips[%d]: %w", i, err)
		}
		out = append(out, *ipNet)
	}
	return out, nil
}
