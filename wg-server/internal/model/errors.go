package model

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Section string
	Field   string
	Msg     string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Section != "" && e.Field != "":
		return fmt.Sprintf("field %q of section %q %s", e.Field, e.Section, e.Msg)
	case e.Field != "":
		return fmt.Sprintf("field %q %s", e.Field, e.Msg)
	case e.Section != "":
		return fmt.Sprintf("section %q %s", e.Section, e.Msg)
	default:
		return e.Msg
	}
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("client %s not found", e.ID)
}

type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q is already in use", e.Field, e.Value)
}

// PeerErrorKind tells a caller whether a failed interface call is worth
// retrying as is.
type PeerErrorKind string

const (
	PeerTimeout     PeerErrorKind = "timeout"
	PeerUnavailable PeerErrorKind = "unavailable"
	PeerRejected    PeerErrorKind = "rejected"
)

const (
	OpListPeers  = "list_peers"
	OpAddPeer    = "add_peer"
	OpRemovePeer = "remove_peer"
	OpHandshakes = "handshakes"
)

type PeerError struct {
	Kind      PeerErrorKind
	Op        string
	PublicKey string
	Err       error
}

func (e *PeerError) Error() string {
	if e.PublicKey == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s (peer=%s): %v", e.Op, e.Kind, e.PublicKey, e.Err)
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
