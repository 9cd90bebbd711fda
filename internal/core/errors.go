package core

import (
	"errors"
	"strings"
)

// Kind classifies protocol failures.
type Kind int

const (
	KindMissingParameter Kind = iota + 1
	KindNotFound
	KindAlreadyExists
	KindBadDirection
	KindCannotConsume
	KindEngineFault
)

func (k Kind) String() string {
	switch k {
	case KindMissingParameter:
		return "MissingParameter"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindBadDirection:
		return "BadDirection"
	case KindCannotConsume:
		return "CannotConsume"
	case KindEngineFault:
		return "EngineFault"
	}
	return "Unknown"
}

// Error is a protocol error. Msg is what the client sees.
type Error struct {
	Kind   Kind   `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) WithDetail(detail string) *Error {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &Error{Kind: e.Kind, Msg: e.Msg, Detail: d}
}

func (e *Error) Error() string {
	v := make([]string, 0, 3)
	v = append(v, e.Kind.String(), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, ": ")
}

// Is matches by kind. A target with a message also has to match the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil || e == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Msg == "" || t.Msg == e.Msg
}

// Kind sentinels, usable with errors.Is.
var (
	ErrMissingParameter = &Error{Kind: KindMissingParameter}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAlreadyExists    = &Error{Kind: KindAlreadyExists}
	ErrBadDirection     = NewError(KindBadDirection, "Bad direction")
	ErrCannotConsume    = &Error{Kind: KindCannotConsume}
	ErrEngineFault      = &Error{Kind: KindEngineFault}
)

var (
	ErrAlreadyInRoom       = NewError(KindAlreadyExists, "Already in this room")
	ErrUserAlreadyInRoom   = NewError(KindAlreadyExists, "User already in this room")
	ErrSessionExists       = NewError(KindAlreadyExists, "Session already registered")
	ErrRoomNotFound        = NewError(KindNotFound, "Room does not exist")
	ErrUnknownRoom         = NewError(KindNotFound, "Unable to find room")
	ErrNotMember           = NewError(KindNotFound, "User not in room")
	ErrSessionNotFound     = NewError(KindNotFound, "Unable to find user")
	ErrTransportNotFound   = NewError(KindNotFound, "Unable to find transport")
	ErrProducerNotFound    = NewError(KindNotFound, "Unable to find producer")
	ErrMissingDTLS         = NewError(KindMissingParameter, "Missing DTLS parameters")
	ErrInvalidDTLS         = NewError(KindMissingParameter, "Invalid DTLS parameters")
	ErrMissingICE          = NewError(KindMissingParameter, "Missing ICE parameters")
	ErrTransportConnected  = NewError(KindAlreadyExists, "Transport already connected")
	ErrMissingRTP          = NewError(KindMissingParameter, "Missing RTP parameters")
	ErrMissingCapabilities = NewError(KindMissingParameter, "Missing client RTP capabilities")
	ErrMissingKind         = NewError(KindMissingParameter, "Missing media Kind")
	ErrMissingProducerID   = NewError(KindMissingParameter, "Missing client producer id")
	ErrMissingContent      = NewError(KindMissingParameter, "Message content missing")
)

// CannotConsume builds the error for a producer the caller cannot receive.
func CannotConsume(id ProducerID) *Error {
	return NewError(KindCannotConsume, "Cant consume this producerId "+string(id))
}

// EngineFault wraps a media engine failure behind a client-safe message.
func EngineFault(msg string, cause error) *Error {
	e := NewError(KindEngineFault, msg)
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// IsRequestError reports whether err rejects the request itself rather than
// signalling a media engine failure.
func IsRequestError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind != KindEngineFault
}

// PublicMessage returns the text safe to hand back to a client.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "Internal error"
}
