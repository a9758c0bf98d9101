package app

import (
	"errors"

	"github.com/mattjoyce/rollcall/internal/clock"
	"github.com/mattjoyce/rollcall/internal/ledger"
	"github.com/mattjoyce/rollcall/internal/mail"
	"github.com/mattjoyce/rollcall/internal/report"
	"github.com/mattjoyce/rollcall/internal/roster"
)

// ErrValidation marks malformed caller input.
var ErrValidation = errors.New("validation error")

// Kind is the caller-facing category of an error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindStore
	KindRender
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindStore:
		return "store"
	case KindRender:
		return "render"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrValidation), errors.Is(err, clock.ErrInvalidDate):
		return KindValidation
	case errors.Is(err, roster.ErrUnknownHost):
		return KindAuthorization
	case errors.Is(err, ledger.ErrStore):
		return KindStore
	case errors.Is(err, report.ErrRender):
		return KindRender
	case errors.Is(err, mail.ErrTransport), errors.Is(err, mail.ErrNoArtifact), errors.Is(err, mail.ErrNoRecipients):
		return KindTransport
	default:
		return KindInternal
	}
}
