package domain

import (
	"context"
	"time"
)

// Request is the public verification payload. DeviceID is the caller-chosen
// hardware identifier; equality is exact, no normalization beyond trimming.
type Request struct {
	Key      string `json:"key" binding:"required"`
	DeviceID string `json:"deviceId" binding:"required"`
	Game     string `json:"game" binding:"required"`
}

// Result is the wire response for both verification endpoints. Optional
// fields are omitted when the decision never reached them, matching what
// launcher clients in the field already parse.
type Result struct {
	Valid          bool       `json:"valid"`
	Expiry         *time.Time `json:"expiry,omitempty"`
	DeviceLimit    *int       `json:"deviceLimit,omitempty"`
	CurrentDevices *int       `json:"currentDevices,omitempty"`
	CanRegister    bool       `json:"canRegister,omitempty"`
	Message        string     `json:"message"`

	// Outcome labels the decision for metrics; never serialized.
	Outcome Outcome `json:"-"`
}

// Outcome is the metrics label for a verification decision.
type Outcome string

const (
	OutcomeInvalidKey   Outcome = "invalid_key"
	OutcomeWrongGame    Outcome = "wrong_game"
	OutcomeRevoked      Outcome = "revoked"
	OutcomeExpired      Outcome = "expired"
	OutcomeLimitReached Outcome = "limit_reached"
	OutcomeValid        Outcome = "valid"
	OutcomeRegistered   Outcome = "registered"
	OutcomeCanRegister  Outcome = "can_register"
)

// Response messages are part of the public contract; clients string-match
// on them, so they never change wording.
const (
	MsgInvalidKey   = "Invalid license key"
	MsgWrongGame    = "License key is not valid for this game"
	MsgRevoked      = "License key has been revoked"
	MsgExpired      = "License key has expired"
	MsgLimitReached = "Device limit reached for this license key"
	MsgValid        = "License valid"
	MsgCanRegister  = "License valid, device can be registered"
)

type Service interface {
	// Verify runs the full decision chain and registers the device when the
	// key is valid, unbound, and under its limit.
	Verify(ctx context.Context, req Request) (*Result, error)
	// CheckOnly runs the same chain without registering; a registrable
	// device yields canRegister instead of a new binding.
	CheckOnly(ctx context.Context, req Request) (*Result, error)
}
