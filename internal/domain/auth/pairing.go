// Package auth pairs the phone UI with the daemon.
package auth

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/danghamo/rescueme/internal/domain/shared"
)

// Device is a paired UI client
type Device struct {
	ID       shared.ID `json:"id"`
	Name     string    `json:"name"`
	PairedAt time.Time `json:"paired_at"`
}

// Pairing is the result of a successful pairing
type Pairing struct {
	Device    Device    `json:"device"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HashPin returns the bcrypt hash stored in auth.pin_hash
func HashPin(pin string) (string, error) {
	if len(pin) < 4 {
		return "", shared.NewDomainError(shared.ErrCodeInvalidInput, "PIN must be at least 4 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Pairer checks the pairing PIN and issues device tokens
type Pairer struct {
	pinHash []byte
	jwt     *JWTService
}

// NewPairer creates a pairer. An empty hash disables pairing.
func NewPairer(pinHash string, jwtService *JWTService) *Pairer {
	return &Pairer{pinHash: []byte(pinHash), jwt: jwtService}
}

// Pair verifies pin and returns a token for a new device
func (p *Pairer) Pair(pin, deviceName string) (Pairing, error) {
	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" {
		return Pairing{}, shared.ErrInvalidInput("device name is required")
	}
	if len(p.pinHash) == 0 {
		return Pairing{}, shared.ErrPermissionDenied("pairing")
	}
	if err := bcrypt.CompareHashAndPassword(p.pinHash, []byte(pin)); err != nil {
		return Pairing{}, shared.ErrPermissionDenied("pairing")
	}

	device := Device{ID: shared.NewID(), Name: deviceName, PairedAt: time.Now()}
	token, expiresAt, err := p.jwt.GenerateToken(device)
	if err != nil {
		return Pairing{}, err
	}
	return Pairing{Device: device, Token: token, ExpiresAt: expiresAt}, nil
}

// Validate resolves a bearer token to the device that owns it
func (p *Pairer) Validate(token string) (*JWTClaims, error) {
	return p.jwt.ValidateToken(token)
}
