package contact

import (
	"context"
	"strings"

	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/pkg/logger"
)

// EmergencyContact is a person who receives emergency messages
type EmergencyContact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phoneNumber"`
	Relationship string `json:"relationship"`
}

// New creates a contact with a fresh id after validating its fields
func New(name, phone, relationship string) (EmergencyContact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return EmergencyContact{}, shared.ErrInvalidInput("contact name is required")
	}
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return EmergencyContact{}, err
	}
	return EmergencyContact{
		ID:           shared.NewID().String(),
		Name:         name,
		PhoneNumber:  normalized,
		Relationship: strings.TrimSpace(relationship),
	}, nil
}

// NormalizePhone strips spaces, dashes and parentheses and checks that what
// remains is digits with an optional leading '+'.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", shared.ErrInvalidInput("phone number may only contain digits")
		}
	}
	out := b.String()
	if strings.TrimPrefix(out, "+") == "" {
		return "", shared.ErrInvalidInput("phone number is required")
	}
	return out, nil
}

// Store holds the emergency contact list
type Store struct {
	*storage.Collection[EmergencyContact]
}

// NewStore loads the persisted contact list
func NewStore(ctx context.Context, backend storage.Backend, log *logger.Logger) *Store {
	return &Store{
		Collection: storage.NewCollection(ctx, backend, storage.KeyContacts,
			func(c EmergencyContact) string { return c.ID },
			log.WithComponent("contact-store")),
	}
}
