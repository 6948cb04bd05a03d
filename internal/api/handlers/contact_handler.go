package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api/jsonrpcx"
	"github.com/danghamo/rescueme/internal/domain/contact"
	"github.com/danghamo/rescueme/internal/domain/shared"
	"github.com/danghamo/rescueme/pkg/logger"
)

// ContactRepository is the Contact Store surface used by the API
type ContactRepository interface {
	Add(ctx context.Context, c contact.EmergencyContact) bool
	Remove(ctx context.Context, id string) bool
	Find(id string) (contact.EmergencyContact, bool)
	List() []contact.EmergencyContact
}

// TestMessenger sends the diagnostic text
type TestMessenger interface {
	SendTestMessage(ctx context.Context, phone string) bool
}

// ContactHandler manages emergency contacts
type ContactHandler struct {
	logger    *logger.Logger
	contacts  ContactRepository
	messenger TestMessenger
}

// NewContactHandler creates a new contact handler
func NewContactHandler(logger *logger.Logger, contacts ContactRepository, messenger TestMessenger) *ContactHandler {
	return &ContactHandler{
		logger:    logger.WithComponent("contact-handler"),
		contacts:  contacts,
		messenger: messenger,
	}
}

// AddContactRequest represents a new contact
type AddContactRequest struct {
	Name         string `json:"name"`
	PhoneNumber  string `json:"phone_number"`
	Relationship string `json:"relationship,omitempty"`
}

// ContactIDRequest addresses one contact
type ContactIDRequest struct {
	ID string `json:"id"`
}

// TestContactRequest addresses a contact or a raw phone number
type TestContactRequest struct {
	ID          string `json:"id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// ListContactsResponse is the contact list
type ListContactsResponse struct {
	Contacts []contact.EmergencyContact `json:"contacts"`
	Total    int                        `json:"total"`
}

// TestContactResponse reports whether the sender accepted the message
type TestContactResponse struct {
	Sent bool `json:"sent"`
}

// HandleAdd handles POST /api/v1/contact.Add
// @Summary Add an emergency contact
// @Tags contact
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[AddContactRequest] true "JSON-RPC request with AddContactRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[contact.EmergencyContact] "Created contact"
// @Failure 400 {object} jsonrpcx.ErrorResponse "Invalid name or phone number"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 500 {object} jsonrpcx.ErrorResponse "Failed to persist change"
// @Security BearerAuth
// @Router /api/v1/contact.Add [post]
func (h *ContactHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var params AddContactRequest
	req, ok := parseParams(r, &params)
	if !ok {
		return
	}

	c, err := contact.New(params.Name, params.PhoneNumber, params.Relationship)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	if !h.contacts.Add(r.Context(), c) {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.StorageWriteFailed, "Failed to persist change")
		return
	}

	h.logger.Info("Contact added", zap.String("contactId", c.ID), zap.String("name", c.Name))
	jsonrpcx.Success(w, req.ID, c)
}

// HandleRemove handles POST /api/v1/contact.Remove
// @Summary Remove an emergency contact
// @Tags contact
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[ContactIDRequest] true "JSON-RPC request with ContactIDRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[OKResponse] "Contact removed"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 404 {object} jsonrpcx.ErrorResponse "Contact not found"
// @Failure 500 {object} jsonrpcx.ErrorResponse "Failed to persist change"
// @Security BearerAuth
// @Router /api/v1/contact.Remove [post]
func (h *ContactHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var params ContactIDRequest
	req, ok := parseParams(r, &params)
	if !ok {
		return
	}

	if _, found := h.contacts.Find(params.ID); !found {
		jsonrpcx.WithDomainError(r, req.ID, shared.ErrNotFound("contact"))
		return
	}
	if !h.contacts.Remove(r.Context(), params.ID) {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.StorageWriteFailed, "Failed to persist change")
		return
	}

	h.logger.Info("Contact removed", zap.String("contactId", params.ID))
	jsonrpcx.Success(w, req.ID, OKResponse{OK: true})
}

// HandleList handles POST /api/v1/contact.List
// @Summary List emergency contacts
// @Tags contact
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[EmptyRequest] true "JSON-RPC request"
// @Success 200 {object} jsonrpcx.ResponseT[ListContactsResponse] "Contacts in insertion order"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Security BearerAuth
// @Router /api/v1/contact.List [post]
func (h *ContactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	req, ok := parseRequest(r)
	if !ok {
		return
	}

	contacts := h.contacts.List()
	jsonrpcx.Success(w, req.ID, ListContactsResponse{Contacts: contacts, Total: len(contacts)})
}

// HandleTest handles POST /api/v1/contact.Test
// @Summary Send the test message
// @Description Sends the fixed test text to a stored contact or a raw phone number
// @Tags contact
// @Accept json
// @Produce json
// @Param request body jsonrpcx.RequestT[TestContactRequest] true "JSON-RPC request with TestContactRequest params"
// @Success 200 {object} jsonrpcx.ResponseT[TestContactResponse] "Send outcome"
// @Failure 400 {object} jsonrpcx.ErrorResponse "Invalid phone number"
// @Failure 401 {object} jsonrpcx.ErrorResponse "Authentication required"
// @Failure 404 {object} jsonrpcx.ErrorResponse "Contact not found"
// @Security BearerAuth
// @Router /api/v1/contact.Test [post]
func (h *ContactHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	var params TestContactRequest
	req, ok := parseParams(r, &params)
	if !ok {
		return
	}

	phone, err := h.resolvePhone(params)
	if err != nil {
		jsonrpcx.WithDomainError(r, req.ID, err)
		return
	}

	sent := h.messenger.SendTestMessage(r.Context(), phone)
	jsonrpcx.Success(w, req.ID, TestContactResponse{Sent: sent})
}

func (h *ContactHandler) resolvePhone(params TestContactRequest) (string, error) {
	if params.ID != "" {
		c, found := h.contacts.Find(params.ID)
		if !found {
			return "", shared.ErrNotFound("contact")
		}
		return c.PhoneNumber, nil
	}
	return contact.NormalizePhone(params.PhoneNumber)
}

// === AutoRouter Compatible Methods ===

// Add (autorouter compatible)
func (h *ContactHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.HandleAdd(w, r)
}

// Remove (autorouter compatible)
func (h *ContactHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.HandleRemove(w, r)
}

// List (autorouter compatible)
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	h.HandleList(w, r)
}

// Test (autorouter compatible)
func (h *ContactHandler) Test(w http.ResponseWriter, r *http.Request) {
	h.HandleTest(w, r)
}
