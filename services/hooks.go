package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/princinho/sahoassist/models"
)

// Hook events.
const (
	EventRequestCreated    = "request.created"
	EventRequestUpdated    = "request.updated"
	EventRequestCompleted  = "request.completed"
	EventRequestCancelled  = "request.cancelled"
	EventRequestAutoClosed = "request.auto_closed"
	EventRequestDeleted    = "request.deleted"
	EventVendorsNotified   = "vendors.notified"
	EventVendorResponded   = "vendor.responded"
	EventTicketCreated     = "ticket.created"
	EventTicketClosed      = "ticket.closed"
	EventTicketEscalated   = "ticket.escalated"
)

// HookEvent is passed to every handler. Only the fields relevant to the event are set.
type HookEvent struct {
	Name     string
	Actor    string
	Request  *models.ProductRequest
	Ticket   *models.SupportTicket
	VendorID int64
	Message  string
}

type HookHandler func(ctx context.Context, e HookEvent) error

// VendorFilter may narrow the vendors resolved for a broadcast.
type VendorFilter func(ctx context.Context, category string, vendors []models.Vendor) []models.Vendor

// Hooks holds named event handlers and the vendor filter chain. Handlers run
// synchronously in registration order; their errors and panics are logged and
// never reach the caller. A nil *Hooks does nothing.
type Hooks struct {
	mu       sync.RWMutex
	handlers map[string][]HookHandler
	filters  []VendorFilter
	logger   *slog.Logger
}

func NewHooks(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{handlers: map[string][]HookHandler{}, logger: logger}
}

func (h *Hooks) On(event string, fn HookHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[event] = append(h.handlers[event], fn)
}

func (h *Hooks) OnResolveVendors(fn VendorFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filters = append(h.filters, fn)
}

func (h *Hooks) Emit(ctx context.Context, e HookEvent) {
	if h == nil {
		return
	}
	h.mu.RLock()
	handlers := append([]HookHandler(nil), h.handlers[e.Name]...)
	h.mu.RUnlock()

	for i, fn := range handlers {
		if err := h.run(func() error { return fn(ctx, e) }); err != nil {
			h.logger.WarnContext(ctx, "hook handler failed", "event", e.Name, "handler", i, "error", err)
		}
	}
}

// FilterVendors passes vendors through every filter. A filter that panics is skipped.
func (h *Hooks) FilterVendors(ctx context.Context, category string, vendors []models.Vendor) []models.Vendor {
	if h == nil {
		return vendors
	}
	h.mu.RLock()
	filters := append([]VendorFilter(nil), h.filters...)
	h.mu.RUnlock()

	for i, fn := range filters {
		var out []models.Vendor
		err := h.run(func() error {
			out = fn(ctx, category, vendors)
			return nil
		})
		if err != nil {
			h.logger.WarnContext(ctx, "vendor filter failed", "filter", i, "error", err)
			continue
		}
		vendors = out
	}
	return vendors
}

func (h *Hooks) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
