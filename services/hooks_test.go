package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/princinho/sahoassist/models"
)

func TestHooksRunInOrderAndSwallowFailures(t *testing.T) {
	h := NewHooks(quietLogger())
	var calls []string
	h.On(EventRequestCreated, func(_ context.Context, e HookEvent) error {
		calls = append(calls, "first:"+e.Actor)
		return errors.New("webhook down")
	})
	h.On(EventRequestCreated, func(context.Context, HookEvent) error {
		calls = append(calls, "second")
		panic("bad handler")
	})
	h.On(EventRequestCreated, func(context.Context, HookEvent) error {
		calls = append(calls, "third")
		return nil
	})
	h.On(EventTicketCreated, func(context.Context, HookEvent) error {
		calls = append(calls, "ticket")
		return nil
	})

	assert.NotPanics(t, func() {
		h.Emit(context.Background(), HookEvent{Name: EventRequestCreated, Actor: "guest"})
	})
	assert.Equal(t, []string{"first:guest", "second", "third"}, calls)
}

func TestNilHooks(t *testing.T) {
	var h *Hooks
	vendors := []models.Vendor{{ID: 1}, {ID: 2}}
	assert.NotPanics(t, func() {
		h.Emit(context.Background(), HookEvent{Name: EventRequestCreated})
	})
	assert.Equal(t, vendors, h.FilterVendors(context.Background(), "books", vendors))
}

func TestFilterVendorsChain(t *testing.T) {
	h := NewHooks(quietLogger())
	h.OnResolveVendors(func(_ context.Context, category string, vs []models.Vendor) []models.Vendor {
		if category != "books" {
			return vs
		}
		return vs[:1]
	})
	h.OnResolveVendors(func(_ context.Context, _ string, vs []models.Vendor) []models.Vendor {
		return append(vs, models.Vendor{ID: 99})
	})

	vendors := []models.Vendor{{ID: 1}, {ID: 2}}
	got := h.FilterVendors(context.Background(), "books", vendors)
	assert.Equal(t, []models.Vendor{{ID: 1}, {ID: 99}}, got)

	got = h.FilterVendors(context.Background(), "toys", []models.Vendor{{ID: 3}})
	assert.Equal(t, []models.Vendor{{ID: 3}, {ID: 99}}, got)
}
