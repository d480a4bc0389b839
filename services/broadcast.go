package services

import (
	"context"
	"fmt"

	"github.com/princinho/sahoassist/models"
)

// BroadcastResult is returned to the customer after submitting a request.
type BroadcastResult struct {
	Request          *models.ProductRequest `json:"request"`
	VendorsContacted int                    `json:"vendorsContacted"`
	Message          string                 `json:"message"`
}

// Broadcaster creates a request and fans it out to vendors in one call.
type Broadcaster struct {
	requests *RequestService
	notifier *Notifier
	deps     Deps
}

func NewBroadcaster(deps Deps, requests *RequestService, notifier *Notifier) *Broadcaster {
	return &Broadcaster{requests: requests, notifier: notifier, deps: deps.withDefaults()}
}

// CreateAndNotify never undoes a created request: a notifier failure degrades to
// the no-vendors message.
func (b *Broadcaster) CreateAndNotify(ctx context.Context, in CreateRequestInput) (*BroadcastResult, error) {
	r, err := b.requests.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	ids, err := b.notifier.NotifyVendors(ctx, r.Category, r.Description, r.ID, r.UserID)
	if err != nil {
		b.deps.Logger.ErrorContext(ctx, "vendor notification failed", "request_id", r.ID, "error", err)
		ids = nil
	}

	if len(ids) > 0 {
		count := len(ids)
		updated, err := b.requests.Update(ctx, r.ID, UpdateRequestInput{VendorsContacted: &count}, "system")
		if err != nil {
			b.deps.Logger.ErrorContext(ctx, "record vendors contacted", "request_id", r.ID, "error", err)
		} else {
			r = updated
		}
	}

	return &BroadcastResult{
		Request:          r,
		VendorsContacted: len(ids),
		Message:          broadcastMessage(len(ids), r.Category),
	}, nil
}

func broadcastMessage(n int, category string) string {
	if n == 0 {
		return fmt.Sprintf("We couldn't find vendors for the %s category right now. Your request has been saved and our team will follow up.", category)
	}
	noun := "vendors"
	if n == 1 {
		noun = "vendor"
	}
	return fmt.Sprintf("Your request has been sent to %d %s in the %s category.", n, noun, category)
}
