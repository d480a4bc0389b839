package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/metrics"
)

// Sweep names.
const (
	SweepAutoClose = "auto-close"
	SweepTickets   = "tickets"
	SweepRetention = "retention"
	SweepAll       = "all"
)

var SweepNames = []string{SweepAutoClose, SweepTickets, SweepRetention, SweepAll}

// SweepReport counts rows touched by one sweep run, keyed by task.
type SweepReport map[string]int64

// Sweeper runs the periodic maintenance tasks. Each task is safe to run while
// user-facing mutations are in flight.
type Sweeper struct {
	requests *RequestService
	tickets  *TicketService
	chat     *ChatService
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewSweeper(requests *RequestService, tickets *TicketService, chat *ChatService, m *metrics.Metrics, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{requests: requests, tickets: tickets, chat: chat, metrics: m, logger: logger}
}

// Run executes the named sweep. "all" runs every task and keeps going past failures.
func (s *Sweeper) Run(ctx context.Context, name string) (SweepReport, error) {
	if !slices.Contains(SweepNames, name) {
		return nil, apperr.Validation("unknown sweep %q", name)
	}
	report := SweepReport{}
	var errs []error
	if name == SweepAutoClose || name == SweepAll {
		n, err := s.requests.AutoCloseOldRequests(ctx)
		errs = append(errs, s.record(report, "requests_auto_closed", int64(n), err))
	}
	if name == SweepTickets || name == SweepAll {
		res, err := s.tickets.ProcessQueue(ctx)
		errs = append(errs, s.record(report, "tickets_escalated", int64(res.Escalated), err))
		report["tickets_assigned"] = int64(res.Assigned)
	}
	if name == SweepRetention || name == SweepAll {
		n, err := s.requests.PurgeFinished(ctx)
		errs = append(errs, s.record(report, "requests_purged", n, err))
		n, err = s.tickets.CleanupOldTickets(ctx)
		errs = append(errs, s.record(report, "tickets_purged", n, err))
		n, err = s.chat.PurgeConversations(ctx)
		errs = append(errs, s.record(report, "conversations_purged", n, err))
	}
	err := errors.Join(errs...)
	s.logger.InfoContext(ctx, "sweep finished", "sweep", name, "report", report, "error", err)
	return report, err
}

func (s *Sweeper) record(report SweepReport, task string, n int64, err error) error {
	report[task] = n
	s.metrics.RecordSweep(task, int(n))
	if err != nil {
		s.logger.Error("sweep task failed", "task", task, "error", err)
	}
	return err
}
