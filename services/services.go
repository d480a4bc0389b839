// Package services holds the business operations behind the HTTP API and the sweep commands.
package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/mailer"
	"github.com/princinho/sahoassist/metrics"
	"github.com/princinho/sahoassist/store"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store   store.Store
	Mailer  mailer.Mailer
	Hooks   *Hooks
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Site    mailer.Site
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Mailer == nil {
		d.Mailer = mailer.LogMailer{Logger: d.Logger}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// sequenceNumber formats PREFIX-YYYYMMDD-NNNN from an atomic per-day counter.
func sequenceNumber(prefix string, now time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), seq)
}

func sequenceKey(kind string, now time.Time) string {
	return kind + ":" + now.Format("20060102")
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("%s %d not found", what, id)
	}
	if errors.Is(err, store.ErrContention) {
		return apperr.Transient(fmt.Sprintf("%s %d is being updated, retry", what, id), err)
	}
	return err
}

// collect pages through a listing until every row is read.
func collect[T any, F any](list func(F, store.Page) ([]T, int64, error), f F) ([]T, error) {
	const perPage = 500
	var out []T
	for page := 1; ; page++ {
		items, total, err := list(f, store.Page{Page: page, PerPage: perPage})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < perPage || int64(len(out)) >= total {
			return out, nil
		}
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
