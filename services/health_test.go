package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/princinho/sahoassist/ai"
	"github.com/princinho/sahoassist/utils"
)

type brokenStorage struct{}

func (brokenStorage) Name() string { return "broken" }
func (brokenStorage) Put(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket missing")
}
func (brokenStorage) Ping(context.Context) error { return errors.New("bucket missing") }

func TestHealthNotConfigured(t *testing.T) {
	f := newFixture(t)
	h := NewHealthService(f.deps, ai.NewGateway(nil, ai.Options{}, quietLogger(), nil), nil)

	report := h.Check(context.Background())
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, CheckOK, report.Checks["database"].Status)
	assert.Equal(t, CheckNotConfigured, report.Checks["ai_api"].Status)
	assert.Equal(t, CheckNotConfigured, report.Checks["storage"].Status)
	assert.Equal(t, f.clock.Now(), report.Timestamp)
}

func TestHealthAllOK(t *testing.T) {
	f := newFixture(t)
	gw := ai.NewGateway(&scriptedModel{answer: "pong"}, ai.Options{}, quietLogger(), nil)
	h := NewHealthService(f.deps, gw, utils.NewLocalStore(t.TempDir(), ""))

	report := h.Check(context.Background())
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, Check{Status: CheckOK, Message: "scripted reachable"}, report.Checks["ai_api"])
	assert.Equal(t, Check{Status: CheckOK, Message: "local writable"}, report.Checks["storage"])
}

func TestHealthDegraded(t *testing.T) {
	f := newFixture(t)
	gw := ai.NewGateway(&scriptedModel{answer: ""}, ai.Options{}, quietLogger(), nil)
	h := NewHealthService(f.deps, gw, brokenStorage{})

	report := h.Check(context.Background())
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, CheckFailed, report.Checks["ai_api"].Status)
	assert.Equal(t, Check{Status: CheckFailed, Message: "bucket missing"}, report.Checks["storage"])
}
