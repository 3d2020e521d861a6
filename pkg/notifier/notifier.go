// Package notifier delivers alert/recovery/test notifications about
// service health to an external sink. Two variants ship: a no-op stub
// and a webhook sender that POSTs a JSON envelope.
package notifier

import (
	"context"

	"sentrypulse/pkg/config"
	"sentrypulse/pkg/probe"
)

// Notifier is the capability set every notifier variant implements. A
// failed send is reported to the caller but never panics or blocks the
// alert pipeline for long.
type Notifier interface {
	SendAlert(ctx context.Context, svc config.ServiceConfig, result probe.Result) error
	SendRecovery(ctx context.Context, svc config.ServiceConfig, result probe.Result) error
	SendTestMessage(ctx context.Context, text string) error
}

// NoOp is an inert Notifier: every call succeeds without doing anything.
// It is the default when no webhook is configured anywhere.
type NoOp struct{}

func (NoOp) SendAlert(context.Context, config.ServiceConfig, probe.Result) error    { return nil }
func (NoOp) SendRecovery(context.Context, config.ServiceConfig, probe.Result) error { return nil }
func (NoOp) SendTestMessage(context.Context, string) error                          { return nil }

var _ Notifier = NoOp{}
