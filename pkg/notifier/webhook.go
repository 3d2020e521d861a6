package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sentrypulse/pkg/config"
	"sentrypulse/pkg/probe"
	"sentrypulse/pkg/sentryerr"
)

// envelope is the JSON body POSTed to a webhook URL. The schema is this
// implementation's own choice; spec §6 leaves the wire format open.
type envelope struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Kind        string `json:"kind"`
	ServiceName string `json:"service_name"`
	ServiceURL  string `json:"service_url"`
	StatusCode  int    `json:"status_code,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Webhook posts JSON alert/recovery/test envelopes to a per-service or
// global webhook URL. It resolves the effective URL per call, since
// config can hot-reload between sends.
type Webhook struct {
	Client *http.Client
	Global config.GlobalConfig

	// BodyTemplate is the template string substituted into envelope.Body
	// for alert/recovery sends. {{duration_ms}}, {{error}}, {{status_code}}
	// are replaced with values from the triggering probe.Result.
	BodyTemplate string
}

// NewWebhook builds a Webhook notifier with a default template, grounded
// on the teacher's replaceTemplateVars substitution style.
func NewWebhook(global config.GlobalConfig) *Webhook {
	return &Webhook{
		Client:       &http.Client{Timeout: 30 * time.Second},
		Global:       global,
		BodyTemplate: "status_code={{status_code}} duration_ms={{duration_ms}} error={{error}}",
	}
}

func (w *Webhook) effectiveURL(svc config.ServiceConfig) string {
	if svc.WebhookURL != "" {
		return svc.WebhookURL
	}
	return w.Global.DefaultWebhookURL
}

func substituteTemplate(tmpl string, result probe.Result) string {
	durationMs := int64(math.Round(float64(result.Elapsed) / float64(time.Millisecond)))
	out := strings.ReplaceAll(tmpl, "{{duration_ms}}", strconv.FormatInt(durationMs, 10))
	out = strings.ReplaceAll(out, "{{error}}", result.ErrorText)
	out = strings.ReplaceAll(out, "{{status_code}}", strconv.Itoa(result.HTTPStatus))
	return out
}

func (w *Webhook) send(ctx context.Context, url string, env envelope) error {
	if url == "" {
		return nil // no-op: neither per-service nor global webhook is configured
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return &sentryerr.NotifierSendError{Service: env.ServiceName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &sentryerr.NotifierSendError{Service: env.ServiceName, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return &sentryerr.NotifierSendError{Service: env.ServiceName, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return &sentryerr.NotifierSendError{Service: env.ServiceName, Err: fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)}
	}
	return nil
}

func (w *Webhook) SendAlert(ctx context.Context, svc config.ServiceConfig, result probe.Result) error {
	return w.send(ctx, w.effectiveURL(svc), envelope{
		Title:       fmt.Sprintf("%s is down", svc.Name),
		Body:        substituteTemplate(w.BodyTemplate, result),
		Kind:        "alert",
		ServiceName: svc.Name,
		ServiceURL:  svc.URL,
		StatusCode:  result.HTTPStatus,
		Error:       result.ErrorText,
		Timestamp:   result.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (w *Webhook) SendRecovery(ctx context.Context, svc config.ServiceConfig, result probe.Result) error {
	return w.send(ctx, w.effectiveURL(svc), envelope{
		Title:       fmt.Sprintf("%s recovered", svc.Name),
		Body:        substituteTemplate(w.BodyTemplate, result),
		Kind:        "recovery",
		ServiceName: svc.Name,
		ServiceURL:  svc.URL,
		StatusCode:  result.HTTPStatus,
		Timestamp:   result.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (w *Webhook) SendTestMessage(ctx context.Context, text string) error {
	return w.send(ctx, w.Global.DefaultWebhookURL, envelope{
		Title:     "test message",
		Body:      text,
		Kind:      "info",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

var _ Notifier = (*Webhook)(nil)
