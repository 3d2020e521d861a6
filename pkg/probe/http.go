package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"sentrypulse/pkg/config"
	"sentrypulse/pkg/sentryerr"
)

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true, "PATCH": true,
}

// Options carries the retry/timeout/shared-header settings effective at
// the time of a probe. These come from GlobalConfig and may change across
// a hot-reload, so they travel with each call rather than living on the
// Executor.
type Options struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	SharedHeaders map[string]string
}

// Executor runs HTTP probes against configured services. The underlying
// http.Client is shared and safe for concurrent use across service tasks.
type Executor struct {
	client *http.Client
}

// NewExecutor builds an Executor with a shared client. Per-call timeouts
// are enforced via context, so the client itself carries no fixed timeout.
func NewExecutor() *Executor {
	return &Executor{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return nil // follow redirects by default
			},
		},
	}
}

// Check runs a probe against svc using opts.Timeout, retrying on transport
// failure per opts.RetryAttempts/RetryDelay. It never returns an error for
// an HTTP-level failure — that is encoded into Result.Status/ErrorText —
// and only errors on malformed service input (e.g. an unknown method).
func (e *Executor) Check(ctx context.Context, svc config.ServiceConfig, opts Options) (Result, error) {
	return e.CheckWithTimeout(ctx, svc, opts, opts.Timeout)
}

// CheckWithTimeout is Check with an explicit timeout override.
func (e *Executor) CheckWithTimeout(ctx context.Context, svc config.ServiceConfig, opts Options, timeout time.Duration) (Result, error) {
	method := strings.ToUpper(svc.HTTPMethod)
	if method == "" {
		method = "GET"
	}
	if !allowedMethods[method] {
		return Result{}, &sentryerr.ProbeInputError{Service: svc.Name, Reason: fmt.Sprintf("unknown HTTP method %q", svc.HTTPMethod)}
	}

	attempts := opts.RetryAttempts + 1
	if attempts < 1 {
		attempts = 1
	}

	var last Result
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return last, nil
			case <-time.After(opts.RetryDelay):
			}
		}

		last = e.attempt(ctx, svc, method, timeout, opts.SharedHeaders)

		if last.Status == StatusUp {
			return last, nil
		}
		if isStatusCodeMismatch(last) {
			// The service responded; a status-code mismatch is not retried.
			return last, nil
		}
	}

	return last, nil
}

func isStatusCodeMismatch(r Result) bool {
	return r.HTTPStatus != 0 && strings.HasPrefix(r.ErrorText, "HTTP ")
}

func (e *Executor) attempt(ctx context.Context, svc config.ServiceConfig, method string, timeout time.Duration, sharedHeaders map[string]string) Result {
	result := Result{
		ID:            uuid.NewString(),
		ServiceName:   svc.Name,
		ServiceURL:    svc.URL,
		Method:        method,
		Timestamp:     time.Now().UTC(),
		Status:        StatusDown,
		ResponseBytes: -1,
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if svc.JSONBody != "" {
		body = bytes.NewReader([]byte(svc.JSONBody))
	}

	req, err := http.NewRequestWithContext(reqCtx, method, svc.URL, body)
	if err != nil {
		result.ErrorText = "Invalid request"
		return result
	}
	if svc.JSONBody != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	// Global shared headers apply first; per-service headers win on conflict.
	for k, v := range sharedHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range svc.RequestHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	result.Elapsed = time.Since(start)

	if err != nil {
		result.ErrorText = classifyTransportError(err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.HTTPStatus = resp.StatusCode
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			result.ResponseBytes = n
		}
	}
	if server := resp.Header.Get("Server"); server != "" {
		result.Metadata = map[string]string{"server": server}
	}

	if !statusCodeExpected(resp.StatusCode, svc.ExpectedStatusCodes) {
		result.Status = StatusDown
		result.ErrorText = fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return result
	}

	if len(svc.ResponseMatch) > 0 {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			result.ErrorText = "Response decode error"
			return result
		}
		if ok, reason := evaluateResponseMatch(raw, resp.Header, svc.ResponseMatch); !ok {
			result.Status = StatusDown
			result.ErrorText = reason
			return result
		}
	}

	result.Status = StatusUp
	return result
}

func statusCodeExpected(code int, expected []int) bool {
	for _, e := range expected {
		if e == code {
			return true
		}
	}
	return false
}

// classifyTransportError maps a transport-level failure to one of the
// fixed error strings named in spec §4.5.
func classifyTransportError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "Request timeout"
		}
		err = urlErr.Unwrap()
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS resolution failed"
	}

	var certErr x509.UnknownAuthorityError
	var certErr2 x509.CertificateInvalidError
	var certErr3 x509.HostnameError
	var tlsErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &certErr2) || errors.As(err, &certErr3) || errors.As(err, &tlsErr) {
		return "SSL/TLS certificate error"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return "Request timeout"
		}
		if strings.Contains(opErr.Error(), "connection refused") {
			return "Connection refused"
		}
		return "Network error"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timeout"
	}

	return fmt.Sprintf("Request failed: %s", err.Error())
}

// evaluateResponseMatch checks every configured expectation against the
// response body/headers, in order, short-circuiting on the first failure.
func evaluateResponseMatch(body []byte, headers http.Header, expectations []config.Expectation) (bool, string) {
	for _, exp := range expectations {
		var actual string
		switch exp.Type {
		case "header":
			actual = headers.Get(exp.Header)
		case "body":
			actual = string(body)
		case "json":
			res := gjson.GetBytes(body, exp.JSONPath)
			if !res.Exists() {
				return false, fmt.Sprintf("response_match: field not found: %s", exp.JSONPath)
			}
			actual = res.String()
		}

		ok, err := evaluateOperator(exp.Operator, actual, exp.Value)
		if err != nil {
			return false, fmt.Sprintf("response_match: %v", err)
		}
		if !ok {
			return false, fmt.Sprintf("response_match: %s %s %s failed (actual: %s)", exp.JSONPath+exp.Header, exp.Operator, exp.Value, actual)
		}
	}
	return true, ""
}

func evaluateOperator(op, actual, target string) (bool, error) {
	switch op {
	case "==":
		return actual == target, nil
	case "contains":
		return strings.Contains(actual, target), nil
	case "matches":
		return regexp.MatchString(target, actual)
	case ">", "<":
		actNum, err1 := strconv.ParseFloat(actual, 64)
		tarNum, err2 := strconv.ParseFloat(target, 64)
		if err1 != nil || err2 != nil {
			return false, fmt.Errorf("operator %q requires numeric values, got %q and %q", op, actual, target)
		}
		if op == ">" {
			return actNum > tarNum, nil
		}
		return actNum < tarNum, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}
