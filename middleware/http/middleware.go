// Package http provides net/http middleware that refuses requests early when
// the usage ledger cannot cover their cost.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/mihaimyh/promptstudio/pkg/ledger"
)

// Gate is the part of the usage ledger the middleware needs.
type Gate interface {
	CheckAvailable(ctx context.Context, kind ledger.Kind, amount int) bool
	RemainingDisplay(ctx context.Context, kind ledger.Kind) ledger.Display
	TimeUntilReset() time.Duration
}

// AmountExtractor calculates the units a request will need from the request.
type AmountExtractor func(r *http.Request) (int, error)

// Config holds middleware configuration
type Config struct {
	// Ledger is checked before the handler runs (required)
	Ledger Gate

	// Kind is the metered resource (required)
	Kind ledger.Kind

	// GetAmount calculates the units needed.
	// Default: FixedAmount(1)
	GetAmount AmountExtractor

	// OnExhausted is called when the request does not fit the remaining quota.
	// If nil, returns 429 with Retry-After and a JSON body.
	OnExhausted func(w http.ResponseWriter, r *http.Request, d ledger.Display)

	// OnError is called when the amount cannot be determined.
	// If nil, returns 400 with a JSON body.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware creates an HTTP middleware that checks the ledger. It never
// records usage; the handler does that once the work has happened.
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.Ledger == nil {
		panic("promptstudio/http: Config.Ledger is required")
	}
	if _, err := ledger.ParseKind(string(config.Kind)); err != nil {
		panic("promptstudio/http: " + err.Error())
	}
	if config.GetAmount == nil {
		config.GetAmount = FixedAmount(1)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			amount, err := config.GetAmount(r)
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())
				}
				return
			}

			ctx := r.Context()
			if !config.Ledger.CheckAvailable(ctx, config.Kind, amount) {
				d := config.Ledger.RemainingDisplay(ctx, config.Kind)
				if d.ResetIn == 0 {
					d.ResetIn = config.Ledger.TimeUntilReset()
				}
				SetQuotaHeaders(w, d)
				if config.OnExhausted != nil {
					config.OnExhausted(w, r, d)
				} else {
					defaultExhausted(w, d)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetQuotaHeaders adds the standing of one kind to the response headers,
// plus Retry-After when a reset countdown is known.
func SetQuotaHeaders(w http.ResponseWriter, d ledger.Display) {
	w.Header().Set("X-Quota-Kind", string(d.Kind))
	w.Header().Set("X-Quota-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-Quota-Used", strconv.Itoa(d.Count))
	if d.ResetIn > 0 {
		w.Header().Set("Retry-After", RetryAfter(d.ResetIn))
	}
}

// RetryAfter renders d as whole seconds, rounded up.
func RetryAfter(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

// ErrorBody is the JSON error shape shared by the middleware and the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Code: code, Message: message})
}

func defaultExhausted(w http.ResponseWriter, d ledger.Display) {
	msg := fmt.Sprintf("Daily %s quota is used up. It resets in %s.", d.Kind, ledger.FormatCountdown(d.ResetIn))
	WriteError(w, http.StatusTooManyRequests, "quota_exhausted", msg)
}

// Common extractors for convenience

// FixedAmount returns an AmountExtractor that always returns a fixed amount
func FixedAmount(amount int) AmountExtractor {
	return func(*http.Request) (int, error) {
		return amount, nil
	}
}

// JSONIntField returns an AmountExtractor that reads an integer field from a
// JSON object body and passes it through normalize. A missing field or an
// empty body yields normalize(0). The body is restored for the next handler.
func JSONIntField(field string, normalize func(int) int) AmountExtractor {
	return func(r *http.Request) (int, error) {
		n := 0
		if r.Body != nil && r.Body != http.NoBody {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				return 0, err
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(bytes.TrimSpace(body)) > 0 {
				var fields map[string]json.RawMessage
				if err := json.Unmarshal(body, &fields); err != nil {
					return 0, fmt.Errorf("request body is not a JSON object: %w", err)
				}
				if raw, ok := fields[field]; ok && string(raw) != "null" {
					if err := json.Unmarshal(raw, &n); err != nil {
						return 0, fmt.Errorf("field %q must be an integer", field)
					}
				}
			}
		}
		if normalize != nil {
			n = normalize(n)
		}
		return n, nil
	}
}
