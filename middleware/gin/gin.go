// Package gin provides Gin middleware that refuses requests early when the
// usage ledger cannot cover their cost.
package gin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/promptstudio/pkg/ledger"
)

// Gate is the part of the usage ledger the middleware needs.
type Gate interface {
	CheckAvailable(ctx context.Context, kind ledger.Kind, amount int) bool
	RemainingDisplay(ctx context.Context, kind ledger.Kind) ledger.Display
	TimeUntilReset() time.Duration
}

// AmountExtractor calculates the units a request will need from the Gin context
type AmountExtractor func(c *gongin.Context) (int, error)

// Config holds middleware configuration
type Config struct {
	// Ledger is checked before the handler runs (required)
	Ledger Gate

	// Kind is the metered resource (required)
	Kind ledger.Kind

	// GetAmount calculates the units needed.
	// Default: FixedAmount(1)
	GetAmount AmountExtractor

	// ExhaustedStatusCode is returned when the quota cannot cover the request.
	// Default: 429 (Too Many Requests)
	ExhaustedStatusCode int

	// OnExhausted is called when the quota cannot cover the request.
	// If nil, responds with ExhaustedStatusCode and a JSON body.
	OnExhausted func(c *gongin.Context, d ledger.Display)

	// OnError is called when the amount cannot be determined.
	// If nil, returns 400 Bad Request
	OnError func(c *gongin.Context, err error)
}

// Middleware creates a Gin middleware that checks the ledger without recording usage
func Middleware(cfg Config) gongin.HandlerFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Ledger == nil {
		panic("promptstudio/gin: Config.Ledger is required")
	}
	if _, err := ledger.ParseKind(string(cfg.Kind)); err != nil {
		panic("promptstudio/gin: " + err.Error())
	}

	if cfg.GetAmount == nil {
		cfg.GetAmount = FixedAmount(1)
	}
	if cfg.ExhaustedStatusCode == 0 {
		cfg.ExhaustedStatusCode = http.StatusTooManyRequests
	}

	return func(c *gongin.Context) {
		amount, err := cfg.GetAmount(c)
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.JSON(http.StatusBadRequest, gongin.H{"code": "invalid_input", "message": err.Error()})
			}
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		if !cfg.Ledger.CheckAvailable(ctx, cfg.Kind, amount) {
			d := cfg.Ledger.RemainingDisplay(ctx, cfg.Kind)
			if d.ResetIn == 0 {
				d.ResetIn = cfg.Ledger.TimeUntilReset()
			}
			setQuotaHeaders(c, d)
			if cfg.OnExhausted != nil {
				cfg.OnExhausted(c, d)
			} else {
				defaultExhausted(c, d, cfg.ExhaustedStatusCode)
			}
			c.Abort()
			return
		}

		c.Next()
	}
}

func setQuotaHeaders(c *gongin.Context, d ledger.Display) {
	c.Header("X-Quota-Kind", string(d.Kind))
	c.Header("X-Quota-Limit", strconv.Itoa(d.Limit))
	c.Header("X-Quota-Used", strconv.Itoa(d.Count))
	if d.ResetIn > 0 {
		c.Header("Retry-After", fmt.Sprintf("%.0f", (d.ResetIn + time.Second - 1).Truncate(time.Second).Seconds()))
	}
}

func defaultExhausted(c *gongin.Context, d ledger.Display, statusCode int) {
	c.JSON(statusCode, gongin.H{
		"code":    "quota_exhausted",
		"message": fmt.Sprintf("Daily %s quota is used up. It resets in %s.", d.Kind, ledger.FormatCountdown(d.ResetIn)),
		"used":    d.Count,
		"limit":   d.Limit,
	})
}

// Convenience extractors for Amount

// FixedAmount returns an AmountExtractor that always returns a fixed amount
func FixedAmount(amount int) AmountExtractor {
	return func(*gongin.Context) (int, error) {
		return amount, nil
	}
}

// DynamicCost returns an AmountExtractor that calculates cost based on a function
func DynamicCost(costFunc func(*gongin.Context) int) AmountExtractor {
	return func(c *gongin.Context) (int, error) {
		return costFunc(c), nil
	}
}

// JSONIntField returns an AmountExtractor that reads an integer field from a
// JSON object body and passes it through normalize. The body is restored so
// the handler can still bind it.
func JSONIntField(field string, normalize func(int) int) AmountExtractor {
	return func(c *gongin.Context) (int, error) {
		n := 0
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				return 0, err
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))

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
