package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/promptstudio/pkg/ledger"
	"github.com/mihaimyh/promptstudio/storage/memory"
)

var fixedNow = time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC)

func newLedger(t *testing.T, limits ledger.Limits) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(memory.New(), ledger.Config{Limits: limits, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return l
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_AllowsWithinQuota(t *testing.T) {
	l := newLedger(t, ledger.Limits{Text: 5, Image: 5})
	var called bool
	h := Middleware(Config{Ledger: l, Kind: ledger.KindText, GetAmount: FixedAmount(3)})(okHandler(&called))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/workflows/translate", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, 0, l.Usage(context.Background(), ledger.KindText).Count, "the gate never records usage")
}

func TestMiddleware_RefusesWhenExhausted(t *testing.T) {
	l := newLedger(t, ledger.Limits{Text: 5, Image: 5})
	l.Record(context.Background(), ledger.KindText, 3)

	var called bool
	h := Middleware(Config{Ledger: l, Kind: ledger.KindText, GetAmount: FixedAmount(3)})(okHandler(&called))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/workflows/translate", http.NoBody))

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5400", w.Header().Get("Retry-After"))
	assert.Equal(t, "5", w.Header().Get("X-Quota-Limit"))
	assert.Equal(t, "3", w.Header().Get("X-Quota-Used"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "quota_exhausted", body.Code)
	assert.Contains(t, body.Message, "1h 30m 0s")
}

func TestMiddleware_TextExhaustionBlocksImages(t *testing.T) {
	l := newLedger(t, ledger.Limits{Text: 1, Image: 5})
	l.Record(context.Background(), ledger.KindText, 1)

	var called bool
	h := Middleware(Config{Ledger: l, Kind: ledger.KindImage})(okHandler(&called))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/workflows/images", http.NoBody))
	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestMiddleware_CustomHandlers(t *testing.T) {
	l := newLedger(t, ledger.Limits{Text: 1, Image: 1})
	l.Record(context.Background(), ledger.KindImage, 1)

	var seen ledger.Display
	h := Middleware(Config{
		Ledger: l,
		Kind:   ledger.KindImage,
		OnExhausted: func(w http.ResponseWriter, _ *http.Request, d ledger.Display) {
			seen = d
			w.WriteHeader(http.StatusPaymentRequired)
		},
	})(http.NotFoundHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", http.NoBody))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.True(t, seen.Exhausted)
	assert.Equal(t, ledger.KindImage, seen.Kind)
}

func TestMiddleware_AmountError(t *testing.T) {
	l := newLedger(t, ledger.Limits{Text: 5, Image: 5})
	var called bool
	h := Middleware(Config{
		Ledger:    l,
		Kind:      ledger.KindImage,
		GetAmount: JSONIntField("count", nil),
	})(okHandler(&called))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":"four"}`)))
	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddleware_PanicsOnBadConfig(t *testing.T) {
	assert.Panics(t, func() { Middleware(Config{Kind: ledger.KindText}) })
	assert.Panics(t, func() { Middleware(Config{Ledger: newLedger(t, ledger.Limits{}), Kind: "video"}) })
}

func TestJSONIntField(t *testing.T) {
	double := func(n int) int { return n * 2 }

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "present", body: `{"prompt":"x","count":3}`, want: 6},
		{name: "missing", body: `{"prompt":"x"}`, want: 0},
		{name: "null", body: `{"count":null}`, want: 0},
		{name: "empty body", body: ``, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			n, err := JSONIntField("count", double)(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			rest, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(rest), "body is restored")
		})
	}

	_, err := JSONIntField("count", nil)(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[1]`)))
	assert.Error(t, err)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	assert.Equal(t, "2", RetryAfter(1500*time.Millisecond))
	assert.Equal(t, "60", RetryAfter(time.Minute))
}
