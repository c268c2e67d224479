// Package api exposes the workflows, the usage ledger and the content
// libraries over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmw "github.com/mihaimyh/promptstudio/middleware/http"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
	"github.com/mihaimyh/promptstudio/pkg/obs"
	"github.com/mihaimyh/promptstudio/pkg/pipeline"
)

// Handler provides the HTTP endpoints
type Handler struct {
	config Config
	logger obs.Logger
}

// Routes builds the router. Workflow routes are wrapped by quota gates that
// refuse a request before its body is decoded.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.limitBody)

	r.Get("/usage", h.GetUsage)

	r.Route("/workflows", func(r chi.Router) {
		r.With(h.gate(pipeline.WorkflowImages)).Post("/images", h.CreateImages)
		r.With(h.gate(pipeline.WorkflowTranslate)).Post("/translate", h.Translate)
		r.With(h.gate(pipeline.WorkflowIdea)).Post("/idea", h.Idea)
		r.With(h.gate(pipeline.WorkflowRandom)).Post("/random", h.Random)
		r.With(h.gate(pipeline.WorkflowOptimize)).Post("/optimize", h.Optimize)
		r.With(h.gate(pipeline.WorkflowDetailed)).Post("/detailed", h.Detailed)
		r.With(h.gate(pipeline.WorkflowCheck)).Post("/check", h.Check)
		r.With(h.gate(pipeline.WorkflowChat)).Post("/chat", h.Chat)
	})

	r.Route("/library", func(r chi.Router) {
		r.Get("/prompts", h.ListPrompts)
		r.Delete("/prompts/{id}", h.RemovePrompt)
		r.Get("/images", h.ListImages)
		r.Delete("/images/{id}", h.RemoveImage)
	})

	r.Get("/credential", h.GetCredential)
	r.Put("/credential", h.SetCredential)
	r.Delete("/credential", h.ClearCredential)

	return r
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// gate checks the declared gate cost of workflow. The image gate is the
// clamped requested count.
func (h *Handler) gate(workflow string) func(http.Handler) http.Handler {
	wf, ok := pipeline.Lookup(workflow)
	if !ok {
		panic("api: unknown workflow " + workflow)
	}
	amount := httpmw.FixedAmount(wf.Gate.Amount)
	if workflow == pipeline.WorkflowImages {
		amount = httpmw.JSONIntField("count", pipeline.ClampImageCount)
	}
	return httpmw.Middleware(httpmw.Config{
		Ledger:    h.config.Ledger,
		Kind:      wf.Gate.Kind,
		GetAmount: amount,
		OnExhausted: func(w http.ResponseWriter, _ *http.Request, d ledger.Display) {
			perr := &pipeline.Error{Kind: pipeline.KindQuotaExhausted, Workflow: workflow, Resource: d.Kind, ResetIn: d.ResetIn}
			httpmw.WriteError(w, http.StatusTooManyRequests, string(perr.Kind), perr.Message())
		},
		OnError: func(w http.ResponseWriter, _ *http.Request, err error) {
			httpmw.WriteError(w, http.StatusBadRequest, string(pipeline.KindInvalidInput), err.Error())
		},
	})
}

// GetUsage returns today's standing for both kinds
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.config.Ledger

	text := l.RemainingDisplay(ctx, ledger.KindText)
	image := l.RemainingDisplay(ctx, ledger.KindImage)
	h.writeJSON(w, r, http.StatusOK, UsageResponse{
		Date:    l.Usage(ctx, ledger.KindText).Day,
		Text:    text,
		Image:   image,
		ResetIn: ledger.FormatCountdown(l.TimeUntilReset()),
		Summary: []string{text.String(), image.String()},
	})
}

// CreateImages runs the image workflow
func (h *Handler) CreateImages(w http.ResponseWriter, r *http.Request) {
	var req ImagesRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.config.Orchestrator.CreateImages(r.Context(), req.Prompt, req.Count)
	h.respond(w, r, res, err)
}

// Translate runs the translation workflow
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.config.Orchestrator.Translate(r.Context(), req.Text)
	h.respond(w, r, res, err)
}

// Idea runs the idea-to-prompt workflow
func (h *Handler) Idea(w http.ResponseWriter, r *http.Request) {
	var req IdeaRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.config.Orchestrator.IdeaToPrompt(r.Context(), req.Idea)
	h.respond(w, r, res, err)
}

// Random runs the random prompt workflow; the body is ignored
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	res, err := h.config.Orchestrator.RandomPrompt(r.Context())
	h.respond(w, r, res, err)
}

// Optimize runs the prompt optimization workflow
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	source, ok := pipeline.ParseLanguage(string(req.Source))
	if !ok {
		source = req.Source
	}
	res, err := h.config.Orchestrator.OptimizePrompt(r.Context(), source, req.Text)
	h.respond(w, r, res, err)
}

// Detailed composes a prompt from a structured form
func (h *Handler) Detailed(w http.ResponseWriter, r *http.Request) {
	var form pipeline.DetailedForm
	if !h.decode(w, r, &form) {
		return
	}
	res, err := h.config.Orchestrator.DetailedPrompt(r.Context(), form)
	h.respond(w, r, res, err)
}

// Check runs the prompt analysis workflow
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.config.Orchestrator.CheckPrompt(r.Context(), req.Text)
	h.respond(w, r, res, err)
}

// Chat answers a message, or describes an attached image as a prompt
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Image) > 0 {
		mime := req.MimeType
		if mime == "" {
			mime = http.DetectContentType(req.Image)
		}
		res, err := h.config.Orchestrator.DescribeImage(r.Context(), req.Image, mime)
		h.respond(w, r, res, err)
		return
	}
	res, err := h.config.Orchestrator.Chat(r.Context(), req.Message)
	h.respond(w, r, res, err)
}

// ListPrompts returns the prompt library, honoring If-None-Match
func (h *Handler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	entries, tag, err := h.config.Prompts.Snapshot(r.Context())
	if err != nil {
		h.handleError(w, r, fmt.Errorf("failed to list prompts: %w", err))
		return
	}
	if notModified(w, r, tag) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, PromptsResponse{Tag: tag, Entries: entries})
}

// RemovePrompt deletes one prompt entry
func (h *Handler) RemovePrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Prompts.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, fmt.Errorf("failed to remove prompt: %w", err))
		return
	}
	if _, tag, err := h.config.Prompts.Snapshot(r.Context()); err == nil {
		setETag(w, tag)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListImages returns the image library, honoring If-None-Match
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	entries, tag, err := h.config.Images.Snapshot(r.Context())
	if err != nil {
		h.handleError(w, r, fmt.Errorf("failed to list images: %w", err))
		return
	}
	if notModified(w, r, tag) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, ImagesResponse{Tag: tag, Entries: entries})
}

// RemoveImage deletes one image entry
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Images.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, fmt.Errorf("failed to remove image: %w", err))
		return
	}
	if _, tag, err := h.config.Images.Snapshot(r.Context()); err == nil {
		setETag(w, tag)
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCredential reports whether a key is configured; the key is never returned
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, CredentialResponse{Configured: h.config.Credentials.Configured()})
}

// SetCredential stores and activates an API key
func (h *Handler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		httpmw.WriteError(w, http.StatusBadRequest, string(pipeline.KindInvalidInput), "api_key is required")
		return
	}
	if err := h.config.Credentials.Set(r.Context(), req.APIKey); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, CredentialResponse{Configured: h.config.Credentials.Configured()})
}

// ClearCredential forgets the API key
func (h *Handler) ClearCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Credentials.Clear(r.Context()); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusFor maps a workflow failure kind to an HTTP status code
func StatusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindQuotaExhausted, pipeline.KindProviderQuotaExceeded:
		return http.StatusTooManyRequests
	case pipeline.KindProviderBlocked, pipeline.KindDetectionUnrecognized:
		return http.StatusUnprocessableEntity
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindNotConfigured:
		return http.StatusPreconditionFailed
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, res any, err error) {
	if err == nil {
		h.writeJSON(w, r, http.StatusOK, res)
		return
	}

	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		h.handleError(w, r, err)
		return
	}
	if perr.Kind == pipeline.KindQuotaExhausted && perr.ResetIn > 0 {
		w.Header().Set("Retry-After", httpmw.RetryAfter(perr.ResetIn))
	}
	httpmw.WriteError(w, StatusFor(perr.Kind), string(perr.Kind), perr.Message())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpmw.WriteError(w, http.StatusRequestEntityTooLarge, string(pipeline.KindInvalidInput),
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return false
		}
		if errors.Is(err, io.EOF) {
			return true
		}
		httpmw.WriteError(w, http.StatusBadRequest, string(pipeline.KindInvalidInput), "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func etag(tag string) string {
	return `"` + tag + `"`
}

func setETag(w http.ResponseWriter, tag string) {
	w.Header().Set("ETag", etag(tag))
}

func notModified(w http.ResponseWriter, r *http.Request, tag string) bool {
	setETag(w, tag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.TrimPrefix(match, "W/") == etag(tag) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", obs.F("path", r.URL.Path), obs.Err(err))
	}
}

// handleError handles unexpected errors
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", obs.F("path", r.URL.Path), obs.F("request_id", middleware.GetReqID(r.Context())), obs.Err(err))
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}
	httpmw.WriteError(w, http.StatusInternalServerError, "internal", err.Error())
}
