package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/promptstudio/pkg/genai"
	"github.com/mihaimyh/promptstudio/pkg/ledger"
	"github.com/mihaimyh/promptstudio/pkg/library"
	"github.com/mihaimyh/promptstudio/storage/memory"
)

var errBoom = errors.New("upstream 500")

type fakeGen struct {
	mu      sync.Mutex
	prompts []string
	counts  []int

	text   func(prompt string) (string, error)
	vision func(prompt string, image []byte, mime string) (string, error)
	images func(prompt string, n int) (*genai.ImageBatch, error)
}

func (f *fakeGen) GenerateText(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	fn := f.text
	f.mu.Unlock()
	if fn == nil {
		return "", errBoom
	}
	return fn(prompt)
}

func (f *fakeGen) GenerateTextWithImage(_ context.Context, prompt string, image []byte, mime string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	fn := f.vision
	f.mu.Unlock()
	if fn == nil {
		return "", errBoom
	}
	return fn(prompt, image, mime)
}

func (f *fakeGen) GenerateImages(_ context.Context, prompt string, n int) (*genai.ImageBatch, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.counts = append(f.counts, n)
	fn := f.images
	f.mu.Unlock()
	if fn == nil {
		return nil, errBoom
	}
	return fn(prompt, n)
}

func (f *fakeGen) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type note struct {
	run     Run
	success bool
	kind    Kind
	message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (r *recordingNotifier) Success(run Run, message string) {
	r.mu.Lock()
	r.notes = append(r.notes, note{run: run, success: true, message: message})
	r.mu.Unlock()
}

func (r *recordingNotifier) Error(run Run, kind Kind, message string) {
	r.mu.Lock()
	r.notes = append(r.notes, note{run: run, kind: kind, message: message})
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

type harness struct {
	orch    *Orchestrator
	ledger  *ledger.Ledger
	prompts *library.Prompts
	images  *library.Images
	gen     *fakeGen
	client  *genai.Client
	notes   *recordingNotifier
}

var testNow = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, limits ledger.Limits) *harness {
	t.Helper()
	store := memory.New()

	l, err := ledger.New(store, ledger.Config{Limits: limits, Now: func() time.Time { return testNow }})
	require.NoError(t, err)

	gen := &fakeGen{}
	client, err := genai.NewClient(genai.ClientConfig{Factory: func(string) (genai.Generator, error) { return gen, nil }})
	require.NoError(t, err)
	require.NoError(t, client.Configure("test-key"))

	h := &harness{
		ledger:  l,
		prompts: library.NewPrompts(store, library.Config{}),
		images:  library.NewImages(store, library.Config{}),
		gen:     gen,
		client:  client,
		notes:   &recordingNotifier{},
	}
	h.orch, err = New(Config{
		Ledger:    h.ledger,
		Generator: client,
		Prompts:   h.prompts,
		Images:    h.images,
		Notifier:  h.notes,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) usage(kind ledger.Kind) int {
	return h.ledger.Usage(context.Background(), kind).Count
}

func (h *harness) savedPrompts(t *testing.T) []string {
	t.Helper()
	list, err := h.prompts.List(context.Background())
	require.NoError(t, err)
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Prompt
	}
	return out
}

// router answers text prompts by their leading instruction.
type router struct {
	detect    func() (string, error)
	translate func(to Language) (string, error)
	hybrid    func() (string, error)
	generate  func() (string, error)
	other     func(prompt string) (string, error)
}

func (r router) respond(prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "Detect the language") && r.detect != nil:
		return r.detect()
	case strings.HasPrefix(prompt, "Translate the following text from") && r.translate != nil:
		for _, l := range Languages {
			if strings.Contains(prompt, " to "+string(l)+".") {
				return r.translate(l)
			}
		}
	case strings.HasPrefix(prompt, "You are an expert prompt translator") && r.hybrid != nil:
		return r.hybrid()
	case (strings.HasPrefix(prompt, "Based on the following idea") || strings.HasPrefix(prompt, "Generate a single")) && r.generate != nil:
		return r.generate()
	}
	if r.other != nil {
		return r.other(prompt)
	}
	return "", errBoom
}

func ok(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}
