package agents

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lexcodex/delver/framework"
	"github.com/lexcodex/delver/llm"
)

// ModelBuilder constructs a client bound to one model identifier. The
// factory takes it as an injection point so tests can substitute stubs
// without reaching into package state.
type ModelBuilder func(modelID string) framework.LanguageModel

// Factory owns the process-wide agent handle. It probes the candidate models
// in order, caches the first one that answers, and hands the same handle
// back until Reset invalidates it. Probing is expensive, so Get never
// re-probes on its own; after a mid-session capacity failure the caller
// resets the cache explicitly and the next Get falls through to the next
// candidate.
type Factory struct {
	mu     sync.Mutex
	cfg    *Config
	build  ModelBuilder
	tools  *framework.ToolRegistry
	handle *Handle
	active string
	now    func() time.Time
}

// NewFactory wires the default Groq-backed factory.
func NewFactory(cfg *Config, tools *framework.ToolRegistry) *Factory {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	f := &Factory{cfg: cfg, tools: tools, now: time.Now}
	f.build = func(modelID string) framework.LanguageModel {
		client := llm.NewGroqClient(cfg.Endpoint, apiKeyFromEnv(), modelID)
		client.SetDebugLogging(cfg.Logging.LLM)
		return client
	}
	return f
}

// NewFactoryWithBuilder substitutes the model builder, for tests.
func NewFactoryWithBuilder(cfg *Config, tools *framework.ToolRegistry, build ModelBuilder) *Factory {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Factory{cfg: cfg, tools: tools, build: build, now: time.Now}
}

// Get returns the cached handle, probing the candidate list only when no
// handle exists. The first candidate whose probe succeeds becomes the active
// model; if every candidate fails, the error names the whole attempted set.
func (f *Factory) Get(ctx context.Context) (*Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handle != nil {
		return f.handle, nil
	}

	var failures []string
	for _, modelID := range f.cfg.Models {
		model := f.build(modelID)
		if err := f.probe(ctx, model, modelID); err != nil {
			if f.cfg.Logging.Agent {
				log.Printf("[factory] model %s unavailable (%v), trying next", modelID, err)
			}
			failures = append(failures, fmt.Sprintf("%s: %v", modelID, err))
			continue
		}
		f.handle = &Handle{
			model:         model,
			modelID:       modelID,
			tools:         f.tools,
			systemPrompt:  buildSystemPrompt(f.now()),
			temperature:   f.cfg.Temperature,
			maxTokens:     f.cfg.MaxTokens,
			maxIterations: f.cfg.MaxIterations,
			debug:         f.cfg.Logging.Agent,
		}
		f.active = modelID
		return f.handle, nil
	}

	return nil, fmt.Errorf("all models are unavailable: [%s]; check https://groqstatus.com for incidents",
		strings.Join(failures, "; "))
}

// probe sends a trivial prompt and discards the response. The point is only
// to learn whether the candidate answers at all before committing to it.
func (f *Factory) probe(ctx context.Context, model framework.LanguageModel, modelID string) error {
	_, err := model.Chat(ctx, []framework.Message{{Role: "user", Content: "ping"}}, &framework.LLMOptions{
		Model:     modelID,
		MaxTokens: 8,
	})
	return err
}

// ActiveModel reports the last successfully probed model. It stays at its
// previous value across Reset until the next Get succeeds, and is empty
// before the first success.
func (f *Factory) ActiveModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Reset drops the cached handle so the next Get re-probes the candidates.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handle = nil
}
