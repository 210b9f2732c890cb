package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/delver/framework"
)

// stubModel scripts Chat/ChatWithTools responses for one candidate.
type stubModel struct {
	probeErr   error
	probeCalls int
	responses  []*framework.LLMResponse
	idx        int
}

func (s *stubModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	s.probeCalls++
	if s.probeErr != nil {
		return nil, s.probeErr
	}
	return &framework.LLMResponse{Text: "pong"}, nil
}

func (s *stubModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	if s.idx >= len(s.responses) {
		return nil, errors.New("no scripted response")
	}
	resp := s.responses[s.idx]
	s.idx++
	return resp, nil
}

func newTestFactory(models map[string]*stubModel, order ...string) *Factory {
	cfg := DefaultConfig()
	cfg.Models = order
	return NewFactoryWithBuilder(cfg, framework.NewToolRegistry(), func(modelID string) framework.LanguageModel {
		return models[modelID]
	})
}

func TestGetCachesHandle(t *testing.T) {
	primary := &stubModel{}
	factory := newTestFactory(map[string]*stubModel{"primary": primary}, "primary")

	first, err := factory.Get(context.Background())
	require.NoError(t, err)
	second, err := factory.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, primary.probeCalls, "liveness probe must run exactly once across both calls")
	assert.Equal(t, "primary", factory.ActiveModel())
}

func TestGetFallsBackToNextCandidate(t *testing.T) {
	primary := &stubModel{probeErr: errors.New("HTTP 503")}
	fallback := &stubModel{}
	factory := newTestFactory(map[string]*stubModel{"primary": primary, "fallback": fallback}, "primary", "fallback")

	handle, err := factory.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", handle.ModelID())
	assert.Equal(t, "fallback", factory.ActiveModel())
	assert.Equal(t, 1, primary.probeCalls)
	assert.Equal(t, 1, fallback.probeCalls)
}

func TestGetAllCandidatesUnavailable(t *testing.T) {
	factory := newTestFactory(map[string]*stubModel{
		"a": {probeErr: errors.New("down")},
		"b": {probeErr: errors.New("also down")},
	}, "a", "b")

	_, err := factory.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all models are unavailable")
	assert.Contains(t, err.Error(), "a: down")
	assert.Contains(t, err.Error(), "b: also down")
	assert.Empty(t, factory.ActiveModel())
}

func TestResetForcesReprobe(t *testing.T) {
	primary := &stubModel{}
	factory := newTestFactory(map[string]*stubModel{"primary": primary}, "primary")

	_, err := factory.Get(context.Background())
	require.NoError(t, err)

	factory.Reset()
	assert.Equal(t, "primary", factory.ActiveModel(), "reset must not clear the last reported model")

	_, err = factory.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, primary.probeCalls)
}

func TestSystemPromptCarriesCurrentDate(t *testing.T) {
	primary := &stubModel{}
	factory := newTestFactory(map[string]*stubModel{"primary": primary}, "primary")

	handle, err := factory.Get(context.Background())
	require.NoError(t, err)
	assert.Contains(t, handle.systemPrompt, "Research Agent")
	assert.NotContains(t, handle.systemPrompt, "{current_date}")
	assert.NotContains(t, handle.systemPrompt, "{current_time}")
}
