package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/delver/agents"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	prev := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { cfgFile = prev })
	return cfgFile
}

func TestConfigSetPersistsTypedValues(t *testing.T) {
	path := useTempConfig(t)

	set := newConfigSetCmd()
	set.SetOut(&bytes.Buffer{})
	require.NoError(t, set.RunE(set, []string{"max_iterations", "12"}))
	require.NoError(t, set.RunE(set, []string{"logging.llm_debug", "true"}))
	require.NoError(t, set.RunE(set, []string{"models", "llama-3.3-70b-versatile, openai/gpt-oss-120b"}))

	loaded, err := agents.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.MaxIterations)
	assert.True(t, loaded.Logging.LLM)
	assert.Equal(t, []string{"llama-3.3-70b-versatile", "openai/gpt-oss-120b"}, loaded.Models)
}

func TestConfigGetReadsNestedKey(t *testing.T) {
	path := useTempConfig(t)
	cfg := agents.DefaultConfig()
	cfg.Logging.Agent = true
	require.NoError(t, agents.SaveConfig(path, cfg))

	get := newConfigGetCmd()
	var out bytes.Buffer
	get.SetOut(&out)
	require.NoError(t, get.RunE(get, []string{"logging.agent_debug"}))
	assert.Equal(t, "true\n", out.String())
}

func TestConfigRejectsUnknownKey(t *testing.T) {
	useTempConfig(t)

	get := newConfigGetCmd()
	err := get.RunE(get, []string{"search.max_results"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), "max_iterations")

	set := newConfigSetCmd()
	set.SetOut(&bytes.Buffer{})
	require.Error(t, set.RunE(set, []string{"search.max_results", "6"}))
}

func TestConfigRejectsBadValues(t *testing.T) {
	useTempConfig(t)

	set := newConfigSetCmd()
	set.SetOut(&bytes.Buffer{})
	require.Error(t, set.RunE(set, []string{"temperature", "warm"}))
	require.Error(t, set.RunE(set, []string{"max_tokens", "-5"}))
	require.Error(t, set.RunE(set, []string{"logging.llm_debug", "maybe"}))
	require.Error(t, set.RunE(set, []string{"models", " , "}))
	require.Error(t, set.RunE(set, []string{"version", "2.0.0"}), "version is read-only")
}

func TestConfigListShowsEveryKey(t *testing.T) {
	useTempConfig(t)

	list := newConfigListCmd()
	var out bytes.Buffer
	list.SetOut(&out)
	require.NoError(t, list.RunE(list, nil))
	for _, key := range knownConfigKeys() {
		assert.Contains(t, out.String(), key+": ")
	}
}
