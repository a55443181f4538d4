package agentset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/relay/pkg/orchestrator"
)

const supportDesk = `
agents:
  - name: triage
    description: routes incoming requests
    delegate_to: billing
    reason: billing issue
  - name: billing
    answer: "resolved: {{input}}"
  - name: support
    answer: "support here"
handoff:
  start: triage
  max_depth: 4
  hop_timeout: 2s
parallel:
  agents: [billing, support]
  strategy: merge
`

func newLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader(nil)
	require.NoError(t, err)
	return l
}

func TestLoader_ParseYAML(t *testing.T) {
	def, err := newLoader(t).Parse([]byte(supportDesk), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"triage", "billing", "support"}, def.Names())
	assert.Equal(t, "billing", def.Agents[0].DelegateTo)
	assert.Equal(t, TypeScripted, def.Agents[0].AgentType())
	assert.Equal(t, "triage", def.Handoff.Start)
	assert.Equal(t, 4, def.Handoff.MaxDepth)
	assert.Equal(t, "merge", def.Parallel.Strategy)
}

func TestLoader_ParseJSON(t *testing.T) {
	doc := `{
		"agents": [
			{"name": "a", "answer": "x"},
			{"name": "b", "type": "llm", "profile": "default", "model": "gpt-4o", "handoff_targets": ["a"]}
		],
		"sequential": {"agents": ["a"], "timeout": "30s"}
	}`

	def, err := newLoader(t).Parse([]byte(doc), FormatJSON)
	require.NoError(t, err)

	require.Len(t, def.Agents, 2)
	assert.Equal(t, TypeLLM, def.Agents[1].AgentType())
	assert.Equal(t, []string{"a"}, def.Agents[1].HandoffTargets)
	assert.Equal(t, "30s", def.Sequential.Timeout)
}

func TestLoader_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ``},
		{"no agents", `agents: []`},
		{"missing name", "agents:\n  - answer: hi"},
		{"unknown field", "agents:\n  - name: a\n    colour: blue"},
		{"bad type", "agents:\n  - name: a\n    type: robot"},
		{"bad name", "agents:\n  - name: \"has space\""},
		{"bad duration", "agents:\n  - name: a\n    delay: soon"},
		{"bad strategy", "agents:\n  - name: a\nparallel:\n  strategy: semantic"},
		{"zero depth", "agents:\n  - name: a\nhandoff:\n  max_depth: 0"},
	}

	l := newLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Parse([]byte(tt.doc), FormatYAML)
			require.Error(t, err)
		})
	}
}

func TestLoader_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		contains string
	}{
		{"duplicate", "agents:\n  - name: a\n  - name: a", "defined twice"},
		{"unknown start", "agents:\n  - name: a\nhandoff:\n  start: b", "handoff.start"},
		{"unknown parallel ref", "agents:\n  - name: a\nparallel:\n  agents: [a, b]", "parallel.agents"},
		{"unknown sequential ref", "agents:\n  - name: a\nsequential:\n  agents: [z]", "sequential.agents"},
		{"llm without model", "agents:\n  - name: a\n    type: llm\n    profile: p", "model is required"},
		{"llm without profile", "agents:\n  - name: a\n    type: llm\n    model: m", "profile is required"},
		{"llm unknown target", "agents:\n  - name: a\n    type: llm\n    profile: p\n    model: m\n    handoff_targets: [b]", "unknown agent"},
		{"scripted with model", "agents:\n  - name: a\n    model: m", "scripted agents"},
	}

	l := newLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Parse([]byte(tt.doc), FormatYAML)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoader_DuplicateIsTyped(t *testing.T) {
	_, err := newLoader(t).Parse([]byte("agents:\n  - name: a\n  - name: a"), FormatYAML)

	require.Error(t, err)
	assert.True(t, errors.Is(err, orchestrator.ErrDuplicateAgentName))
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	l := newLoader(t)

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(dir, "agents.yaml")
		require.NoError(t, os.WriteFile(path, []byte(supportDesk), 0644))

		def, err := l.LoadFile(path)
		require.NoError(t, err)
		assert.Len(t, def.Agents, 3)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := l.LoadFile(filepath.Join(dir, "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := l.LoadFile(filepath.Join(dir, "agents.toml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported")
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := l.LoadFile("")
		assert.Error(t, err)
	})
}
