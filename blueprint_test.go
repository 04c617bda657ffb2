package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onboardingBlueprint = `
name: Onboarding Router
tags: [sales]
nodes:
  - name: Webhook
    type: n8n-nodes-base.webhook
    parameters:
      path: onboarding
      httpMethod: POST
  - name: Route
    type: n8n-nodes-base.switch
    parameters:
      value1: "={{$json.tier}}"
  - name: Enterprise
    type: n8n-nodes-base.slack
    row: 300
  - name: Standard
    type: n8n-nodes-base.gmail
  - name: Audit
    type: n8n-nodes-base.googleSheets
    position: [1000, 600]
    notes: append every signup
edges:
  - from: Webhook
    to: Route
  - from: Route
    to: Enterprise
  - from: Route
    to: Standard
    output: 1
  - from: Webhook
    to: Audit
`

func TestBlueprintBuild(t *testing.T) {
	bp, err := ParseBlueprint([]byte(onboardingBlueprint))
	require.NoError(t, err)

	b, err := bp.Build()
	require.NoError(t, err)
	doc := b.Graph().Document()

	require.Len(t, doc.Nodes, 5)
	assert.Equal(t, []any{"sales"}, doc.Tags)
	assert.Equal(t, [2]float64{0, 0}, doc.Nodes[0].Position)
	assert.Equal(t, [2]float64{220, 0}, doc.Nodes[1].Position)
	assert.Equal(t, [2]float64{0, 300}, doc.Nodes[2].Position)
	assert.Equal(t, [2]float64{220, 300}, doc.Nodes[3].Position)
	assert.Equal(t, [2]float64{1000, 600}, doc.Nodes[4].Position)
	assert.Equal(t, 4.0, doc.Nodes[4].TypeVersion)
	assert.Equal(t, "append every signup", doc.Nodes[4].Notes)
	assert.Equal(t, doc.Nodes[0].ID, doc.Nodes[0].WebhookID)

	route := doc.Connections["Route"][ChannelMain]
	require.Len(t, route, 2)
	assert.Equal(t, "Enterprise", route[0][0].Node)
	assert.Equal(t, "Standard", route[1][0].Node)
	assert.Len(t, doc.Connections["Webhook"][ChannelMain][0], 2)
}

// A blueprint and the equivalent builder calls produce the same document.
func TestBlueprintMatchesBuilder(t *testing.T) {
	bp, err := ParseBlueprint([]byte(`
name: Chat
nodes:
  - name: Trigger
    type: n8n-nodes-base.manualTrigger
  - name: Model
    type: "@n8n/n8n-nodes-langchain.lmChatOpenAi"
    parameters: {model: gpt-4o}
  - name: Agent
    type: "@n8n/n8n-nodes-langchain.agent"
edges:
  - {from: Trigger, to: Agent}
  - {from: Model, to: Agent, channel: ai_languageModel}
`))
	require.NoError(t, err)
	fromBlueprint, err := bp.Build(WithIDGenerator(seqIDs()))
	require.NoError(t, err)

	b := NewBuilder("Chat", WithIDGenerator(seqIDs()))
	trigger := mustAdd(t, b, "Trigger", TypeManualTrigger)
	model, err := b.AddNode("Model", TypeOpenAIChatModel, map[string]any{"model": "gpt-4o"})
	require.NoError(t, err)
	agent := mustAdd(t, b, "Agent", TypeAgent)
	require.NoError(t, b.Connect(trigger, agent))
	require.NoError(t, b.Connect(model, agent, Via(ChannelLanguageModel)))

	want, err := b.Graph().Document().JSON()
	require.NoError(t, err)
	got, err := fromBlueprint.Graph().Document().JSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestBlueprintFromJSON(t *testing.T) {
	bp, err := ParseBlueprint([]byte(`{"name": "J", "nodes": [{"name": "a", "type": "n8n-nodes-base.set"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "J", bp.Name)
	require.Len(t, bp.Nodes, 1)
}

func TestBlueprintStrictness(t *testing.T) {
	dup := []byte(`
name: Dup
nodes:
  - {name: X, type: n8n-nodes-base.set}
  - {name: X, type: n8n-nodes-base.set}
`)
	bp, err := ParseBlueprint(dup)
	require.NoError(t, err)
	_, err = bp.Build()
	assert.True(t, IsDuplicateName(err))

	permissive := false
	bp.StrictNames = &permissive
	b, err := bp.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())

	dangling, err := ParseBlueprint([]byte(`
name: Dangling
validate_edges: true
nodes:
  - {name: A, type: n8n-nodes-base.set}
edges:
  - {from: A, to: Ghost}
`))
	require.NoError(t, err)
	_, err = dangling.Build()
	assert.True(t, IsDanglingEdge(err))
}

func TestParseBlueprintErrors(t *testing.T) {
	cases := map[string]string{
		"bad yaml":     "name: [",
		"no name":      "nodes: []",
		"node no type": "name: x\nnodes:\n  - name: a\n",
		"bad position": "name: x\nnodes:\n  - {name: a, type: t, position: [1]}\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBlueprint([]byte(input))
			assert.True(t, IsInvalidDocument(err), "got %v", err)
		})
	}
}

func TestReadBlueprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(onboardingBlueprint), 0o644))

	bp, err := ReadBlueprint(path)
	require.NoError(t, err)
	assert.Equal(t, "Onboarding Router", bp.Name)
}
