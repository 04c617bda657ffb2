package workflow

// Channel is the connection kind between two nodes. The platform reads
// side channels (language model, memory, guardrails, ...) as capability
// feeds into the target, while Main carries the data flow.
type Channel string

const (
	ChannelMain          Channel = "main"
	ChannelLanguageModel Channel = "ai_languageModel"
	ChannelMemory        Channel = "ai_memory"
	ChannelTool          Channel = "ai_tool"
	ChannelGuardrails    Channel = "ai_guardrails"
	ChannelOutputParser  Channel = "ai_outputParser"
)

// Position is a node's place on the editor canvas. It is advisory only.
type Position struct {
	X int
	Y int
}

// Node represents a unit of work in the workflow graph.
// Name is a display attribute; edges address nodes by arena index and
// resolve to names only when the graph is serialised.
type Node struct {
	ID             string
	Name           string
	Type           string
	TypeVersion    float64
	Position       Position
	Parameters     map[string]any
	Credentials    map[string]any
	WebhookID      string
	Disabled       bool
	Notes          string
	ContinueOnFail bool
	RetryOnFail    bool
}

// NodeRef is an opaque handle to a node issued by a Builder.
// The zero value refers to no node.
type NodeRef struct {
	owner *Builder
	index int
}

// Valid reports whether the ref was issued by a builder.
func (r NodeRef) Valid() bool { return r.owner != nil }

// target is one entry of an output slot. index is the arena index of the
// target node, or -1 when the edge was recorded by name only.
type target struct {
	index int
	name  string
}

// Graph is the frozen product of a Builder: nodes in insertion order plus
// the connection table keyed by source arena index.
type Graph struct {
	Name       string
	VersionID  string
	TemplateID string
	Tags       []string
	Nodes      []Node

	// conns[source][channel] is the contiguous slot array for that source.
	conns map[int]map[Channel][][]target
}

// Defaults for known node types, taken from the platform's current node catalogue.
var typeVersions = map[string]float64{
	"n8n-nodes-base.httpRequest":     4.1,
	"n8n-nodes-base.googleSheets":    4,
	"@n8n/n8n-nodes-langchain.agent": 1.6,
}

// DefaultTypeVersion returns the type version the builder assigns to a node type.
func DefaultTypeVersion(nodeType string) float64 {
	if v, ok := typeVersions[nodeType]; ok {
		return v
	}
	return 1
}
