package workflow

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	// DefaultLayoutStep is the horizontal distance between auto-placed nodes.
	DefaultLayoutStep = 220
	// DefaultTemplateID tags documents produced by this package.
	DefaultTemplateID = "generated_standard"
)

// Option configures a Builder.
type Option func(*Builder)

// WithStrictNames rejects duplicate node names with ErrDuplicateName.
// When disabled, duplicates are kept and their edges merge under the
// shared name at serialisation, which is how the platform reads them.
func WithStrictNames(strict bool) Option {
	return func(b *Builder) {
		b.strictNames = strict
	}
}

// WithEdgeValidation makes Connect fail with ErrDanglingEdge when the target
// is not a node of this builder. Off by default: referential integrity is
// the caller's contract and the platform rejects dangling edges on import.
func WithEdgeValidation(validate bool) Option {
	return func(b *Builder) {
		b.validateEdges = validate
	}
}

// WithLayout sets the cursor origin and the horizontal step between nodes.
func WithLayout(origin Position, step int) Option {
	return func(b *Builder) {
		b.origin = origin
		b.cursor = origin
		if step > 0 {
			b.step = step
		}
	}
}

// WithTags sets the document tags.
func WithTags(tags ...string) Option {
	return func(b *Builder) {
		b.tags = append(b.tags, tags...)
	}
}

// WithTemplateID overrides meta.templateId.
func WithTemplateID(id string) Option {
	return func(b *Builder) {
		b.templateID = id
	}
}

// WithIDGenerator replaces uuid generation for node and version ids.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// Builder incrementally constructs a workflow graph.
// A Builder is owned by one caller; it does no locking.
type Builder struct {
	name          string
	versionID     string
	templateID    string
	tags          []string
	strictNames   bool
	validateEdges bool
	origin        Position
	cursor        Position
	step          int
	newID         func() string

	nodes  []Node
	byName map[string]int
	conns  map[int]map[Channel][][]target
}

// NewBuilder returns an empty builder for a workflow called name.
func NewBuilder(name string, opts ...Option) *Builder {
	b := &Builder{
		name:        name,
		templateID:  DefaultTemplateID,
		strictNames: true,
		step:        DefaultLayoutStep,
		newID:       uuid.NewString,
		byName:      make(map[string]int),
		conns:       make(map[int]map[Channel][][]target),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.versionID = b.newID()
	return b
}

// Name returns the workflow display name.
func (b *Builder) Name() string { return b.name }

// Len returns the number of nodes added so far.
func (b *Builder) Len() int { return len(b.nodes) }

// Cursor returns the position the next auto-placed node will get.
func (b *Builder) Cursor() Position { return b.cursor }

// NewRow moves the cursor back to the origin column at height y.
func (b *Builder) NewRow(y int) {
	b.cursor = Position{X: b.origin.X, Y: y}
}

// MoveTo places the cursor at an explicit position.
func (b *Builder) MoveTo(x, y int) {
	b.cursor = Position{X: x, Y: y}
}

// AddNode creates a node at the cursor and advances the cursor one step
// to the right.
func (b *Builder) AddNode(name, nodeType string, params map[string]any) (NodeRef, error) {
	ref, err := b.AddNodeAt(name, nodeType, b.cursor, params)
	if err != nil {
		return NodeRef{}, err
	}
	b.cursor.X += b.step
	return ref, nil
}

// AddNodeAt creates a node at pos without touching the cursor.
func (b *Builder) AddNodeAt(name, nodeType string, pos Position, params map[string]any) (NodeRef, error) {
	if idx, ok := b.byName[name]; ok && b.strictNames {
		return NodeRef{}, newError(ErrDuplicateName, fmt.Sprintf("workflow: node %q already exists", name), nil, map[string]any{
			"name":        name,
			"existing_id": b.nodes[idx].ID,
			"workflow":    b.name,
		})
	}

	p := cloneMap(params)
	if p == nil {
		p = map[string]any{}
	}

	b.nodes = append(b.nodes, Node{
		ID:          b.newID(),
		Name:        name,
		Type:        nodeType,
		TypeVersion: DefaultTypeVersion(nodeType),
		Position:    pos,
		Parameters:  p,
	})
	idx := len(b.nodes) - 1
	b.byName[name] = idx
	return NodeRef{owner: b, index: idx}, nil
}

// Lookup returns the ref of the node called name. With duplicate names
// allowed, the most recently added node wins.
func (b *Builder) Lookup(name string) (NodeRef, bool) {
	idx, ok := b.byName[name]
	if !ok {
		return NodeRef{}, false
	}
	return NodeRef{owner: b, index: idx}, true
}

// Node returns a copy of the node behind ref.
func (b *Builder) Node(ref NodeRef) (Node, bool) {
	if !b.owns(ref) {
		return Node{}, false
	}
	n := b.nodes[ref.index]
	n.Parameters = cloneMap(n.Parameters)
	n.Credentials = cloneMap(n.Credentials)
	return n, true
}

// Update lets fn edit the node behind ref. Identity and name are restored
// afterwards; use Rename to change a name.
func (b *Builder) Update(ref NodeRef, fn func(*Node)) error {
	if !b.owns(ref) {
		return newError(ErrNodeNotFound, "", nil, map[string]any{"workflow": b.name})
	}
	n := &b.nodes[ref.index]
	id, name := n.ID, n.Name
	fn(n)
	n.ID, n.Name = id, name
	if n.Parameters == nil {
		n.Parameters = map[string]any{}
	}
	return nil
}

// SetParameter sets a single parameter value on a node.
func (b *Builder) SetParameter(ref NodeRef, key string, value any) error {
	return b.Update(ref, func(n *Node) {
		if n.Parameters == nil {
			n.Parameters = map[string]any{}
		}
		n.Parameters[key] = cloneValue(value)
	})
}

// SetCredentials attaches credential references to a node.
func (b *Builder) SetCredentials(ref NodeRef, creds map[string]any) error {
	return b.Update(ref, func(n *Node) {
		n.Credentials = cloneMap(creds)
	})
}

// Rename changes a node's display name. Edges follow the node because they
// are keyed by identity, not by name.
func (b *Builder) Rename(ref NodeRef, name string) error {
	if !b.owns(ref) {
		return newError(ErrNodeNotFound, "", nil, map[string]any{"workflow": b.name})
	}
	if idx, ok := b.byName[name]; ok && idx != ref.index && b.strictNames {
		return newError(ErrDuplicateName, fmt.Sprintf("workflow: node %q already exists", name), nil, map[string]any{
			"name":        name,
			"existing_id": b.nodes[idx].ID,
			"workflow":    b.name,
		})
	}
	b.nodes[ref.index].Name = name

	clear(b.byName)
	for i, n := range b.nodes {
		b.byName[n.Name] = i
	}
	return nil
}

// ConnectOption configures a single Connect call.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	channel Channel
	output  int
}

// Via selects the channel kind of the edge. Defaults to ChannelMain.
func Via(ch Channel) ConnectOption {
	return func(c *connectConfig) {
		if ch != "" {
			c.channel = ch
		}
	}
}

// FromOutput selects the source output slot. Defaults to 0.
func FromOutput(index int) ConnectOption {
	return func(c *connectConfig) {
		c.output = index
	}
}

// Connect appends a directed edge from src to dst.
// The source slot array is extended with empty slots up to the output index.
func (b *Builder) Connect(src, dst NodeRef, opts ...ConnectOption) error {
	cfg, err := b.connectConfig(opts)
	if err != nil {
		return err
	}
	if !b.owns(src) {
		return newError(ErrNodeNotFound, "workflow: connection source is not a node of this graph", nil, map[string]any{
			"workflow": b.name,
			"channel":  string(cfg.channel),
		})
	}

	t := target{index: -1}
	switch {
	case b.owns(dst):
		t.index = dst.index
	case b.validateEdges:
		return newError(ErrDanglingEdge, "", nil, map[string]any{
			"workflow": b.name,
			"source":   b.nodes[src.index].Name,
			"channel":  string(cfg.channel),
			"output":   cfg.output,
		})
	case dst.owner != nil && dst.index >= 0 && dst.index < len(dst.owner.nodes):
		t.name = dst.owner.nodes[dst.index].Name
	}

	b.appendEdge(src.index, cfg.channel, cfg.output, t)
	return nil
}

// ConnectNames is the name-addressed form of Connect. The source must exist.
// An unknown target is recorded by name unless edge validation is on.
func (b *Builder) ConnectNames(src, dst string, opts ...ConnectOption) error {
	cfg, err := b.connectConfig(opts)
	if err != nil {
		return err
	}
	si, ok := b.byName[src]
	if !ok {
		return newError(ErrNodeNotFound, fmt.Sprintf("workflow: connection source %q not found", src), nil, map[string]any{
			"workflow": b.name,
			"source":   src,
		})
	}

	t := target{index: -1, name: dst}
	if di, ok := b.byName[dst]; ok {
		t.index = di
	} else if b.validateEdges {
		return newError(ErrDanglingEdge, fmt.Sprintf("workflow: connection target %q not found", dst), nil, map[string]any{
			"workflow": b.name,
			"source":   src,
			"target":   dst,
			"channel":  string(cfg.channel),
			"output":   cfg.output,
		})
	}

	b.appendEdge(si, cfg.channel, cfg.output, t)
	return nil
}

func (b *Builder) connectConfig(opts []ConnectOption) (connectConfig, error) {
	cfg := connectConfig{channel: ChannelMain}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.output < 0 {
		return cfg, newError(ErrInvalidOutputIndex, "", nil, map[string]any{
			"workflow": b.name,
			"output":   cfg.output,
		})
	}
	return cfg, nil
}

func (b *Builder) appendEdge(src int, ch Channel, output int, t target) {
	bySource, ok := b.conns[src]
	if !ok {
		bySource = make(map[Channel][][]target)
		b.conns[src] = bySource
	}
	slots := bySource[ch]
	for len(slots) <= output {
		slots = append(slots, []target{})
	}
	slots[output] = append(slots[output], t)
	bySource[ch] = slots
}

func (b *Builder) owns(ref NodeRef) bool {
	return ref.owner == b && ref.index >= 0 && ref.index < len(b.nodes)
}

// Graph returns a snapshot of the builder's state. Later builder calls do
// not affect a graph already returned.
func (b *Builder) Graph() *Graph {
	g := &Graph{
		Name:       b.name,
		VersionID:  b.versionID,
		TemplateID: b.templateID,
		Tags:       append([]string(nil), b.tags...),
		Nodes:      make([]Node, len(b.nodes)),
		conns:      make(map[int]map[Channel][][]target, len(b.conns)),
	}
	for i, n := range b.nodes {
		n.Parameters = cloneMap(n.Parameters)
		n.Credentials = cloneMap(n.Credentials)
		g.Nodes[i] = n
	}
	for src, bySource := range b.conns {
		cp := make(map[Channel][][]target, len(bySource))
		for ch, slots := range bySource {
			out := make([][]target, len(slots))
			for i, slot := range slots {
				out[i] = append([]target{}, slot...)
			}
			cp[ch] = out
		}
		g.conns[src] = cp
	}
	return g
}

// cloneMap deep-copies a JSON-shaped map so callers and snapshots never share
// nested values with the builder.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, item := range v {
			out[i] = cloneMap(item)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
