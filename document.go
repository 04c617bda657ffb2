package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Document is the platform's workflow import format.
type Document struct {
	Name        string         `json:"name"`
	Nodes       []DocumentNode `json:"nodes"`
	Connections Connections    `json:"connections"`
	Active      bool           `json:"active"`
	Settings    map[string]any `json:"settings"`
	VersionID   string         `json:"versionId,omitempty"`
	Meta        *Meta          `json:"meta,omitempty"`
	Tags        []any          `json:"tags"`
}

type Meta struct {
	TemplateID string `json:"templateId,omitempty"`
}

// DocumentNode is a node as the platform reads it.
type DocumentNode struct {
	Parameters     map[string]any `json:"parameters"`
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	TypeVersion    float64        `json:"typeVersion"`
	Position       [2]float64     `json:"position"`
	Credentials    map[string]any `json:"credentials,omitempty"`
	WebhookID      string         `json:"webhookId,omitempty"`
	Disabled       bool           `json:"disabled,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	ContinueOnFail bool           `json:"continueOnFail,omitempty"`
	RetryOnFail    bool           `json:"retryOnFail,omitempty"`
}

// Connections maps source name -> channel -> output slot -> targets.
type Connections map[string]map[Channel][][]ConnectionTarget

// ConnectionTarget is one edge as stored under its source. Type is always
// "main": the platform records the target side of every edge, side
// channels included, as a main input.
type ConnectionTarget struct {
	Node  string  `json:"node"`
	Type  Channel `json:"type"`
	Index int     `json:"index"`
}

// Serialize projects g onto the platform document format.
func Serialize(g *Graph) Document {
	return g.Document()
}

// Document projects the graph onto the platform document format.
// The result depends only on the graph, so repeated calls are identical.
func (g *Graph) Document() Document {
	doc := Document{
		Name:        g.Name,
		Nodes:       make([]DocumentNode, 0, len(g.Nodes)),
		Connections: Connections{},
		Settings:    map[string]any{},
		VersionID:   g.VersionID,
		Tags:        make([]any, 0, len(g.Tags)),
	}
	if g.TemplateID != "" {
		doc.Meta = &Meta{TemplateID: g.TemplateID}
	}
	for _, t := range g.Tags {
		doc.Tags = append(doc.Tags, t)
	}

	for _, n := range g.Nodes {
		params := n.Parameters
		if params == nil {
			params = map[string]any{}
		}
		doc.Nodes = append(doc.Nodes, DocumentNode{
			Parameters:     params,
			ID:             n.ID,
			Name:           n.Name,
			Type:           n.Type,
			TypeVersion:    n.TypeVersion,
			Position:       [2]float64{float64(n.Position.X), float64(n.Position.Y)},
			Credentials:    n.Credentials,
			WebhookID:      n.WebhookID,
			Disabled:       n.Disabled,
			Notes:          n.Notes,
			ContinueOnFail: n.ContinueOnFail,
			RetryOnFail:    n.RetryOnFail,
		})
	}

	// Sources are visited in insertion order so that duplicate names (allowed
	// only in permissive mode) merge deterministically.
	sources := make([]int, 0, len(g.conns))
	for src := range g.conns {
		sources = append(sources, src)
	}
	sort.Ints(sources)

	for _, src := range sources {
		name := g.Nodes[src].Name
		entry, ok := doc.Connections[name]
		if !ok {
			entry = make(map[Channel][][]ConnectionTarget)
			doc.Connections[name] = entry
		}
		for ch, slots := range g.conns[src] {
			merged := entry[ch]
			for len(merged) < len(slots) {
				merged = append(merged, []ConnectionTarget{})
			}
			for i, slot := range slots {
				for _, t := range slot {
					merged[i] = append(merged[i], ConnectionTarget{
						Node:  g.targetName(t),
						Type:  ChannelMain,
						Index: 0,
					})
				}
			}
			entry[ch] = merged
		}
	}
	return doc
}

func (g *Graph) targetName(t target) string {
	if t.index >= 0 && t.index < len(g.Nodes) {
		return g.Nodes[t.index].Name
	}
	return t.name
}

// JSON renders the document indented by two spaces, without HTML escaping
// so expressions like "{{ $json.a && $json.b }}" stay readable.
func (d Document) JSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("workflow: encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the document JSON to path.
func (d Document) WriteFile(path string) error {
	data, err := d.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("workflow: write %s: %w", path, err)
	}
	return nil
}

// ParseDocument decodes and validates a workflow document.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, newError(ErrInvalidDocument, "workflow: document is not valid JSON", err, nil)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ReadDocument loads a workflow document from disk.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	return ParseDocument(data)
}

// Validate checks the fields every import needs.
func (d *Document) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if d.Nodes == nil {
		missing = append(missing, "nodes")
	}
	if d.Connections == nil {
		missing = append(missing, "connections")
	}
	if len(missing) > 0 {
		return newError(ErrInvalidDocument, "workflow: document is missing "+strings.Join(missing, ", "), nil, map[string]any{
			"missing": missing,
		})
	}
	return nil
}

// NodeSummary names a node and its type.
type NodeSummary struct {
	Name string
	Type string
}

// ConnectionGroup lists the channels a source node feeds.
type ConnectionGroup struct {
	Source   string
	Channels []Channel
}

// Summary is a short structural report of a document.
type Summary struct {
	Name   string
	Nodes  []NodeSummary
	Groups []ConnectionGroup
}

// Summary reports the nodes in document order and the connection groups
// sorted by source name.
func (d *Document) Summary() Summary {
	s := Summary{Name: d.Name}
	for _, n := range d.Nodes {
		s.Nodes = append(s.Nodes, NodeSummary{Name: n.Name, Type: n.Type})
	}
	sources := make([]string, 0, len(d.Connections))
	for src := range d.Connections {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		chans := make([]Channel, 0, len(d.Connections[src]))
		for ch := range d.Connections[src] {
			chans = append(chans, ch)
		}
		sort.Slice(chans, func(i, j int) bool { return chans[i] < chans[j] })
		s.Groups = append(s.Groups, ConnectionGroup{Source: src, Channels: chans})
	}
	return s
}

// String renders the summary for terminal output.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d nodes, %d connection groups\n", s.Name, len(s.Nodes), len(s.Groups))
	b.WriteString("\nNodes:\n")
	for _, n := range s.Nodes {
		fmt.Fprintf(&b, "  - %s (%s)\n", n.Name, n.Type)
	}
	b.WriteString("\nConnections:\n")
	for _, g := range s.Groups {
		names := make([]string, len(g.Channels))
		for i, ch := range g.Channels {
			names[i] = string(ch)
		}
		fmt.Fprintf(&b, "  - %s -> [%s]\n", g.Source, strings.Join(names, ", "))
	}
	return b.String()
}

// Webhook is the public URL of a webhook trigger once deployed.
type Webhook struct {
	Node string `json:"node"`
	URL  string `json:"url"`
}

// WebhookURLs lists the URLs under which the platform at baseURL will
// expose the document's webhook triggers.
func (d *Document) WebhookURLs(baseURL string) []Webhook {
	base := strings.TrimRight(baseURL, "/")
	var out []Webhook
	for _, n := range d.Nodes {
		if n.Type != TypeWebhook {
			continue
		}
		path, _ := n.Parameters["path"].(string)
		if path == "" {
			continue
		}
		out = append(out, Webhook{Node: n.Name, URL: base + "/webhook/" + strings.TrimLeft(path, "/")})
	}
	return out
}
