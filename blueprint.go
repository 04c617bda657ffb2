package workflow

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Blueprint is a declarative workflow description. It is read from YAML or
// JSON and replayed through a Builder, so blueprint files are subject to the
// same naming and connection rules as code.
type Blueprint struct {
	Name          string          `yaml:"name" json:"name"`
	Tags          []string        `yaml:"tags,omitempty" json:"tags,omitempty"`
	TemplateID    string          `yaml:"template_id,omitempty" json:"template_id,omitempty"`
	StrictNames   *bool           `yaml:"strict_names,omitempty" json:"strict_names,omitempty"`
	ValidateEdges bool            `yaml:"validate_edges,omitempty" json:"validate_edges,omitempty"`
	Step          int             `yaml:"step,omitempty" json:"step,omitempty"`
	Nodes         []BlueprintNode `yaml:"nodes" json:"nodes"`
	Edges         []BlueprintEdge `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// BlueprintNode describes one node. Row starts a new lane at that height
// before the node is placed; Position pins the node and leaves the cursor alone.
type BlueprintNode struct {
	Name        string         `yaml:"name" json:"name"`
	Type        string         `yaml:"type" json:"type"`
	TypeVersion float64        `yaml:"type_version,omitempty" json:"type_version,omitempty"`
	Row         *int           `yaml:"row,omitempty" json:"row,omitempty"`
	Position    []int          `yaml:"position,omitempty" json:"position,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Credentials map[string]any `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	WebhookID   string         `yaml:"webhook_id,omitempty" json:"webhook_id,omitempty"`
	Disabled    bool           `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Notes       string         `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// BlueprintEdge connects two nodes by name.
type BlueprintEdge struct {
	From    string  `yaml:"from" json:"from"`
	To      string  `yaml:"to" json:"to"`
	Channel Channel `yaml:"channel,omitempty" json:"channel,omitempty"`
	Output  int     `yaml:"output,omitempty" json:"output,omitempty"`
}

// ParseBlueprint decodes a blueprint. JSON input is accepted as YAML.
func ParseBlueprint(data []byte) (*Blueprint, error) {
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, newError(ErrInvalidDocument, "workflow: blueprint is not valid YAML or JSON", err, nil)
	}
	if strings.TrimSpace(bp.Name) == "" {
		return nil, newError(ErrInvalidDocument, "workflow: blueprint has no name", nil, map[string]any{
			"missing": []string{"name"},
		})
	}
	for i, n := range bp.Nodes {
		if n.Name == "" || n.Type == "" {
			return nil, newError(ErrInvalidDocument, fmt.Sprintf("workflow: blueprint node %d needs a name and a type", i), nil, map[string]any{
				"index": i,
			})
		}
		if n.Position != nil && len(n.Position) != 2 {
			return nil, newError(ErrInvalidDocument, fmt.Sprintf("workflow: blueprint node %q position must be [x, y]", n.Name), nil, map[string]any{
				"node": n.Name,
			})
		}
	}
	return &bp, nil
}

// ReadBlueprint loads a blueprint file.
func ReadBlueprint(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	return ParseBlueprint(data)
}

// Build replays the blueprint through a new Builder. Extra options are
// applied after the blueprint's own settings.
func (bp *Blueprint) Build(opts ...Option) (*Builder, error) {
	base := []Option{WithTags(bp.Tags...), WithEdgeValidation(bp.ValidateEdges)}
	if bp.StrictNames != nil {
		base = append(base, WithStrictNames(*bp.StrictNames))
	}
	if bp.TemplateID != "" {
		base = append(base, WithTemplateID(bp.TemplateID))
	}
	if bp.Step > 0 {
		base = append(base, WithLayout(Position{}, bp.Step))
	}
	b := NewBuilder(bp.Name, append(base, opts...)...)

	for _, n := range bp.Nodes {
		var (
			ref NodeRef
			err error
		)
		switch {
		case n.Position != nil:
			ref, err = b.AddNodeAt(n.Name, n.Type, Position{X: n.Position[0], Y: n.Position[1]}, n.Parameters)
		default:
			if n.Row != nil {
				b.NewRow(*n.Row)
			}
			ref, err = b.AddNode(n.Name, n.Type, n.Parameters)
		}
		if err != nil {
			return nil, err
		}

		if err := b.Update(ref, func(node *Node) {
			if n.TypeVersion > 0 {
				node.TypeVersion = n.TypeVersion
			}
			if len(n.Credentials) > 0 {
				node.Credentials = n.Credentials
			}
			node.WebhookID = n.WebhookID
			if node.WebhookID == "" && node.Type == TypeWebhook {
				node.WebhookID = node.ID
			}
			node.Disabled = n.Disabled
			node.Notes = n.Notes
		}); err != nil {
			return nil, err
		}
	}

	for _, e := range bp.Edges {
		if err := b.ConnectNames(e.From, e.To, Via(e.Channel), FromOutput(e.Output)); err != nil {
			return nil, err
		}
	}
	return b, nil
}
