package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// AllowedNodeKeys are the node fields the platform's workflow API accepts on
// create and update. Anything else is rejected by the API.
var AllowedNodeKeys = []string{
	"id", "name", "type", "typeVersion", "position",
	"parameters", "credentials", "disabled", "notes",
	"continueOnFail", "retryOnFail",
}

// ReadOnlyKeys are top-level fields the API treats as read-only.
var ReadOnlyKeys = []string{"active", "tags"}

// RemovedField records a node key dropped by Sanitize.
type RemovedField struct {
	Node string `json:"node"`
	Key  string `json:"key"`
}

// Sanitized is a document narrowed to what the platform API accepts.
type Sanitized struct {
	Body    map[string]any
	Removed []RemovedField
	Dropped []string
}

// Name returns the workflow name, or "" when absent.
func (s *Sanitized) Name() string {
	name, _ := s.Body["name"].(string)
	return name
}

// JSON encodes the sanitised body.
func (s *Sanitized) JSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.Body); err != nil {
		return nil, fmt.Errorf("workflow: encode sanitized document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Sanitize strips read-only top-level fields and narrows every node to
// AllowedNodeKeys. The input may be any superset of the document format.
// Numbers are kept as written, so large integer ids survive the round trip.
func Sanitize(raw []byte) (*Sanitized, error) {
	var body map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, newError(ErrInvalidDocument, "workflow: document is not a JSON object", err, nil)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newError(ErrInvalidDocument, "workflow: trailing data after document", err, nil)
	}

	allowed := make(map[string]struct{}, len(AllowedNodeKeys))
	for _, k := range AllowedNodeKeys {
		allowed[k] = struct{}{}
	}
	s := &Sanitized{Body: body}

	for _, k := range ReadOnlyKeys {
		if _, ok := body[k]; ok {
			delete(body, k)
			s.Dropped = append(s.Dropped, k)
		}
	}

	nodes, _ := body["nodes"].([]any)
	for _, item := range nodes {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := node["name"].(string)
		var drop []string
		for k := range node {
			if _, ok := allowed[k]; !ok {
				drop = append(drop, k)
			}
		}
		sort.Strings(drop)
		for _, k := range drop {
			delete(node, k)
			s.Removed = append(s.Removed, RemovedField{Node: name, Key: k})
		}
	}
	return s, nil
}

// SanitizeDocument is Sanitize applied to a built document.
func SanitizeDocument(d Document) (*Sanitized, error) {
	raw, err := d.JSON()
	if err != nil {
		return nil, err
	}
	return Sanitize(raw)
}
