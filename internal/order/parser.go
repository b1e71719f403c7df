// Package order turns raw LLM turn output into menu-verified order
// operations. The parser decodes and normalizes; the validator judges
// operations against a single menu snapshot.
package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"

	"github.com/orderline-io/orderline/pkg/protocol"
)

// ErrMalformedResponse reports that an LLM turn payload could not be
// decoded. The session manager maps it to a re-prompt, never a crash.
var ErrMalformedResponse = errors.New("order: malformed llm response")

// turnSchemaJSON is the contract the LLM is prompted to follow. Payloads
// are validated against it before any field reaches typed code.
const turnSchemaJSON = `{
	"type": "object",
	"required": ["intent", "assistant_text"],
	"properties": {
		"intent": {
			"type": "string",
			"enum": ["continue", "confirm", "complete", "abandon"]
		},
		"assistant_text": {"type": "string"},
		"operations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["op", "item_name"],
				"properties": {
					"op": {"type": "string", "enum": ["add", "remove", "set_quantity"]},
					"item_name": {"type": "string", "minLength": 1},
					"quantity": {"type": "integer", "minimum": 1},
					"modifiers": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

var turnSchema = mustCompileTurnSchema()

func mustCompileTurnSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(turnSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("order: unmarshal turn schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("turn.json", doc); err != nil {
		panic(fmt.Sprintf("order: add turn schema: %v", err))
	}
	s, err := c.Compile("turn.json")
	if err != nil {
		panic(fmt.Sprintf("order: compile turn schema: %v", err))
	}
	return s
}

// turnPayload is the wire shape of one LLM turn. Decoded only after the
// payload passes schema validation.
type turnPayload struct {
	Intent        string `json:"intent"`
	AssistantText string `json:"assistant_text"`
	Operations    []struct {
		Op        string   `json:"op"`
		ItemName  string   `json:"item_name"`
		Quantity  int      `json:"quantity"`
		Modifiers []string `json:"modifiers"`
	} `json:"operations"`
}

// Parse decodes one LLM turn's output into a normalized ParsedTurnResult.
// Item names are lower-cased and trimmed, ADD quantities default to 1,
// and duplicate ADDs for the same item are merged by summing quantities.
func Parse(raw string) (*protocol.ParsedTurnResult, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no turn object in output", ErrMalformedResponse)
	}

	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := turnSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var tp turnPayload
	if err := json.Unmarshal([]byte(payload), &tp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := &protocol.ParsedTurnResult{
		Intent:        protocol.Intent(tp.Intent),
		AssistantText: strings.TrimSpace(tp.AssistantText),
	}

	for _, op := range tp.Operations {
		o := protocol.Operation{
			Op:        protocol.OpType(op.Op),
			ItemName:  normalizeName(op.ItemName),
			Quantity:  op.Quantity,
			Modifiers: normalizeModifiers(op.Modifiers),
		}
		if o.ItemName == "" {
			return nil, fmt.Errorf("%w: blank item name", ErrMalformedResponse)
		}
		if o.Op == protocol.OpAdd && o.Quantity == 0 {
			o.Quantity = 1
		}
		if o.Quantity < 0 || (o.Op != protocol.OpRemove && o.Quantity == 0) {
			return nil, fmt.Errorf("%w: invalid quantity %d for %s", ErrMalformedResponse, o.Quantity, o.ItemName)
		}

		if o.Op == protocol.OpAdd {
			if merged := mergeAdd(result.Operations, o); merged {
				continue
			}
		}
		result.Operations = append(result.Operations, o)
	}

	return result, nil
}

// mergeAdd folds an ADD into an earlier ADD for the same item, summing
// quantities and unioning modifiers. Reports whether a merge happened.
func mergeAdd(ops []protocol.Operation, o protocol.Operation) bool {
	for i := range ops {
		if ops[i].Op == protocol.OpAdd && ops[i].ItemName == o.ItemName {
			ops[i].Quantity += o.Quantity
			for _, m := range o.Modifiers {
				if !slices.Contains(ops[i].Modifiers, m) {
					ops[i].Modifiers = append(ops[i].Modifiers, m)
				}
			}
			return true
		}
	}
	return false
}

// extractJSON locates the turn object inside raw model output. Models
// sometimes wrap the payload in markdown fences or surround it with
// prose that can itself contain stray JSON fragments, so every
// brace-delimited candidate is probed for a top-level intent field and
// the first one carrying it wins.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	for start := strings.Index(raw, "{"); start >= 0; {
		for end := strings.LastIndex(raw, "}"); end > start; end = strings.LastIndex(raw[:end], "}") {
			candidate := raw[start : end+1]
			if gjson.Valid(candidate) && gjson.Get(candidate, "intent").Exists() {
				return candidate
			}
		}
		next := strings.Index(raw[start+1:], "{")
		if next < 0 {
			break
		}
		start += 1 + next
	}
	return ""
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeModifiers(mods []string) []string {
	var out []string
	for _, m := range mods {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" || slices.Contains(out, m) {
			continue
		}
		out = append(out, m)
	}
	return out
}
