// Package protocol defines the websocket messages exchanged with the game
// client and validates incoming ones against the embedded JSON schemas.
package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Client to server.
const (
	TypePing          = "ping"
	TypeTap           = "tap"
	TypeRefresh       = "refresh"
	TypeUpgradeBoost  = "upgrade_boost"
	TypeUseRocket     = "use_rocket"
	TypeUseFullEnergy = "use_full_energy"
	TypeClaimDaily    = "claim_daily"
	TypeStartTask     = "start_task"
	TypeCompleteTask  = "complete_task"
	TypeFindCombo     = "find_combo"
	TypeCollectHourly = "collect_hourly"
	TypeCollectLeague = "collect_league"
	TypeUpgradeItem   = "upgrade_item"
)

// Server to client.
const (
	TypeReady  = "ready"
	TypePong   = "pong"
	TypeResult = "result"
	TypeState  = "state"
	TypeError  = "error"
)

// Error codes not covered by game errors.
const (
	CodeBadRequest = "bad_request"
	CodeInternal   = "internal"
)

var ErrBadMessage = errors.New("bad message")

//go:embed schemas/*.json
var schemaFS embed.FS

// payload schema per message type; types not listed carry no payload
var payloadSchemas = map[string]string{
	TypeUpgradeBoost: "upgrade_boost.schema.json",
	TypeStartTask:    "task.schema.json",
	TypeCompleteTask: "task.schema.json",
	TypeFindCombo:    "combo.schema.json",
	TypeUpgradeItem:  "item.schema.json",
}

// Request is one client message.
type Request struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type BoostPayload struct {
	Type string `json:"type"`
}

type TaskPayload struct {
	TaskID int64 `json:"task_id"`
}

type ComboPayload struct {
	Index int `json:"index"`
}

type ItemPayload struct {
	ItemID int64 `json:"item_id"`
}

// Response is one server message. ID echoes the request it answers.
type Response struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Result(id string, payload any) Response {
	return Response{Type: TypeResult, ID: id, Payload: payload}
}

func Error(id, code, msg string) Response {
	return Response{Type: TypeError, ID: id, Payload: ErrorPayload{Code: code, Message: msg}}
}

// Validator checks client messages. It is safe for concurrent use.
type Validator struct {
	envelope *jsonschema.Schema
	payloads map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
	}

	v := &Validator{payloads: make(map[string]*jsonschema.Schema)}
	if v.envelope, err = c.Compile("envelope.schema.json"); err != nil {
		return nil, fmt.Errorf("compile envelope: %w", err)
	}
	for typ, name := range payloadSchemas {
		s, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.payloads[typ] = s
	}
	return v, nil
}

// MustValidator is NewValidator for package-level setup.
func MustValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Decode parses and validates a client message. When only the payload is
// invalid the parsed envelope is returned alongside the error so the reply
// can echo its id.
func (v *Validator) Decode(data []byte) (*Request, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if err := v.envelope.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	schema, ok := v.payloads[req.Type]
	if !ok {
		return &req, nil
	}
	var payload any = map[string]any{}
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return &req, fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
	}
	if err := schema.Validate(payload); err != nil {
		return &req, fmt.Errorf("%w: %s payload: %v", ErrBadMessage, req.Type, err)
	}
	return &req, nil
}

// Bind decodes the payload of a validated request into dst.
func (r *Request) Bind(dst any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrBadMessage)
	}
	if err := json.Unmarshal(r.Payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return nil
}
