package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the JSON wrapper the backend puts around every payload.
// Every field is optional; servers are inconsistent about which they send.
type Envelope struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Errors  FieldErrors     `json:"errors,omitempty"`
}

// Failed reports whether the server explicitly flagged the call as failed.
func (e *Envelope) Failed() bool {
	return e != nil && e.Success != nil && !*e.Success
}

// ServerMessage returns the most specific human readable message.
func (e *Envelope) ServerMessage() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// FieldErrors maps a field name to its validation messages. It decodes
// {"field": "msg"}, {"field": ["msg", ...]} and a bare ["msg", ...] list,
// which is filed under "base".
type FieldErrors map[string][]string

func (f *FieldErrors) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = nil
		return nil
	}

	if b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("errors list: %w", err)
		}
		if len(list) > 0 {
			*f = FieldErrors{"base": list}
		}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("errors object: %w", err)
	}
	out := make(FieldErrors, len(raw))
	for field, v := range raw {
		var one string
		if err := json.Unmarshal(v, &one); err == nil {
			out[field] = []string{one}
			continue
		}
		var many []string
		if err := json.Unmarshal(v, &many); err != nil {
			return fmt.Errorf("errors[%s]: %w", field, err)
		}
		out[field] = many
	}
	if len(out) == 0 {
		out = nil
	}
	*f = out
	return nil
}

// decodeEnvelope parses body. The second return is false when body is a
// bare payload rather than an envelope object.
func decodeEnvelope(body []byte) (*Envelope, bool, error) {
	if !json.Valid(body) {
		return nil, false, fmt.Errorf("response is not valid JSON")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		// arrays and scalars are bare payloads
		return nil, false, nil
	}
	_, hasData := probe["data"]
	_, hasSuccess := probe["success"]
	_, hasErrors := probe["errors"]
	if !hasData && !hasSuccess && !hasErrors {
		return nil, false, nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, true, nil
}
