// envelope.go

package wire

import "encoding/json"

// Envelope is the shape every inbound line-delimited JSON message shares:
// a required string type tag and the rest of the payload alongside it.
// Decoding happens in two steps — first the tag, then the typed payload —
// matching spec.md §6 ("every message has type: string").
type Envelope struct {
	Type string `json:"type"`
}

// Decode unmarshals raw into both the envelope and a caller-supplied typed
// payload in one pass, since every inbound field lives flat on the same
// JSON object as `type`, not nested under a separate payload key.
func Decode(raw []byte, v interface{}) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, err
	}
	if v != nil {
		if err := json.Unmarshal(raw, v); err != nil {
			return env, err
		}
	}
	return env, nil
}

// Vector3 is the wire representation of a position.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Msg wraps an outbound message with its type tag for encoding.
type Msg struct {
	Type string      `json:"type"`
	Data interface{} `json:"-"`
}

// MarshalJSON flattens Data's fields alongside Type so outbound messages
// have the same flat shape as inbound ones ({"type": "...", ...fields}).
func (m Msg) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(m.Data)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["type"] = m.Type
	return json.Marshal(fields)
}
