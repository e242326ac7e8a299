package protocol

import "encoding/json"

// Serializer defines the contract for serializing and deserializing command
// and event payloads. This lets the surrounding transport pick its preferred
// format while the venue core stays format-agnostic. Implementations must be
// lossless: numeric price/quantity fields travel as strings and are never
// rounded across the boundary.
type Serializer interface {
	// Marshal serializes a Go struct (e.g. SubmitPayload) into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a Go struct.
	// v must be a pointer to the target struct.
	Unmarshal(data []byte, v any) error
}

// DefaultJSONSerializer is the stock encoding/json implementation.
type DefaultJSONSerializer struct{}

// Marshal implements Serializer.
func (s *DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements Serializer.
func (s *DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
