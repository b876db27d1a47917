package service

import (
	"encoding/json"
)

// JSONCodec carries the plain Go messages of pkg/api over Connect. It replaces
// Connect's protobuf JSON codec, which only accepts generated messages.
type JSONCodec struct{}

// Name matches the "json" codec name clients negotiate with, so the Connect
// content type stays application/json.
func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
