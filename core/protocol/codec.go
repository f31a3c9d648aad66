// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Object codecs turn arbitrary values into the opaque payload of an
// Object field and back.

package protocol

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// ObjectCodec encodes values for SetObject and decodes them for GetObject.
// Decode failures must wrap ErrDecode.
type ObjectCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// GobCodec is the default codec.
type GobCodec struct{}

func (GobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("protocol: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobCodec) Decode(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%w: gob: %v", ErrDecode, err)
	}
	return nil
}

// JSONCodec encodes values with encoding/json.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: json encode: %w", err)
	}
	return b, nil
}

func (JSONCodec) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: json: %v", ErrDecode, err)
	}
	return nil
}

// ProtoCodec encodes protobuf messages. Both directions require a proto.Message.
type ProtoCodec struct{}

func (ProtoCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protocol: proto encode: %s is not a proto.Message", reflect.TypeOf(v))
	}
	b, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: proto encode: %w", err)
	}
	return b, nil
}

func (ProtoCodec) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("%w: proto: %s is not a proto.Message", ErrDecode, reflect.TypeOf(v))
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("%w: proto: %v", ErrDecode, err)
	}
	return nil
}
