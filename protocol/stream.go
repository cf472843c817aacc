package protocol

import (
	"errors"
	"fmt"

	"marionette/core"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is wrapped by every stream_output decoding failure.
var ErrMalformed = errors.New("protocol: malformed stream response")

// StreamResponse is one frame of inference output. Wire schema (proto3):
//
//	message InferenceResult {
//	  repeated int32 face = 1;
//	  repeated int32 left_hand = 2;
//	  repeated int32 right_hand = 3;
//	  repeated int32 pose = 4;
//	  repeated int32 pose_world = 5;
//	}
//	message StreamResponse {
//	  string sessionId = 1;
//	  int32 fps = 2;
//	  uint32 sequence = 3;
//	  uint32 startedAt = 4;
//	  repeated uint32 timestamp = 5;
//	  repeated int32 step = 6;
//	  repeated int32 dataSize = 7;
//	  InferenceResult result = 8;
//	}
//
// A body part is present in Result only if its field appears on the wire.
type StreamResponse struct {
	SessionID string
	FPS       int32
	Sequence  uint32
	StartedAt uint32
	Timestamp []uint32 // per pipeline stage, milliseconds
	Step      []int32  // per stage latency: input, grpc, inference, output, client
	DataSize  []int32  // input, output
	Result    core.QuantizedFrame
}

var resultFields = [...]core.BodyPart{
	1: core.Face,
	2: core.LeftHand,
	3: core.RightHand,
	4: core.Pose,
	5: core.PoseWorld,
}

// DecodeStreamResponse parses a binary stream_output frame. Unknown fields are
// skipped; both packed and unpacked repeated encodings are accepted.
func DecodeStreamResponse(b []byte) (*StreamResponse, error) {
	resp := &StreamResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed(n)
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			resp.SessionID = string(v)
		case num == 2 && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			resp.FPS = int32(v)
		case num == 3 && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			resp.Sequence = uint32(v)
		case num == 4 && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			resp.StartedAt = uint32(v)
		case num == 5 && isRepeatedVarint(typ):
			n = consumeRepeatedVarint(typ, b, func(v uint64) { resp.Timestamp = append(resp.Timestamp, uint32(v)) })
		case num == 6 && isRepeatedVarint(typ):
			n = consumeRepeatedVarint(typ, b, func(v uint64) { resp.Step = append(resp.Step, int32(v)) })
		case num == 7 && isRepeatedVarint(typ):
			n = consumeRepeatedVarint(typ, b, func(v uint64) { resp.DataSize = append(resp.DataSize, int32(v)) })
		case num == 8 && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				if err := decodeInferenceResult(v, &resp.Result); err != nil {
					return nil, err
				}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, malformed(n)
		}
		b = b[n:]
	}
	return resp, nil
}

func decodeInferenceResult(b []byte, frame *core.QuantizedFrame) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]

		if int(num) < len(resultFields) && num > 0 && isRepeatedVarint(typ) {
			part := resultFields[num]
			values, _ := frame.Get(part)
			n = consumeRepeatedVarint(typ, b, func(v uint64) { values = append(values, int32(v)) })
			frame.Set(part, values)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]
	}
	return nil
}

func isRepeatedVarint(typ protowire.Type) bool {
	return typ == protowire.VarintType || typ == protowire.BytesType
}

func consumeRepeatedVarint(typ protowire.Type, b []byte, fn func(uint64)) int {
	if typ == protowire.VarintType {
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			fn(v)
		}
		return n
	}
	packed, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return m
		}
		fn(v)
		packed = packed[m:]
	}
	return n
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
}

// EncodeStreamResponse produces the wire form of resp with packed repeated
// fields. The backend owns production; this is used by test servers and tools.
func EncodeStreamResponse(resp *StreamResponse) []byte {
	var b []byte
	if resp.SessionID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, resp.SessionID)
	}
	if resp.FPS != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(resp.FPS)))
	}
	if resp.Sequence != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(resp.Sequence))
	}
	if resp.StartedAt != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(resp.StartedAt))
	}
	b = appendPacked(b, 5, len(resp.Timestamp), func(i int) uint64 { return uint64(resp.Timestamp[i]) })
	b = appendPacked(b, 6, len(resp.Step), func(i int) uint64 { return uint64(int64(resp.Step[i])) })
	b = appendPacked(b, 7, len(resp.DataSize), func(i int) uint64 { return uint64(int64(resp.DataSize[i])) })

	var result []byte
	for num, part := range resultFields {
		if num == 0 {
			continue
		}
		values, ok := resp.Result.Get(part)
		if !ok {
			continue
		}
		result = protowire.AppendTag(result, protowire.Number(num), protowire.BytesType)
		var packed []byte
		for _, v := range values {
			packed = protowire.AppendVarint(packed, uint64(int64(v)))
		}
		result = protowire.AppendBytes(result, packed)
	}
	if len(result) > 0 {
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, result)
	}
	return b
}

func appendPacked(b []byte, num protowire.Number, count int, value func(int) uint64) []byte {
	if count == 0 {
		return b
	}
	var packed []byte
	for i := 0; i < count; i++ {
		packed = protowire.AppendVarint(packed, value(i))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}
