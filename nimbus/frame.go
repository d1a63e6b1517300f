package nimbus

// Envelope splitting and building (§4.1), grounded on the original
// source's nimbus/helpers/message.py (extract_source_from_message,
// extract_content_from_message). Payload signing lives in crypto.go.

// splitEnvelope separates the routing prefix (every frame up to, but not
// including, the first empty frame) from the payload. The specification
// requires exactly one payload frame after the empty delimiter.
func splitEnvelope(frames [][]byte) (source [][]byte, payload []byte, err error) {
	empty := -1
	for i, f := range frames {
		if len(f) == 0 {
			empty = i
			break
		}
	}
	if empty < 0 {
		return nil, nil, ErrInvalidFrame
	}
	rest := frames[empty+1:]
	if len(rest) != 1 {
		return nil, nil, ErrInvalidFrame
	}
	return frames[:empty], rest[0], nil
}

// buildEnvelope prepends a routing prefix and the empty delimiter to a
// single payload frame, ready to send on a ROUTER socket.
func buildEnvelope(dest [][]byte, payload []byte) [][]byte {
	frames := make([][]byte, 0, len(dest)+2)
	frames = append(frames, dest...)
	frames = append(frames, []byte{})
	frames = append(frames, payload)
	return frames
}

// envelope is a decoded inbound message: the source routing prefix plus
// the unwrapped (and, if configured, verified) inner payload bytes.
type envelope struct {
	source  [][]byte
	payload []byte
}
