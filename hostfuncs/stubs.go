package hostfuncs

import (
	"context"
	"encoding/json"
)

// Unsupported answers every call with ErrUnsupported. It backs capabilities
// declared by a generation but not implemented by this host: process control,
// the ffmpeg path lookup and the persistent cache.
func Unsupported(context.Context, *Capabilities, json.RawMessage) (Empty, error) {
	return Empty{}, ErrUnsupported
}
