package sdp

import (
	"errors"
	"fmt"

	pionsdp "github.com/pion/sdp/v3"
)

// ErrNoMediaSection is returned when the description has no section of the
// requested kind.
var ErrNoMediaSection = errors.New("sdp: no media section")

// MediaFormats parses text as a full session description and returns the
// payload formats listed on the first mediaKind m= line. It is used to check
// that a rewritten description is still well formed.
func MediaFormats(text, mediaKind string) ([]string, error) {
	var desc pionsdp.SessionDescription
	if err := desc.Unmarshal([]byte(text)); err != nil {
		return nil, fmt.Errorf("sdp: parse: %w", err)
	}
	for _, media := range desc.MediaDescriptions {
		if media.MediaName.Media == mediaKind {
			return media.MediaName.Formats, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoMediaSection, mediaKind)
}
