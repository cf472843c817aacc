package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

// StreamH264 feeds an Annex-B H.264 stream into track, one coded slice per
// frame interval. It returns nil at end of stream.
func StreamH264(ctx context.Context, track *pion.TrackLocalStaticSample, r io.Reader, frameRate int) error {
	if frameRate <= 0 {
		return fmt.Errorf("webrtc: invalid frame rate %d", frameRate)
	}
	reader, err := h264reader.NewReader(r)
	if err != nil {
		return fmt.Errorf("webrtc: h264 reader: %w", err)
	}

	interval := time.Second / time.Duration(frameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		nal, err := reader.NextNAL()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("webrtc: read nal: %w", err)
		}

		// parameter sets share the timestamp of the slice that follows
		var duration time.Duration
		slice := nal.UnitType == h264reader.NalUnitTypeCodedSliceIdr ||
			nal.UnitType == h264reader.NalUnitTypeCodedSliceNonIdr
		if slice {
			duration = interval
		}
		if err := track.WriteSample(media.Sample{Data: nal.Data, Duration: duration}); err != nil {
			return fmt.Errorf("webrtc: write sample: %w", err)
		}
		if !slice {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
