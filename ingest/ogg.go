package ingest

import (
	"bytes"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	sampleRate = 48000
	channels   = 2
)

// encodeUtterance packs a speaking span's Opus packets into an Ogg Opus
// blob suitable for a batch transcription call.
func encodeUtterance(packets []Packet) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := oggwriter.NewWith(&buf, sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create ogg writer: %w", err)
	}

	for _, p := range packets {
		err := writer.WriteRTP(&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    0x78,
				SequenceNumber: p.Sequence,
				Timestamp:      p.Timestamp,
				SSRC:           p.SSRC,
			},
			Payload: p.Opus,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write packet: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close ogg writer: %w", err)
	}

	return buf.Bytes(), nil
}
