package basestation

import (
	"testing"

	"github.com/danmuck/grassroots/internal/protocol"
	"github.com/danmuck/grassroots/internal/protocol/frame"
	"github.com/stretchr/testify/require"
)

func textFrame(t *testing.T, source, sensor uint8, id uint16, s string) frame.Frame {
	t.Helper()
	h := protocol.Header{SystemID: 111, SourceID: source, SensorID: sensor, MessageID: id, MessageType: protocol.MessageText}
	f, err := protocol.Encode(frame.LengthLastIndex, h, []byte(s))
	require.NoError(t, err)
	return f
}

func fragmentFrame(t *testing.T, source, sensor uint8, row, col uint16, pix ...byte) frame.Frame {
	t.Helper()
	payload, err := protocol.FragmentPayload(protocol.ImageFragment{
		StartRow:    row,
		StartColumn: col,
		PixelCount:  uint8(len(pix)),
		Depth:       1,
		Pixels:      pix,
	})
	require.NoError(t, err)
	h := protocol.Header{SystemID: 111, SourceID: source, SensorID: sensor, MessageType: protocol.MessageImageFragment}
	f, err := protocol.Encode(frame.LengthLastIndex, h, payload)
	require.NoError(t, err)
	return f
}
