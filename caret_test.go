package mcproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaretHeaderRoundTrip(t *testing.T) {
	// given: two frames of total size 40 and 56, matching the reference scenario
	first := FrameDescriptor{HeaderSize: caretHeaderSize, BodySize: 20, TypeID: 1, RequestID: 1}
	second := FrameDescriptor{HeaderSize: caretHeaderSize, BodySize: 36, TypeID: 2, RequestID: 2, ReplyFlag: true}

	for _, fd := range []FrameDescriptor{first, second} {
		encoded := EncodeCaretHeader(fd)
		decoded, status := ParseCaretHeader(encoded)

		assert.Equal(t, ParseOk, status)
		assert.Equal(t, fd, decoded)
		assert.Len(t, encoded, 20)
	}

	assert.Equal(t, uint32(40), first.TotalSize())
	assert.Equal(t, uint32(56), second.TotalSize())
}

func TestCaretHeaderNotEnoughData(t *testing.T) {
	partial := []byte{caretMagicByte, 0, 0}
	_, status := ParseCaretHeader(partial)
	assert.Equal(t, ParseNotEnoughData, status)
}

func TestCaretHeaderWrongMagicIsMalformed(t *testing.T) {
	data := EncodeCaretHeader(FrameDescriptor{HeaderSize: caretHeaderSize})
	data[0] = 0xFE

	_, status := ParseCaretHeader(data)
	assert.Equal(t, ParseMalformed, status)
}

func TestCaretHeaderDeclaredSizeBelowMinimumIsMalformed(t *testing.T) {
	data := EncodeCaretHeader(FrameDescriptor{HeaderSize: 4})
	_, status := ParseCaretHeader(data)
	assert.Equal(t, ParseMalformed, status)
}
