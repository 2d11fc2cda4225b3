package mcproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUmbrellaHeaderRoundTrip(t *testing.T) {
	// given: header_size=24, body_size=8, matching the reference scenario
	fd := FrameDescriptor{
		HeaderSize: 24,
		BodySize:   8,
		TypeID:     7,
		RequestID:  42,
		ReplyFlag:  true,
	}

	// when
	encoded := EncodeUmbrellaHeader(fd)
	decoded, status := ParseUmbrellaHeader(encoded)

	// then
	assert.Equal(t, ParseOk, status)
	assert.Equal(t, fd, decoded)
	assert.Len(t, encoded, 24)
	assert.Equal(t, uint32(32), decoded.TotalSize())
}

func TestUmbrellaHeaderNotEnoughData(t *testing.T) {
	// given: magic byte present but header truncated
	partial := []byte{umbrellaMagicByte, 0, 0, 0, 0, 0, 0}

	// when
	_, status := ParseUmbrellaHeader(partial)

	// then
	assert.Equal(t, ParseNotEnoughData, status)
}

func TestUmbrellaHeaderWrongMagicIsMalformed(t *testing.T) {
	// given
	data := EncodeUmbrellaHeader(FrameDescriptor{HeaderSize: 24})
	data[0] = 0x00

	// when
	_, status := ParseUmbrellaHeader(data)

	// then
	assert.Equal(t, ParseMalformed, status)
}

func TestUmbrellaHeaderDeclaredSizeBelowMinimumIsMalformed(t *testing.T) {
	// given
	data := EncodeUmbrellaHeader(FrameDescriptor{HeaderSize: 4})

	// when
	_, status := ParseUmbrellaHeader(data)

	// then
	assert.Equal(t, ParseMalformed, status)
}

func TestUmbrellaHeaderEmptyInputIsMalformed(t *testing.T) {
	_, status := ParseUmbrellaHeader(nil)
	assert.Equal(t, ParseMalformed, status)
}
