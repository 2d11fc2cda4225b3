package mcproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedDispatcher(t *testing.T, d *FrameDispatcher, data []byte) (bool, error) {
	t.Helper()

	region, err := d.AcquireReadRegion()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(region), len(data))

	n := copy(region, data)
	return d.ReadDataAvailable(n)
}

func TestFrameDispatcherDeliversCompleteUmbrellaFrame(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{})
	defer d.Close()

	var delivered FrameDescriptor
	var payload []byte
	d.OnUmbrellaMessage(func(fd FrameDescriptor, frame []byte) bool {
		delivered = fd
		payload = append([]byte(nil), frame[fd.HeaderSize:]...)
		return true
	})

	body := []byte("12345678")
	frame := append(EncodeUmbrellaHeader(FrameDescriptor{
		HeaderSize: 24,
		BodySize:   uint32(len(body)),
		TypeID:     3,
		RequestID:  9,
	}), body...)

	// when
	ok, err := feedDispatcher(t, d, frame)

	// then
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, uint32(24), delivered.HeaderSize)
	assert.Equal(t, body, payload)
	assert.Equal(t, ProtocolUmbrella, d.Protocol())
	assert.Equal(t, 0, d.buf.PendingLen(), "the delivered frame must be fully consumed")
}

func TestFrameDispatcherWaitsForMoreDataOnPartialHeader(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{})
	defer d.Close()

	called := false
	d.OnUmbrellaMessage(func(FrameDescriptor, []byte) bool {
		called = true
		return true
	})

	// when: only the magic byte has arrived
	ok, err := feedDispatcher(t, d, []byte{umbrellaMagicByte})

	// then
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.False(t, called, "must not deliver until the full header has arrived")
}

func TestFrameDispatcherWaitsForBodyAfterCompleteHeader(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{})
	defer d.Close()

	called := false
	d.OnUmbrellaMessage(func(FrameDescriptor, []byte) bool {
		called = true
		return true
	})

	header := EncodeUmbrellaHeader(FrameDescriptor{HeaderSize: 24, BodySize: 8})

	// when: header complete, body not yet arrived
	ok, err := feedDispatcher(t, d, header)

	// then
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.False(t, called)

	// when: the remaining body bytes arrive
	ok, err = feedDispatcher(t, d, []byte("12345678"))

	// then
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestFrameDispatcherAbortsOnMalformedHeader(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{})
	defer d.Close()

	var reportedCode ErrorCode
	var reportedMsg string
	d.OnParseError(func(code ErrorCode, msg string) {
		reportedCode = code
		reportedMsg = msg
	})

	bad := EncodeUmbrellaHeader(FrameDescriptor{HeaderSize: 4})

	// when
	ok, err := feedDispatcher(t, d, bad)

	// then
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformedHeader)
	assert.Equal(t, ErrRemote, reportedCode)
	assert.Equal(t, "Error parsing umbrella header", reportedMsg)

	// and: the connection stays aborted for any further data
	ok, err = feedDispatcher(t, d, []byte{0x00})
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestFrameDispatcherAbortsOnOversizedFrame(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{MaxFrameSize: 30})
	defer d.Close()

	// when
	ok, err := feedDispatcher(t, d, EncodeUmbrellaHeader(FrameDescriptor{
		HeaderSize: 24,
		BodySize:   1000,
	}))

	// then
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrameDispatcherAbortsOnCallbackRefusal(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{})
	defer d.Close()

	d.OnUmbrellaMessage(func(FrameDescriptor, []byte) bool {
		return false
	})

	frame := append(EncodeUmbrellaHeader(FrameDescriptor{HeaderSize: 24, BodySize: 2}), []byte("hi")...)

	// when
	ok, err := feedDispatcher(t, d, frame)

	// then
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCallbackRefused)
}

func TestFrameDispatcherAbortsOnUnknownProtocol(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{})
	defer d.Close()

	var reportedCode ErrorCode
	d.OnParseError(func(code ErrorCode, _ string) {
		reportedCode = code
	})

	// when
	ok, err := feedDispatcher(t, d, []byte{0xFF})

	// then
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnknownProtocol)
	assert.Equal(t, ErrRemote, reportedCode)
}

func TestFrameDispatcherDeliversAsciiLine(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{})
	defer d.Close()

	var received string
	d.OnAscii(func(buffer []byte) int {
		idx := -1
		for i := 0; i+1 < len(buffer); i++ {
			if buffer[i] == '\r' && buffer[i+1] == '\n' {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0
		}
		received = string(buffer[:idx])
		return idx + 2
	})

	// when
	ok, err := feedDispatcher(t, d, []byte("get foo\r\n"))

	// then
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, "get foo", received)
	assert.Equal(t, ProtocolAscii, d.Protocol())
	assert.Equal(t, 0, d.buf.PendingLen())
}

func TestFrameDispatcherDeliversTwoCaretFramesOfDifferentSizes(t *testing.T) {
	// given
	d := NewFrameDispatcher(DispatcherConfig{})
	defer d.Close()

	var sizes []int
	d.OnCaretMessage(func(fd FrameDescriptor, frame []byte) bool {
		sizes = append(sizes, len(frame))
		return true
	})

	first := append(EncodeCaretHeader(FrameDescriptor{HeaderSize: caretHeaderSize, BodySize: 20}), make([]byte, 20)...)
	second := append(EncodeCaretHeader(FrameDescriptor{HeaderSize: caretHeaderSize, BodySize: 36}), make([]byte, 36)...)

	// when
	ok, err := feedDispatcher(t, d, append(first, second...))

	// then
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, []int{40, 56}, sizes)
}
