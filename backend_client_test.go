package mcproxy

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendClientOver wraps one end of an in-memory pipe as a BackendClient, so WriteRequest/ReadReply
// can be exercised without dialing a real backend.
func backendClientOver(conn net.Conn) *BackendClient {
	return &BackendClient{ap: AccessPoint{Address: "pipe"}, connection: conn}
}

func TestBackendClientWriteRequestReadReplyRoundTrip(t *testing.T) {
	// given
	clientConn, backendConn := net.Pipe()
	client := backendClientOver(clientConn)
	backend := backendClientOver(backendConn)
	defer client.Close()
	defer backend.Close()

	body := []byte("get foo")
	done := make(chan struct{})

	go func() {
		defer close(done)

		fd, err := ReadFrameHeader(backend, ProtocolUmbrella)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, uint32(7), fd.BodySize)
		assert.Equal(t, uint64(42), fd.RequestID)

		received, err := ReadBytes(backend, int(fd.BodySize))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, body, received)

		reply := Reply{TypeID: fd.TypeID, Payload: []byte("VALUE bar")}
		require.NoError(t, WriteFrameHeader(backend, ProtocolUmbrella, FrameDescriptor{
			HeaderSize: umbrellaHeaderSize,
			BodySize:   uint32(len(reply.Payload)),
			TypeID:     reply.TypeID,
			RequestID:  fd.RequestID,
		}))
		require.NoError(t, WriteBytes(backend, reply.Payload))
	}()

	// when
	err := client.WriteRequest(ProtocolUmbrella, 1, 42, body)
	require.NoError(t, err)

	reply, err := client.ReadReply(ProtocolUmbrella)

	// then
	require.NoError(t, err)
	assert.Equal(t, []byte("VALUE bar"), reply.Payload)
	<-done
}

func TestSetCommandRoundTrip(t *testing.T) {
	// given
	cmd := SetCommand{
		Key:      "foo",
		Flags:    7,
		ExpireAt: 1800000000,
		Cas:      123456789012,
		NoReply:  true,
		Value:    []byte("bar"),
	}

	// when
	body, err := EncodeSetCommand(cmd)
	require.NoError(t, err)

	decoded, err := DecodeSetCommand(body)

	// then
	require.NoError(t, err)
	assert.Equal(t, cmd, decoded)
}
