package mcproxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"
)

// BackendClient is a connection to a single backend cache server identified
// by an AccessPoint. A real RouteTree implementation dials one of these per
// destination it fans a request out to; this core only needs the
// connection primitive to exist so the recording-vs-real-I/O distinction in
// spec.md §4.5 is testable, not to implement routing itself.
type BackendClient struct {
	ap         AccessPoint
	connection net.Conn
	closeSync  sync.Once

	onCloseHandler func()
}

// DialBackend connects to ap over plain TCP.
func DialBackend(ap AccessPoint) (*BackendClient, error) {
	connection, err := net.Dial("tcp", ap.Address)
	if err != nil {
		return nil, err
	}

	return &BackendClient{
		ap:         ap,
		connection: connection,
	}, nil
}

// DialBackendTLS connects to ap over TCP and performs a TLS handshake.
func DialBackendTLS(ap AccessPoint, tlsConfig *tls.Config) (*BackendClient, error) {
	connection, err := tls.Dial("tcp", ap.Address, tlsConfig)
	if err != nil {
		return nil, err
	}

	return &BackendClient{
		ap:         ap,
		connection: connection,
	}, nil
}

// AccessPoint returns the destination this client is connected to.
func (c *BackendClient) AccessPoint() AccessPoint {
	return c.ap
}

// Close closes the connection to the backend.
func (c *BackendClient) Close() error {
	var err error

	c.closeSync.Do(func() {
		e := c.connection.Close()
		if e != nil {
			err = e
		}

		if c.onCloseHandler != nil {
			c.onCloseHandler()
		}
	})

	return err
}

// Read conforms to the io.Reader interface.
func (c *BackendClient) Read(b []byte) (int, error) {
	n, err := c.connection.Read(b)
	if err != nil {
		if isBrokenPipe(err) {
			_ = c.Close()
			return n, io.EOF
		}

		return n, err
	}

	return n, nil
}

// Write conforms to the io.Writer interface.
func (c *BackendClient) Write(b []byte) (int, error) {
	n, err := c.connection.Write(b)
	if err != nil {
		if isBrokenPipe(err) {
			_ = c.Close()
			return n, io.EOF
		}

		return n, err
	}

	return n, nil
}

// Unwrap returns the underlying net.Conn.
func (c *BackendClient) Unwrap() net.Conn {
	return c.connection
}

// UnwrapTLS tries to return the underlying tls.Conn.
func (c *BackendClient) UnwrapTLS() (*tls.Conn, bool) {
	if conn, ok := c.connection.(*tls.Conn); ok {
		return conn, true
	}

	return nil, false
}

// OnClose sets a handler called when the connection closes, either locally
// or because the backend dropped it.
func (c *BackendClient) OnClose(handler func()) {
	c.onCloseHandler = handler
}

// WriteRequest frames body as protocol and writes header plus body to the backend connection.
// typeID and requestID are carried straight through from the client request's FrameDescriptor, so
// the backend's reply can be correlated back to it.
func (c *BackendClient) WriteRequest(protocol Protocol, typeID uint32, requestID uint64, body []byte) error {
	headerSize := uint32(umbrellaHeaderSize)
	if protocol == ProtocolCaret {
		headerSize = caretHeaderSize
	}

	fd := FrameDescriptor{
		HeaderSize: headerSize,
		BodySize:   uint32(len(body)),
		TypeID:     typeID,
		RequestID:  requestID,
	}

	if err := WriteFrameHeader(c, protocol, fd); err != nil {
		return err
	}

	return WriteBytes(c, body)
}

// ReadReply reads one protocol-framed reply off the backend connection and returns it as a Reply.
func (c *BackendClient) ReadReply(protocol Protocol) (Reply, error) {
	fd, err := ReadFrameHeader(c, protocol)
	if err != nil {
		return Reply{}, err
	}

	body, err := ReadBytes(c, int(fd.BodySize))
	if err != nil {
		return Reply{}, err
	}

	return Reply{TypeID: fd.TypeID, Payload: body}, nil
}

// SetCommand is a backend-bound memcached storage command: a key, the client-opaque flags and
// expiration memcached's own "set" command carries, a CAS value for compare-and-swap backends, a
// noreply hint, and the value itself. DefaultBackendDialer accepts one of these as its request
// argument wherever the caller has a structured command rather than an already-framed blob.
type SetCommand struct {
	Key      string
	Flags    int32
	ExpireAt int32
	Cas      int64
	NoReply  bool
	Value    []byte
}

// EncodeSetCommand serializes cmd into a frame body using the var-int/fixed-width primitives in
// reading.go/writing.go: a length-prefixed key, flags, exptime, CAS, the noreply flag, then the
// value as a length-prefixed byte array.
func EncodeSetCommand(cmd SetCommand) ([]byte, error) {
	var buf bytes.Buffer

	if err := WriteString(&buf, cmd.Key); err != nil {
		return nil, err
	}
	if err := WriteInt32(&buf, cmd.Flags); err != nil {
		return nil, err
	}
	if err := WriteInt32(&buf, cmd.ExpireAt); err != nil {
		return nil, err
	}
	if err := WriteVarLong(&buf, cmd.Cas); err != nil {
		return nil, err
	}
	if err := WriteBool(&buf, cmd.NoReply); err != nil {
		return nil, err
	}
	if err := WriteByteArray(&buf, cmd.Value); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeSetCommand parses a frame body produced by EncodeSetCommand.
func DecodeSetCommand(body []byte) (SetCommand, error) {
	r := bytes.NewReader(body)

	key, err := ReadString(r)
	if err != nil {
		return SetCommand{}, err
	}

	flags, err := ReadInt32(r)
	if err != nil {
		return SetCommand{}, err
	}

	expireAt, err := ReadInt32(r)
	if err != nil {
		return SetCommand{}, err
	}

	cas, err := ReadVarLong(r)
	if err != nil {
		return SetCommand{}, err
	}

	noReply, err := ReadBool(r)
	if err != nil {
		return SetCommand{}, err
	}

	value, err := ReadByteArray(r)
	if err != nil {
		return SetCommand{}, err
	}

	return SetCommand{
		Key:      key,
		Flags:    flags,
		ExpireAt: expireAt,
		Cas:      cas,
		NoReply:  noReply,
		Value:    value,
	}, nil
}

// DefaultBackendDialer returns a BackendDialer that dials a plain TCP connection per request,
// writes request as a protocol-framed body with typeID and requestID, reads back one framed
// reply, and closes the connection. It is the grounding implementation FanoutRouteTree.Dial can be
// set to directly; a production route tree would likely pool BackendClients instead of dialing
// fresh per request, but the protocol plumbing is identical. request may be a raw []byte body or a
// SetCommand, which is encoded via EncodeSetCommand first.
func DefaultBackendDialer(protocol Protocol, typeID uint32, timeout time.Duration) BackendDialer {
	return func(ctx context.Context, ap AccessPoint, request any) (Reply, error) {
		var body []byte
		switch r := request.(type) {
		case []byte:
			body = r
		case SetCommand:
			encoded, err := EncodeSetCommand(r)
			if err != nil {
				return Reply{}, err
			}
			body = encoded
		}

		client, err := DialBackend(ap)
		if err != nil {
			return Reply{}, err
		}
		defer func() { _ = client.Close() }()

		if deadline, ok := ctx.Deadline(); ok {
			_ = client.connection.SetDeadline(deadline)
		} else if timeout > 0 {
			_ = client.connection.SetDeadline(time.Now().Add(timeout))
		}

		var requestID uint64
		if fd, ok := ctx.Value(requestIDContextKey{}).(uint64); ok {
			requestID = fd
		}

		if err := client.WriteRequest(protocol, typeID, requestID, body); err != nil {
			return Reply{}, err
		}

		return client.ReadReply(protocol)
	}
}

// requestIDContextKey lets DefaultBackendDialer recover the originating request_id from the
// context a RouteTree.Route call threads through, without widening BackendDialer's signature.
type requestIDContextKey struct{}

// WithRequestID returns a context carrying requestID for DefaultBackendDialer to pick up.
func WithRequestID(ctx context.Context, requestID uint64) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}
