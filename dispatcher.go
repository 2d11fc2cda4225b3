package mcproxy

import "fmt"

// OnUmbrellaMessageFunc is invoked exactly once per complete umbrella frame.
// The buffer slice aliases the dispatcher's internal storage and is only
// valid until the callback returns. Returning false is a fatal protocol
// violation discovered downstream: the connection is aborted.
type OnUmbrellaMessageFunc func(fd FrameDescriptor, bufferSlice []byte) bool

// OnCaretMessageFunc is the caret-protocol counterpart of OnUmbrellaMessageFunc.
type OnCaretMessageFunc func(fd FrameDescriptor, bufferSlice []byte) bool

// OnAsciiFunc hands the entire pending region to an external ASCII
// sub-parser and reports back how many bytes it consumed. A return of 0
// means "not enough data yet"; the dispatcher waits for more bytes before
// calling again.
type OnAsciiFunc func(bufferSlice []byte) int

// OnParseErrorFunc reports a fatal parse error to the dispatcher's owner.
// No further callbacks fire for the connection after this.
type OnParseErrorFunc func(code ErrorCode, message string)

// FrameDispatcher drives a ReadBuffer through the SCAN_HEADER -> HAVE_HEADER
// -> DELIVER -> consume_front state machine, detecting the connection's
// protocol from its first byte and invoking the matching per-protocol
// callback exactly once per complete message.
type FrameDispatcher struct {
	buf    *ReadBuffer
	parser ParserState
	config DispatcherConfig

	onUmbrellaMessage OnUmbrellaMessageFunc
	onCaretMessage    OnCaretMessageFunc
	onAscii           OnAsciiFunc
	onParseError      OnParseErrorFunc

	aborted bool
}

// NewFrameDispatcher constructs a dispatcher with its own ReadBuffer, sized
// per config.
func NewFrameDispatcher(config DispatcherConfig) *FrameDispatcher {
	config = mergeDispatcherConfig(config)

	return &FrameDispatcher{
		buf:    NewReadBuffer(config.Buffer),
		config: config,
	}
}

// OnUmbrellaMessage registers the umbrella frame delivery callback.
func (d *FrameDispatcher) OnUmbrellaMessage(fn OnUmbrellaMessageFunc) {
	d.onUmbrellaMessage = fn
}

// OnCaretMessage registers the caret frame delivery callback.
func (d *FrameDispatcher) OnCaretMessage(fn OnCaretMessageFunc) {
	d.onCaretMessage = fn
}

// OnAscii registers the ASCII delivery callback.
func (d *FrameDispatcher) OnAscii(fn OnAsciiFunc) {
	d.onAscii = fn
}

// OnParseError registers the fatal-error reporting callback.
func (d *FrameDispatcher) OnParseError(fn OnParseErrorFunc) {
	d.onParseError = fn
}

// Protocol returns the protocol detected for this connection, or
// ProtocolUnknown before the first byte has arrived.
func (d *FrameDispatcher) Protocol() Protocol {
	return d.parser.Protocol()
}

// AcquireReadRegion returns a writable region the caller should fill with
// freshly read bytes, then report back via ReadDataAvailable.
func (d *FrameDispatcher) AcquireReadRegion() ([]byte, error) {
	region, err := d.buf.AcquireWriteRegion()
	if err != nil {
		return nil, fmt.Errorf("mcproxy: %w", ErrAllocationFailed)
	}

	return region, nil
}

// ReadDataAvailable reports that n bytes were written into the region
// returned by the most recent AcquireReadRegion call, then drives the
// dispatch loop over whatever complete frames are now available. It returns
// false once a fatal condition (unknown protocol, malformed header, or
// callback refusal) has aborted the connection; the caller must close it.
func (d *FrameDispatcher) ReadDataAvailable(n int) (bool, error) {
	if d.aborted {
		return false, nil
	}

	d.buf.CommitWrite(n)
	return d.drain()
}

// Close releases any secure allocation still held by the underlying buffer.
func (d *FrameDispatcher) Close() {
	d.buf.Close()
}

func (d *FrameDispatcher) drain() (bool, error) {
	for {
		pending := d.buf.Pending()
		if len(pending) == 0 {
			return true, nil
		}

		if !d.parser.FirstByteSeen() {
			if err := d.parser.Observe(pending[0]); err != nil {
				d.reportError(ErrRemote, "unknown protocol")
				d.abort()
				return false, err
			}
		}

		switch d.parser.Protocol() {
		case ProtocolAscii:
			done, err := d.stepAscii(pending)
			if !done || err != nil {
				return done, err
			}
		case ProtocolUmbrella:
			done, err := d.stepBinary(pending, ParseUmbrellaHeader, d.onUmbrellaMessage, "umbrella")
			if !done || err != nil {
				return done, err
			}
		case ProtocolCaret:
			done, err := d.stepBinary(pending, ParseCaretHeader, d.onCaretMessage, "caret")
			if !done || err != nil {
				return done, err
			}
		default:
			d.abort()
			return false, ErrUnknownProtocol
		}

		// A step that made no progress (waiting for more header/body bytes,
		// or an ASCII parser that reported zero bytes consumed) must stop
		// looping instead of spinning on the same pending region.
		if len(d.buf.Pending()) == len(pending) {
			return true, nil
		}
	}
}

func (d *FrameDispatcher) stepAscii(pending []byte) (bool, error) {
	if d.onAscii == nil {
		return true, nil
	}

	consumed := d.onAscii(pending)
	if consumed <= 0 {
		return true, nil
	}
	if consumed > len(pending) {
		consumed = len(pending)
	}

	d.buf.ConsumeFront(consumed)
	d.buf.NotifyFrameParsed()

	return true, nil
}

func (d *FrameDispatcher) stepBinary(
	pending []byte,
	parse HeaderParser,
	deliver func(FrameDescriptor, []byte) bool,
	protoName string,
) (bool, error) {
	fd, status := parse(pending)

	switch status {
	case ParseNotEnoughData:
		return true, nil
	case ParseMalformed:
		d.reportError(ErrRemote, fmt.Sprintf("Error parsing %s header", protoName))
		d.abort()
		return false, ErrMalformedHeader
	}

	if fd.TotalSize() > d.config.MaxFrameSize {
		d.reportError(ErrRemote, fmt.Sprintf("Error parsing %s header", protoName))
		d.abort()
		return false, ErrFrameTooLarge
	}

	frameSize := int(fd.TotalSize())
	if len(pending) < frameSize {
		if err := d.buf.EnsureCapacity(frameSize); err != nil {
			d.reportError(ErrLocal, "buffer allocation failed")
			d.abort()
			return false, ErrAllocationFailed
		}
		return true, nil
	}

	frame := pending[:frameSize]

	ok := true
	if deliver != nil {
		ok = deliver(fd, frame)
	}
	if !ok {
		d.buf.ConsumeFront(d.buf.PendingLen())
		d.abort()
		return false, ErrCallbackRefused
	}

	d.buf.ConsumeFront(frameSize)
	d.buf.NotifyFrameParsed()

	return true, nil
}

func (d *FrameDispatcher) reportError(code ErrorCode, message string) {
	if d.onParseError != nil {
		d.onParseError(code, message)
	}
}

func (d *FrameDispatcher) abort() {
	d.aborted = true
}
