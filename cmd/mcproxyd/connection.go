package main

import (
	"bytes"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrizzuto/mcproxy"
	"github.com/mrizzuto/mcproxy/config"
	mcmetrics "github.com/mrizzuto/mcproxy/metrics"
)

func handleConnection(
	socket *mcproxy.Socket,
	proxy *stubProxy,
	cfg *config.RouterConfig,
	rm *mcmetrics.RouterMetrics,
	logger zerolog.Logger,
) {
	dispatcher := mcproxy.NewFrameDispatcher(mcproxy.DispatcherConfig{
		Buffer: mcproxy.BufferConfig{
			MinBufferSize:      cfg.Buffer.MinSize,
			MaxBufferSize:      cfg.Buffer.MaxSize,
			UseSecureAllocator: cfg.Buffer.UseSecureAlloc,
			AdjustInterval:     cfg.Buffer.AdjustInterval,
		},
	})
	defer dispatcher.Close()

	socket.SetDispatcher(dispatcher)
	requester := mcproxy.NewSocketRef(socket)

	conn := zerolog.Dict().Str("remote", socket.RemoteAddress())

	dispatcher.OnParseError(func(code mcproxy.ErrorCode, message string) {
		rm.ParseErrorsTotal.WithLabelValues(code.String()).Inc()
		logger.Warn().Dict("connection", conn).Str("code", code.String()).Msg(message)
	})

	dispatcher.OnUmbrellaMessage(func(fd mcproxy.FrameDescriptor, frame []byte) bool {
		deliverBinaryFrame(mcproxy.ProtocolUmbrella, fd, frame, socket, requester, proxy, rm)
		return true
	})

	dispatcher.OnCaretMessage(func(fd mcproxy.FrameDescriptor, frame []byte) bool {
		deliverBinaryFrame(mcproxy.ProtocolCaret, fd, frame, socket, requester, proxy, rm)
		return true
	})

	dispatcher.OnAscii(func(buffer []byte) int {
		return deliverAsciiFrame(buffer, socket, requester, proxy, rm)
	})

	for {
		region, err := dispatcher.AcquireReadRegion()
		if err != nil {
			logger.Warn().Dict("connection", conn).Err(err).Msg("read buffer allocation failed")
			return
		}

		n, err := socket.Read(region)
		if n > 0 {
			ok, derr := dispatcher.ReadDataAvailable(n)
			if !ok {
				if derr != nil {
					logger.Warn().Dict("connection", conn).Err(derr).Msg("connection aborted")
				}
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// deliverBinaryFrame wraps a decoded umbrella/caret frame in a typed request
// context and routes it through the stub proxy, recording parse and reply
// latency metrics along the way.
func deliverBinaryFrame(
	protocol mcproxy.Protocol,
	fd mcproxy.FrameDescriptor,
	frame []byte,
	socket *mcproxy.Socket,
	requester *mcproxy.SocketRef,
	proxy *stubProxy,
	rm *mcmetrics.RouterMetrics,
) {
	rm.FramesParsedTotal.WithLabelValues(protocol.String()).Inc()

	payload := bytes.Clone(frame[fd.HeaderSize:])
	started := requestClock()

	ctx := mcproxy.NewTypedRequestContext(mcproxy.TypedRequestContextOptions[[]byte, mcproxy.Reply]{
		Payload:   payload,
		Priority:  mcproxy.PriorityNormal,
		Requester: requester,
		UserIP:    requester.UserIPAddress(),
		Proxy:     proxy,
		Encode:    func(r mcproxy.Reply) mcproxy.Reply { return r },
		SendToClient: func(reply mcproxy.Reply) {
			rm.ReplyLatencySeconds.Observe(time.Since(started).Seconds())
			_, _ = socket.Write(reply.Payload)
		},
	})

	ctx.Process(proxy.Config())
	ctx.StartProcessing()
}

// deliverAsciiFrame is a minimal stand-in sub-parser: it treats a single
// CRLF-terminated line as one complete ASCII command, echoes it back
// verbatim, and reports how many bytes it consumed.
func deliverAsciiFrame(buffer []byte, socket *mcproxy.Socket, requester *mcproxy.SocketRef, proxy *stubProxy, rm *mcmetrics.RouterMetrics) int {
	idx := bytes.Index(buffer, []byte("\r\n"))
	if idx < 0 {
		return 0
	}

	line := bytes.Clone(buffer[:idx])
	consumed := idx + 2

	rm.FramesParsedTotal.WithLabelValues(mcproxy.ProtocolAscii.String()).Inc()
	started := requestClock()

	ctx := mcproxy.NewTypedRequestContext(mcproxy.TypedRequestContextOptions[[]byte, mcproxy.Reply]{
		Payload:   line,
		Priority:  mcproxy.PriorityNormal,
		Requester: requester,
		UserIP:    requester.UserIPAddress(),
		Proxy:     proxy,
		Encode:    func(r mcproxy.Reply) mcproxy.Reply { return r },
		SendToClient: func(reply mcproxy.Reply) {
			rm.ReplyLatencySeconds.Observe(time.Since(started).Seconds())
			_, _ = socket.Write(reply.Payload)
			_, _ = socket.Write([]byte("\r\n"))
		},
	})

	ctx.Process(proxy.Config())
	ctx.StartProcessing()

	return consumed
}

func requestClock() time.Time {
	return time.Now()
}
