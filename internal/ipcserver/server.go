// Package ipcserver runs the simple request/response side of §6's socket
// topology: a service that has no per-connection session state of its own
// (the data service, the random service) just decodes one raw-data frame
// per request and writes back one raw-data frame per response, on however
// many client sockets are connected at once. internal/protocolsvc.Connection
// needs its own handshake/command state machine and is driven directly by
// internal/reactor; this package is for its two simpler collaborators.
package ipcserver

import (
	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/reactor"
	"synnergy-network/internal/wire"
)

// Handler answers one decoded request body with the response body to frame
// and send back. It must never block, matching every other reactor
// callback in this system.
type Handler func(body []byte) []byte

// Server accepts connections on a listening socket already registered with
// loop and dispatches each one's framed requests to handle.
type Server struct {
	loop     *reactor.Loop
	listenSC *reactor.SocketContext
	handle   Handler
}

// New wraps listenFD (already bound and listening, e.g. via reactor.Listen)
// so that Start begins accepting connections on it.
func New(loop *reactor.Loop, listenFD int, handle Handler) *Server {
	return &Server{loop: loop, listenSC: loop.Add(listenFD), handle: handle}
}

// Start registers the listening socket's read interest. Connections
// accepted after this call are dispatched to the server's Handler until the
// loop exits.
func (s *Server) Start() {
	s.loop.SetReadCallback(s.listenSC, s.onListenReadable)
}

func (s *Server) onListenReadable(l *reactor.Loop, sc *reactor.SocketContext) {
	for {
		fd, err := reactor.Accept(s.listenSC.FD)
		if err != nil {
			if agenterr.CodeOf(err) == agenterr.WouldBlock {
				return
			}
			return
		}
		s.acceptConn(fd)
	}
}

func (s *Server) acceptConn(fd int) {
	csc := s.loop.Add(fd)
	s.loop.SetReadCallback(csc, s.onConnReadable)
	s.loop.SetCloseCallback(csc, func(l *reactor.Loop, sc *reactor.SocketContext) {
		l.Remove(sc)
	})
}

func (s *Server) onConnReadable(l *reactor.Loop, sc *reactor.SocketContext) {
	for {
		payload, consumed, err := wire.DecodeData(sc.ReadBuf.Bytes())
		if err != nil {
			if agenterr.CodeOf(err) == agenterr.WouldBlock {
				return
			}
			l.Remove(sc)
			return
		}
		sc.ReadBuf.Drain(consumed)

		respBody := s.handle(payload)
		frame, err := wire.EncodeData(respBody)
		if err != nil {
			l.Remove(sc)
			return
		}
		if err := l.QueueWrite(sc, frame, nil); err != nil {
			l.Remove(sc)
			return
		}
	}
}
