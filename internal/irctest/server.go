// Package irctest provides a scripted IRC server for tests.
package irctest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Handler scripts one client connection. The connection is closed when it
// returns.
type Handler func(p *Peer)

// Server accepts IRC clients over plain TCP or WebSocket and runs a Handler
// for each of them.
type Server struct {
	address   string
	websocket bool
	handler   Handler
	listener  net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a plain TCP server.
func New(address string, handler Handler) *Server {
	return &Server{
		address: address,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
		quit:    make(chan struct{}),
	}
}

// NewWebSocket creates a server that upgrades every connection to WebSocket
// and exchanges one line per text frame.
func NewWebSocket(address string, handler Handler) *Server {
	s := New(address, handler)
	s.websocket = true
	return s
}

// Start listens and accepts connections in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// URL returns the ws:// URL of a WebSocket server.
func (s *Server) URL() string {
	return "ws://" + s.Addr() + "/"
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				continue
			}
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	if s.websocket {
		if _, err := ws.Upgrade(conn); err != nil {
			return
		}
	}

	s.handler(&Peer{conn: conn, r: bufio.NewReader(conn), websocket: s.websocket})
}

// Peer is the server side of one client connection.
type Peer struct {
	conn      net.Conn
	r         *bufio.Reader
	websocket bool
}

// ReadLine returns the next line sent by the client without its terminator.
func (p *Peer) ReadLine() (string, error) {
	if p.websocket {
		data, _, err := wsutil.ReadClientData(p.rw())
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	line, err := p.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Send writes raw data to the client. Over WebSocket data becomes one text
// frame as is.
func (p *Peer) Send(data string) error {
	if p.websocket {
		return wsutil.WriteServerText(p.conn, []byte(data))
	}
	_, err := p.conn.Write([]byte(data))
	return err
}

// Hangup ends the session from the server side. Over WebSocket it sends a
// close frame and waits for the client to close the connection; over TCP the
// connection is closed when the handler returns.
func (p *Peer) Hangup() error {
	if !p.websocket {
		return nil
	}
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	if err := ws.WriteFrame(p.conn, ws.NewCloseFrame(body)); err != nil {
		return err
	}
	_, err := io.Copy(io.Discard, p.r)
	return err
}

// Close closes the connection without a closing handshake.
func (p *Peer) Close() error {
	return p.conn.Close()
}

func (p *Peer) rw() io.ReadWriter {
	return struct {
		io.Reader
		io.Writer
	}{p.r, p.conn}
}
