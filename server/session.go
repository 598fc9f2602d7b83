package server

import (
	"net"
	"sync"
	"time"
)

// SessionState tracks where a connection is in its lifecycle.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateClosed
)

// Session is the live representation of one connected client. It owns the
// connection exclusively; the only way other goroutines reach the socket is
// SendLine, which serializes writes and respects transfer mode.
//
// While a file frame is in flight on the stream the session is in transfer
// mode: lines routed to it are buffered and flushed once the frame is fully
// consumed, so pushed text can never interleave with frame bytes.
type Session struct {
	id           uint32
	conn         net.Conn
	writeTimeout time.Duration

	mu           sync.Mutex
	username     string
	state        SessionState
	transferring bool
	pending      []string
}

func NewSession(id uint32, conn net.Conn, writeTimeout time.Duration) *Session {
	return &Session{
		id:           id,
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (s *Session) ID() uint32 {
	return s.id
}

// Identity returns the bound username and whether the session is
// authenticated.
func (s *Session) Identity() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.state == StateAuthenticated
}

func (s *Session) Username() string {
	user, _ := s.Identity()
	return user
}

func (s *Session) Authenticated() bool {
	_, ok := s.Identity()
	return ok
}

// Authenticate binds the session to an account and moves it to
// StateAuthenticated.
func (s *Session) Authenticate(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.state = StateAuthenticated
}

// SendLine writes one text line to the client, best-effort. In transfer
// mode the line is buffered until EndTransfer. Safe for concurrent use.
func (s *Session) SendLine(text string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return net.ErrClosed
	}
	if s.transferring {
		s.pending = append(s.pending, text)
		s.mu.Unlock()
		return nil
	}
	defer s.mu.Unlock()
	return s.writeLine(text)
}

// writeLine writes under s.mu.
func (s *Session) writeLine(text string) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	_, err := s.conn.Write([]byte(text + "\n"))
	return err
}

// BeginTransfer puts the session into transfer mode. Called by the
// session's own goroutine before a frame crosses the stream in either
// direction.
func (s *Session) BeginTransfer() {
	s.mu.Lock()
	s.transferring = true
	s.mu.Unlock()
}

// EndTransfer leaves transfer mode and flushes lines buffered while the
// frame was in flight, in arrival order.
func (s *Session) EndTransfer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transferring = false
	for _, text := range s.pending {
		if err := s.writeLine(text); err != nil {
			break
		}
	}
	s.pending = nil
}

// Close moves the session to its terminal state and closes the socket.
// Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.pending = nil
	s.mu.Unlock()
	return s.conn.Close()
}
