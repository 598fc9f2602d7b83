package server

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"chatd/config"
	"chatd/db"
	"chatd/faq"
	"chatd/protocol"

	"github.com/rs/zerolog"
)

const welcomeBanner = "Welcome! Please login or register.\n" +
	"Commands: /login <username> <password> or /register <username> <password>"

// Server accepts TCP connections and runs one session goroutine per client.
type Server struct {
	db       *db.DB
	config   *config.Config
	registry *Registry
	router   *Router
	faq      *faq.Service
	log      zerolog.Logger

	listener net.Listener
}

func New(database *db.DB, cfg *config.Config, faqSvc *faq.Service, log zerolog.Logger) *Server {
	registry := NewRegistry(cfg.MaxClients)
	return &Server{
		db:       database,
		config:   cfg,
		registry: registry,
		router:   NewRouter(registry, log),
		faq:      faqSvc,
		log:      log,
	}
}

// Start binds the listen socket and runs the accept loop until the listener
// is closed.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	s.listener = listener
	defer listener.Close()

	s.log.Info().Int("port", s.config.Port).Str("uploads", s.config.UploadDir).Msg("server started")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			s.log.Error().Err(err).Msg("accept failed")
			continue
		}

		go s.handleConnection(conn)
	}
}

// Shutdown notifies every connected client and closes their sessions, then
// stops the accept loop.
func (s *Server) Shutdown(reason string) {
	for _, sess := range s.registry.Snapshot() {
		sess.SendLine("Server shutting down: " + reason)
		if user, ok := sess.Identity(); ok {
			if err := s.db.SetOnline(user, false); err != nil {
				s.log.Error().Err(err).Str("user", user).Msg("failed to clear online flag")
			}
		}
		sess.Close()
		s.registry.Remove(sess.ID())
	}

	if s.listener != nil {
		s.listener.Close()
	}
}

// Stats reports active session and online user counts for the control
// socket.
func (s *Server) Stats() string {
	users := s.router.ListOnline()
	return "connections=" + strconv.Itoa(s.registry.Len()) +
		",users=" + strings.Join(users, ";")
}

// handleConnection runs a session to completion. Cleanup (logout, leave
// notice, registry removal) runs unconditionally on exit.
func (s *Server) handleConnection(conn net.Conn) {
	sess := NewSession(s.registry.NextID(), conn, s.config.WriteTimeout)
	log := s.log.With().Uint32("session", sess.ID()).Str("remote", remoteAddr(conn)).Logger()

	if err := s.registry.Insert(sess); err != nil {
		log.Warn().Msg("registry at capacity, refusing connection")
		sess.SendLine("Server is full. Try again later.")
		sess.Close()
		return
	}

	defer func() {
		user, authed := sess.Identity()
		sess.Close()
		s.registry.Remove(sess.ID())

		if authed {
			if err := s.db.SetOnline(user, false); err != nil {
				log.Error().Err(err).Str("user", user).Msg("failed to clear online flag")
			}
			s.router.Broadcast(user+" left the chat", sess.ID())
			log.Info().Str("user", user).Msg("client disconnected")
		} else {
			log.Info().Msg("client disconnected")
		}
	}()

	log.Info().Msg("client connected")
	sess.SendLine(welcomeBanner)

	reader := bufio.NewReader(conn)
	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				log.Info().Msg("session idle timeout")
				return
			}
			if err != io.EOF && !strings.Contains(err.Error(), "use of closed network connection") {
				log.Warn().Err(err).Msg("read failed")
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		if !s.dispatch(sess, reader, protocol.ParseCommand(line), log) {
			return
		}
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
