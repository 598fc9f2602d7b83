package server

import (
	"bufio"
	"errors"
	"strings"

	"chatd/db"
	"chatd/protocol"

	"github.com/rs/zerolog"
)

// dispatch handles one parsed command line. Returns false when the session
// should close (explicit exit). Command processing is strictly sequential
// per session: dispatch never returns before the command, including any
// file frame it implies, is fully handled.
func (s *Server) dispatch(sess *Session, reader *bufio.Reader, cmd protocol.Command, log zerolog.Logger) bool {
	switch cmd.Name {
	case protocol.CmdPing:
		sess.SendLine("pong")
		return true
	case protocol.CmdExit:
		log.Info().Str("user", sess.Username()).Msg("client requested exit")
		return false
	case protocol.CmdLogin:
		s.handleLogin(sess, cmd, log)
		return true
	case protocol.CmdRegister:
		s.handleRegister(sess, cmd, log)
		return true
	}

	if !sess.Authenticated() {
		sess.SendLine("Please login first using /login <username> <password>")
		return true
	}

	switch cmd.Name {
	case protocol.CmdMsg:
		s.handleMsg(sess, cmd)
	case protocol.CmdUsers:
		s.handleUsers(sess)
	case protocol.CmdFAQ:
		s.handleFAQ(sess, cmd, log)
	case protocol.CmdPut:
		s.handlePut(sess, reader, cmd.Rest, log)
	case protocol.CmdGet:
		s.handleGet(sess, cmd.Rest, log)
	default:
		// Free text is a broadcast chat line.
		s.router.Broadcast(sess.Username()+": "+cmd.Rest, sess.ID())
	}
	return true
}

func (s *Server) handleLogin(sess *Session, cmd protocol.Command, log zerolog.Logger) {
	if len(cmd.Args) < 2 {
		sess.SendLine("Usage: /login <username> <password>")
		return
	}
	username, password := cmd.Args[0], cmd.Args[1]

	if sess.Authenticated() {
		sess.SendLine("Error: Already logged in")
		return
	}

	// Duplicate login wins over bad credentials, so a probe against a live
	// user never reveals whether the password matched.
	if _, taken := s.registry.ByUsername(username); taken {
		sess.SendLine("Error: User already logged in")
		return
	}

	valid, err := s.db.Authenticate(username, password)
	if err != nil {
		log.Error().Err(err).Msg("authenticate failed")
		sess.SendLine("Login failed: Internal error")
		return
	}
	if !valid {
		sess.SendLine("Login failed: Invalid username or password")
		return
	}

	if !s.registry.Bind(sess, username) {
		sess.SendLine("Error: User already logged in")
		return
	}

	if err := s.db.SetOnline(username, true); err != nil {
		log.Error().Err(err).Str("user", username).Msg("failed to set online flag")
	}

	sess.SendLine("Login successful! You can now chat, send files, or use commands.")
	s.router.Broadcast(username+" joined the chat", sess.ID())
	log.Info().Str("user", username).Msg("user logged in")
}

func (s *Server) handleRegister(sess *Session, cmd protocol.Command, log zerolog.Logger) {
	if len(cmd.Args) < 2 {
		sess.SendLine("Usage: /register <username> <password>")
		return
	}
	username, password := cmd.Args[0], cmd.Args[1]

	if len(username) > db.MaxUsernameLen {
		sess.SendLine("Registration failed: Username too long")
		return
	}

	switch err := s.db.Register(username, password); {
	case err == nil:
		sess.SendLine("Registration successful! You can now login.")
		log.Info().Str("user", username).Msg("user registered")
	case errors.Is(err, db.ErrUserExists):
		sess.SendLine("Registration failed: Username already exists")
	case errors.Is(err, db.ErrStoreFull):
		sess.SendLine("Registration failed: Server full")
	default:
		log.Error().Err(err).Msg("register failed")
		sess.SendLine("Registration failed: Internal error")
	}
}

func (s *Server) handleMsg(sess *Session, cmd protocol.Command) {
	if len(cmd.Args) < 2 {
		sess.SendLine("Usage: /msg <username> <message>")
		return
	}
	target := cmd.Args[0]
	body := strings.TrimLeft(strings.TrimPrefix(cmd.Rest, target), " ")

	switch err := s.router.Direct(sess, target, body); {
	case err == nil:
		sess.SendLine("Private message sent to " + target)
	case errors.Is(err, ErrNotAuthenticated):
		sess.SendLine("Error: You must be logged in to send private messages")
	default:
		sess.SendLine("Error: User '" + target + "' not found or offline")
	}
}

func (s *Server) handleUsers(sess *Session) {
	users := s.router.ListOnline()
	if len(users) == 0 {
		sess.SendLine("No users online")
		return
	}
	sess.SendLine("Online users: " + strings.Join(users, ", "))
}

func (s *Server) handleFAQ(sess *Session, cmd protocol.Command, log zerolog.Logger) {
	question := strings.TrimSpace(cmd.Rest)
	if question == "" {
		sess.SendLine("Usage: /faq <question>\nTry: /faq how to run, /faq how are you")
		return
	}

	log.Info().Str("user", sess.Username()).Str("question", question).Msg("faq question")
	sess.SendLine(s.faq.Ask(question))
}
