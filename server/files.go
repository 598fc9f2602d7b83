package server

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"time"

	"chatd/protocol"

	"github.com/rs/zerolog"
)

// handlePut receives one file frame from the client into the upload area.
// The frame is read from the session's buffered reader: the length prefix
// may already sit in the buffer behind the command line.
func (s *Server) handlePut(sess *Session, reader *bufio.Reader, name string, log zerolog.Logger) {
	if name == "" {
		sess.SendLine("Usage: put <filename>")
		return
	}

	// From here until the frame is fully consumed, nothing on this stream
	// is a command line. Pushes routed to this session are buffered.
	sess.BeginTransfer()
	defer sess.EndTransfer()

	// Frame duration is bounded by the transfer size, not the command
	// timeout.
	sess.conn.SetReadDeadline(time.Time{})
	defer sess.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		log.Error().Err(err).Msg("failed to create upload dir")
		s.drainPutFrame(reader, log)
		sess.SendLine("Server: Failed to create file")
		return
	}

	path := filepath.Join(s.config.UploadDir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to create upload file")
		s.drainPutFrame(reader, log)
		sess.SendLine("Server: Failed to create file")
		return
	}

	n, err := protocol.ReadFrame(reader, f)
	f.Close()

	switch {
	case err != nil:
		os.Remove(path)
		log.Warn().Err(err).Str("file", name).Msg("file upload failed")
		sess.SendLine("Server: File upload failed")
	case n == protocol.NotFoundSize:
		os.Remove(path)
		log.Info().Str("file", name).Msg("client reported file not found")
		sess.SendLine("File not found on client side")
	default:
		log.Info().Str("user", sess.Username()).Str("file", name).Int64("bytes", n).Msg("file uploaded")
		sess.SendLine("Server: File '" + name + "' uploaded successfully")
	}
}

// drainPutFrame consumes a frame that cannot be stored, so its payload is
// not later misread as command lines.
func (s *Server) drainPutFrame(reader *bufio.Reader, log zerolog.Logger) {
	if _, err := protocol.ReadFrame(reader, io.Discard); err != nil {
		log.Warn().Err(err).Msg("failed to drain rejected upload")
	}
}

// handleGet answers with one file frame: -1 if the object is absent,
// otherwise the exact byte length followed by the content.
func (s *Server) handleGet(sess *Session, name string, log zerolog.Logger) {
	if name == "" {
		sess.SendLine("Usage: get <filename>")
		return
	}

	sess.BeginTransfer()
	defer sess.EndTransfer()

	sess.conn.SetWriteDeadline(time.Time{})
	defer sess.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))

	path := filepath.Join(s.config.UploadDir, filepath.Base(name))
	f, err := os.Open(path)
	if err != nil {
		log.Info().Str("file", name).Msg("file not found for download")
		if err := protocol.WriteNotFound(sess.conn); err != nil {
			log.Warn().Err(err).Msg("failed to send not-found frame")
			sess.Close()
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to stat upload")
		if err := protocol.WriteNotFound(sess.conn); err != nil {
			sess.Close()
		}
		return
	}

	if err := protocol.WriteFrame(sess.conn, f, info.Size()); err != nil {
		// A frame cut short leaves the stream unparseable for the peer;
		// transport errors close the session.
		log.Warn().Err(err).Str("file", name).Msg("file download aborted")
		sess.Close()
		return
	}

	log.Info().Str("user", sess.Username()).Str("file", name).Int64("bytes", info.Size()).Msg("file downloaded")
}
