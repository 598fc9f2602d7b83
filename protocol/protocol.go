// Package protocol defines the wire format shared by server and client:
// newline-delimited text commands and the length-prefixed binary frame used
// for file transfer on the same stream.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// ChunkSize bounds a single read/write during frame streaming. Chunks
	// are not framing units; only the declared byte count matters.
	ChunkSize = 2048

	// NotFoundSize is the frame length sentinel for a missing object.
	NotFoundSize = -1

	// MaxFrameSize caps a declared frame length. A 32-bit length can name
	// up to 2 GiB; anything near that on a chat stream is a corrupt or
	// hostile prefix.
	MaxFrameSize = 1 << 30
)

var (
	ErrFrameTooLarge = errors.New("declared frame length too large")
	ErrShortFrame    = errors.New("frame ended before declared length")
)

// Command names understood by the server. Anything that parses to none of
// these is a broadcast chat line.
const (
	CmdLogin    = "/login"
	CmdRegister = "/register"
	CmdMsg      = "/msg"
	CmdUsers    = "/users"
	CmdFAQ      = "/faq"
	CmdPut      = "put"
	CmdGet      = "get"
	CmdExit     = "exit"
	CmdPing     = "ping"
)

// Command is one parsed client line. Args holds the space-separated
// arguments; Rest is everything after the command name with internal
// spacing preserved, for free-text arguments like message bodies.
type Command struct {
	Name string
	Args []string
	Rest string
}

// ParseCommand splits a received line into a command and its arguments.
// Lines that do not start with a known command name come back with an
// empty Name and the whole line in Rest.
func ParseCommand(line string) Command {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}

	switch fields[0] {
	case CmdLogin, CmdRegister, CmdMsg, CmdUsers, CmdFAQ, CmdPut, CmdGet, CmdExit, CmdPing:
		trimmed := strings.TrimLeft(line, " ")
		rest := strings.TrimLeft(strings.TrimPrefix(trimmed, fields[0]), " ")
		return Command{Name: fields[0], Args: fields[1:], Rest: rest}
	}

	return Command{Rest: line}
}

// WriteFrame writes a file frame: a signed 32-bit big-endian length followed
// by exactly size bytes copied from r in bounded chunks.
func WriteFrame(w io.Writer, r io.Reader, size int64) error {
	if size > MaxFrameSize {
		return ErrFrameTooLarge
	}

	if err := writeLength(w, int32(size)); err != nil {
		return err
	}

	written, err := copyChunked(w, r, size)
	if err != nil {
		return fmt.Errorf("frame write stopped at %d of %d bytes: %w", written, size, err)
	}
	if written < size {
		return fmt.Errorf("frame write stopped at %d of %d bytes: %w", written, size, io.ErrUnexpectedEOF)
	}

	return nil
}

// WriteNotFound writes the -1 length sentinel: the named object does not
// exist on the sending side, no payload follows.
func WriteNotFound(w io.Writer) error {
	return writeLength(w, NotFoundSize)
}

// ReadFrame reads one frame from r. A -1 length returns (-1, nil) without
// touching w. Otherwise exactly the declared byte count is copied into w;
// a stream that ends early yields ErrShortFrame so the caller reports a
// truncated transfer rather than silent success.
func ReadFrame(r io.Reader, w io.Writer) (int64, error) {
	size, err := readLength(r)
	if err != nil {
		return 0, err
	}

	if size < 0 {
		return NotFoundSize, nil
	}
	if size > MaxFrameSize {
		return 0, ErrFrameTooLarge
	}

	copied, err := copyChunked(w, r, int64(size))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return copied, fmt.Errorf("%w: got %d of %d bytes", ErrShortFrame, copied, size)
		}
		return copied, err
	}
	if copied < int64(size) {
		return copied, fmt.Errorf("%w: got %d of %d bytes", ErrShortFrame, copied, size)
	}

	return copied, nil
}

// copyChunked moves exactly n bytes from r to w in ChunkSize pieces.
func copyChunked(w io.Writer, r io.Reader, n int64) (int64, error) {
	return io.CopyBuffer(w, io.LimitReader(r, n), make([]byte, ChunkSize))
}

func writeLength(w io.Writer, size int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(size))
	_, err := w.Write(buf[:])
	return err
}

func readLength(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}
