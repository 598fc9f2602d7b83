package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatd/protocol"
)

const (
	downloadDir = "downloads"

	// pollInterval bounds how long a pause request waits for the drain
	// goroutine to reach a read boundary.
	pollInterval = 250 * time.Millisecond

	writeTimeout = 10 * time.Second
)

var errDisconnected = errors.New("server disconnected")

// Client owns one connection to the chat server. A background drain
// goroutine continuously prints inbound pushes; file transfers suspend it
// through an explicit pause/ack/resume handshake so that no goroutine can
// consume bytes belonging to a file frame. The handshake is a hard stop at
// a read boundary, not a best-effort interrupt.
type Client struct {
	conn net.Conn
	r    *bufio.Reader

	pauseCh  chan struct{}
	ackCh    chan struct{}
	resumeCh chan struct{}
	done     chan struct{}
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:     conn,
		r:        bufio.NewReader(conn),
		pauseCh:  make(chan struct{}),
		ackCh:    make(chan struct{}),
		resumeCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.drain()
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed when the drain goroutine observes a dead connection.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send writes one command line to the server.
func (c *Client) Send(line string) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// drain continuously reads server pushes and prints them. Reads use a short
// deadline so a pause request is observed even while the stream is idle; a
// pause is only acknowledged once the reader sits at a clean line boundary
// with an empty buffer.
func (c *Client) drain() {
	defer close(c.done)

	var partial strings.Builder
	for {
		// A pause is honored only with nothing carried over and nothing
		// buffered: before the ack the client has not sent a transfer
		// command, so anything still queued here is line text that must
		// be consumed first.
		if partial.Len() == 0 && c.r.Buffered() == 0 {
			select {
			case <-c.pauseCh:
				c.ackCh <- struct{}{}
				<-c.resumeCh
				continue
			default:
			}
		}

		c.conn.SetReadDeadline(time.Now().Add(pollInterval))
		line, err := c.r.ReadString('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				partial.WriteString(line)
				continue
			}
			fmt.Print("\rServer disconnected. Press Enter to exit.\n")
			return
		}

		text := strings.TrimRight(partial.String()+line, "\r\n")
		partial.Reset()
		fmt.Print("\r" + text + "\n> ")
	}
}

// pause parks the drain goroutine at a read boundary. Returns false if the
// connection died instead.
func (c *Client) pause() bool {
	select {
	case c.pauseCh <- struct{}{}:
	case <-c.done:
		return false
	}
	select {
	case <-c.ackCh:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) resume() {
	select {
	case c.resumeCh <- struct{}{}:
	case <-c.done:
	}
}

// Put uploads the named local file. The inbound drain is suspended for the
// whole exchange so the stream carries only the command line and the frame.
func (c *Client) Put(name string) error {
	if !c.pause() {
		return errDisconnected
	}
	defer c.resume()

	if err := c.Send("put " + name); err != nil {
		return err
	}

	f, err := os.Open(name)
	if err != nil {
		fmt.Printf("Client: File '%s' not found.\n", name)
		return protocol.WriteNotFound(c.conn)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return protocol.WriteNotFound(c.conn)
	}

	c.conn.SetWriteDeadline(time.Time{})
	defer c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return protocol.WriteFrame(c.conn, f, info.Size())
}

// Get downloads the named object into the download area, a namespace
// distinct from any local upload source so same-named objects cannot
// collide.
func (c *Client) Get(name string) error {
	if !c.pause() {
		return errDisconnected
	}
	defer c.resume()

	if err := c.Send("get " + name); err != nil {
		return err
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(downloadDir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// The drain goroutine is parked, so reading the frame from the shared
	// buffered reader is exclusive. The frame may take arbitrarily long.
	c.conn.SetReadDeadline(time.Time{})
	n, err := protocol.ReadFrame(c.r, f)
	f.Close()

	switch {
	case err != nil:
		os.Remove(path)
		fmt.Printf("File download failed: %v\n", err)
		return err
	case n == protocol.NotFoundSize:
		os.Remove(path)
		fmt.Printf("Server: File '%s' not found.\n", name)
		return nil
	default:
		fmt.Printf("File '%s' downloaded successfully to '%s' folder (%d bytes).\n", name, downloadDir, n)
		return nil
	}
}
