// Package worker talks to external inference processes over stdio using
// length prefixed msgpack messages
package worker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxMessageSize is the largest message accepted from a worker
const MaxMessageSize = 256 << 20

var (
	// ErrMessageTooLarge is returned when a message length prefix exceeds
	// MaxMessageSize
	ErrMessageTooLarge = errors.New("message too large")
	// ErrSeqMismatch is returned when a response does not answer the request
	// that was sent
	ErrSeqMismatch = errors.New("response sequence mismatch")
)

// RemoteError is an error reported by the worker process
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string {
	return "worker: " + e.Msg
}

// WriteMessage encodes v as msgpack and writes it with a 4 byte big endian
// length prefix
func WriteMessage(w io.Writer, v interface{}) error {

	data, err := msgpack.Marshal(v)

	if err != nil {
		return fmt.Errorf("failed to marshal msgpack message: %w", err)
	}

	if len(data) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// ReadMessage reads one length prefixed msgpack message into v
func ReadMessage(r io.Reader, v interface{}) error {

	var lengthBuf [4]byte

	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return fmt.Errorf("failed to read message length: %w", err)
	}

	n := binary.BigEndian.Uint32(lengthBuf[:])

	if n > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}

	data := make([]byte, n)

	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("failed to read message body: %w", err)
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal msgpack message: %w", err)
	}

	return nil
}

// request is implemented by messages sent to a worker
type request interface {
	setSeq(seq uint64)
}

// response is implemented by messages received from a worker
type response interface {
	seq() uint64
	remoteErr() string
}

// Client performs synchronous request and response exchanges, exactly one
// response is read for every request written
type Client struct {
	w    io.Writer
	r    io.Reader
	mu   sync.Mutex
	last uint64
}

// NewClient returns a Client writing requests to w and reading responses
// from r
func NewClient(w io.Writer, r io.Reader) *Client {
	return &Client{w: w, r: r}
}

// call sends req and decodes the reply into resp
func (c *Client) call(req request, resp response) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	c.last++
	req.setSeq(c.last)

	if err := WriteMessage(c.w, req); err != nil {
		return err
	}

	if err := ReadMessage(c.r, resp); err != nil {
		return err
	}

	if got := resp.seq(); got != c.last {
		return fmt.Errorf("%w: sent %d, received %d", ErrSeqMismatch, c.last, got)
	}

	if msg := resp.remoteErr(); msg != "" {
		return &RemoteError{Msg: msg}
	}

	return nil
}
