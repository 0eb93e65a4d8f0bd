package callback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
)

// Retry defaults for connection establishment.
const (
	dialMaxRetries  = 5
	dialBaseBackoff = 100 * time.Millisecond
)

var (
	// ErrRemote wraps an error reported by the remote receiver.
	ErrRemote = errors.New("remote receiver failed")

	// ErrSequence is returned when a response does not answer the request
	// that was just sent.
	ErrSequence = errors.New("callback response out of sequence")

	// ErrClosed is returned by calls on a closed Client.
	ErrClosed = errors.New("callback client closed")
)

// Compile-time interface satisfaction check.
var _ ptscontrol.Receiver = (*Client)(nil)

// Client forwards receiver calls to a remote Server. Calls are serialised;
// one request is in flight at a time.
type Client struct {
	mu          sync.Mutex
	conn        net.Conn
	reader      io.Reader
	seq         uint64
	callTimeout time.Duration
	closed      bool
}

// Dial connects to the callback server at addr, retrying with exponential
// backoff on connection failure.
func Dial(ctx context.Context, addr string) (*Client, error) {
	a, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}

	var lastErr error
	backoff := dialBaseBackoff

	for attempt := range dialMaxRetries {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial callback: %w", ctx.Err())
		default:
		}

		conn, err := dialAddr(ctx, a)
		if err != nil {
			lastErr = err
			if attempt < dialMaxRetries-1 {
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil, fmt.Errorf("dial callback: %w", ctx.Err())
				}
				backoff *= 2
			}
			continue
		}

		return NewClient(conn), nil
	}

	return nil, fmt.Errorf("dial callback after %d attempts: %w", dialMaxRetries, lastErr)
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, reader: bufio.NewReader(conn)}
}

// SetCallTimeout bounds each round trip. Zero means no deadline.
func (c *Client) SetCallTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callTimeout = d
}

// Log implements ptscontrol.Receiver.
func (c *Client) Log(logType pts.LogType, logTypeLabel, logTime, message string) error {
	_, err := c.call(Request{
		Method: MethodLog,
		Log: &LogParams{
			Type:    int(logType),
			Label:   logTypeLabel,
			Time:    logTime,
			Message: message,
		},
	})
	return err
}

// OnImplicitSend implements ptscontrol.Receiver.
func (c *Client) OnImplicitSend(req ptscontrol.ImplicitSendRequest) (string, error) {
	resp, err := c.call(Request{Method: MethodImplicitSend, ImplicitSend: &req})
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

func (c *Client) call(req Request) (resp Response, err error) {
	start := time.Now()
	defer func() { observeCall("client", req.Method, start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Response{}, ErrClosed
	}

	c.seq++
	req.Seq = c.seq

	if c.callTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.callTimeout)); err != nil {
			return Response{}, fmt.Errorf("set deadline: %w", err)
		}
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := WriteMessage(c.conn, &req); err != nil {
		return Response{}, fmt.Errorf("send %s: %w", req.Method, err)
	}
	if err := ReadMessage(c.reader, &resp); err != nil {
		return Response{}, fmt.Errorf("receive %s: %w", req.Method, err)
	}

	if resp.Seq != req.Seq {
		return Response{}, fmt.Errorf("%w: sent %d, got %d", ErrSequence, req.Seq, resp.Seq)
	}
	if resp.Error != "" {
		return Response{}, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return resp, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
