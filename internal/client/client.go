// Package client speaks the relay protocol from the client side.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nfrund/sigrelay/internal/codec"
	"github.com/nfrund/sigrelay/internal/message"
)

// aLongTimeAgo is a read deadline that has already passed, used to unblock
// a pending read when a Receive context is canceled.
var aLongTimeAgo = time.Unix(1, 0)

// Client is a connection to a relay. Sends may be issued from any number of
// goroutines; Receive must only be called from one at a time.
type Client struct {
	conn net.Conn

	mu  sync.Mutex
	enc *codec.Encoder

	dec *codec.Decoder
}

// Dial connects to a relay. network is "tcp" or "unix".
func Dial(ctx context.Context, network, address string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	return New(conn), nil
}

// New wraps an established connection. The client takes ownership of conn.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		enc:  codec.NewEncoder(conn),
		dec:  codec.NewDecoder(conn, codec.WithMaxFrameSize(0)),
	}
}

// Subscribe asks the relay to deliver signals published on topic.
func (c *Client) Subscribe(topic string) error {
	return c.Send(message.NewSubscription(topic))
}

// Publish sends a signal for every subscriber of topic.
func (c *Client) Publish(topic string, v message.Value) error {
	return c.Send(message.NewSignal(topic, v))
}

// Send writes one message as a single frame.
func (c *Client) Send(m message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enc.Encode(m); err != nil {
		return fmt.Errorf("send %s: %w", m, err)
	}
	return nil
}

// Receive blocks until the relay delivers a signal, the connection ends
// (io.EOF) or ctx is done.
func (c *Client) Receive(ctx context.Context) (message.Message, error) {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(aLongTimeAgo)
		close(fired)
	})

	m, err := c.dec.Next()
	if !stop() {
		<-fired
		c.conn.SetReadDeadline(time.Time{})
		if err != nil {
			return message.Message{}, ctx.Err()
		}
	}
	return m, err
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
