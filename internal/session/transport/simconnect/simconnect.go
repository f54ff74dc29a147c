// Package simconnect implements the MSFS transport, spec.md §6: a binary
// framed protocol over TCP (localhost:500 default) with a 16-byte
// {size,version,id,index} little-endian header. Grounded on the same
// connect/send shape as beamng.Transport, framed instead with
// session.LengthPrefixedCodec.
package simconnect

import (
	"bufio"
	"context"
	"net"

	"github.com/synopticon/telemetry-fusion/internal/session"
)

// DefaultAddr is the default local SimConnect TCP endpoint, spec.md §6.
const DefaultAddr = "127.0.0.1:500"

// Transport implements session.Transport over SimConnect's length-prefixed
// binary framing.
type Transport struct {
	addr   string
	codec  *session.LengthPrefixedCodec
	conn   net.Conn
	reader *bufio.Reader
}

// New builds a SimConnect transport dialing addr on Connect. An empty addr
// uses DefaultAddr.
func New(addr string) *Transport {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Transport{addr: addr, codec: &session.LengthPrefixedCodec{Version: 1}}
}

func (t *Transport) Connect(ctx context.Context) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return err
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	return nil
}

func (t *Transport) Send(ctx context.Context, frame []byte) bool {
	if t.conn == nil {
		return false
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	_, err := t.conn.Write(t.codec.Encode(frame))
	return err == nil
}

func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	}
	return t.codec.Decode(t.reader)
}

func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
