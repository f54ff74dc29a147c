// Package beamng implements the BeamNG transport, spec.md §6: newline-
// delimited JSON over TCP. Grounded on the teacher's WebSocketClient
// connect/send shape (internal/providers/kraken/websocket.go), adapted
// from a WS dialer to a plain net.Dial TCP client framed by
// session.LineJSONCodec.
package beamng

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/synopticon/telemetry-fusion/internal/session"
)

// Transport implements session.Transport over a newline-delimited-JSON TCP
// connection to a BeamNG research interface.
type Transport struct {
	addr   string
	codec  session.LineJSONCodec
	conn   net.Conn
	reader *bufio.Reader
}

// New builds a BeamNG transport dialing addr (host:port) on Connect.
func New(addr string) *Transport {
	return &Transport{addr: addr}
}

func (t *Transport) Connect(ctx context.Context) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return err
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)

	hello, _ := json.Marshal(map[string]any{"type": "Hello", "data": map[string]any{"protocolVersion": 1}})
	_, err = t.conn.Write(t.codec.Encode(hello))
	return err
}

func (t *Transport) Send(ctx context.Context, frame []byte) bool {
	if t.conn == nil {
		return false
	}
	deadline, ok := ctx.Deadline()
	if ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	_, err := t.conn.Write(t.codec.Encode(frame))
	return err == nil
}

func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}
	return t.codec.Decode(t.reader)
}

func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
