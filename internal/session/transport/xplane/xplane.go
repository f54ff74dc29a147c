// Package xplane implements the X-Plane transport, spec.md §6: UDP on
// port 49000 with data-ref pulls at <=60 Hz. UDP has no connection
// handshake or framing of its own, so Connect just opens the socket and
// Receive/Send operate on whole datagrams (no Codec needed).
package xplane

import (
	"context"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAddr is the default X-Plane UDP data-out endpoint, spec.md §6.
const DefaultAddr = "127.0.0.1:49000"

// DefaultMaxRateHz is the data-ref pull ceiling, spec.md §6 ("<=60 Hz").
const DefaultMaxRateHz = 60

// Transport implements session.Transport over a UDP socket, rate-limited
// to DefaultMaxRateHz pulls/sec.
type Transport struct {
	addr    string
	conn    *net.UDPConn
	limiter *rate.Limiter
}

// New builds an X-Plane transport that dials addr, the simulator's UDP
// endpoint, on Connect. An empty addr uses DefaultAddr.
func New(addr string) *Transport {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Transport{addr: addr, limiter: rate.NewLimiter(rate.Limit(DefaultMaxRateHz), 1)}
}

func (t *Transport) Connect(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *Transport) Send(ctx context.Context, frame []byte) bool {
	if t.conn == nil || t.limiter.Wait(ctx) != nil {
		return false
	}
	_, err := t.conn.Write(frame)
	return err == nil
}

func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, 65507) // max UDP datagram size
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
