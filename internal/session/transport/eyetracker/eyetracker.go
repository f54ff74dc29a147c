// Package eyetracker implements the eye-tracker transport, spec.md §6: an
// HTTP control API on TCP port 8080 plus JSON WebSocket streaming on
// /websocket, messages {topic in {gaze,video,imu,events}, data}. Grounded
// directly on the teacher's WebSocketClient (internal/providers/kraken/
// websocket.go): same gorilla/websocket dialer-with-handshake-timeout
// connect path and read-loop-feeds-channel shape, swapped from Kraken's
// order-book/trade channels to gaze/video/imu/events topics.
package eyetracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPort is the eye-tracker's HTTP control + WS port, spec.md §6.
const DefaultPort = 8080

// Topic names one of the eye-tracker's WebSocket data streams.
type Topic string

const (
	TopicGaze   Topic = "gaze"
	TopicVideo  Topic = "video"
	TopicIMU    Topic = "imu"
	TopicEvents Topic = "events"
)

// Message is one inbound WebSocket frame's envelope, spec.md §6.
type Message struct {
	Topic Topic           `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// GazeSample is the gaze topic's data schema, spec.md §6.
type GazeSample struct {
	TimestampNs int64   `json:"timestamp_ns"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Confidence  float64 `json:"confidence"`
	Worn        bool    `json:"worn"`
	EyeStates   struct {
		Left  EyeState `json:"left"`
		Right EyeState `json:"right"`
	} `json:"eyeStates"`
}

// EyeState is one eye's per-sample calibration state, spec.md §6.
type EyeState struct {
	Center         struct{ X, Y float64 } `json:"center"`
	PupilDiameterMm float64               `json:"pupilDiameter_mm"`
}

// Transport implements session.Transport over the eye-tracker's WebSocket
// stream. Send publishes JSON control envelopes (recording/calibration
// start-stop) to the same socket; the HTTP control endpoints are exposed
// separately via the Client helper below for callers that want a direct
// request/response instead of the event-loop path.
type Transport struct {
	host string
	conn *websocket.Conn
}

// New builds an eye-tracker transport against host; Connect always dials
// DefaultPort on that host.
func New(host string) *Transport { return &Transport{host: host} }

func (t *Transport) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", t.host, DefaultPort), Path: "/websocket"}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("eye-tracker websocket connect: %w", err)
	}
	t.conn = conn
	return nil
}

func (t *Transport) Send(ctx context.Context, frame []byte) bool {
	if t.conn == nil {
		return false
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	return t.conn.WriteMessage(websocket.TextMessage, frame) == nil
}

func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("eye-tracker transport not connected")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	}
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// Client is the eye-tracker's plain HTTP control API, spec.md §6: GET
// /status, POST /recording/start|stop, POST /calibration/start|stop.
// Separate from Transport because these are one-shot requests, not part
// of the framed session data path.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds an HTTP control client against host:DefaultPort.
func NewClient(host string) *Client {
	return &Client{baseURL: fmt.Sprintf("http://%s:%d", host, DefaultPort), http: &http.Client{Timeout: 5 * time.Second}}
}

func (c *Client) Status(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) post(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) StartRecording(ctx context.Context) (*http.Response, error) { return c.post(ctx, "/recording/start") }
func (c *Client) StopRecording(ctx context.Context) (*http.Response, error)  { return c.post(ctx, "/recording/stop") }
func (c *Client) StartCalibration(ctx context.Context) (*http.Response, error) { return c.post(ctx, "/calibration/start") }
func (c *Client) StopCalibration(ctx context.Context) (*http.Response, error)  { return c.post(ctx, "/calibration/stop") }
