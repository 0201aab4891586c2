package faceai

import (
	"AttendanceBackend/internal/entity"
	"errors"
	"fmt"
	"golang.org/x/net/context"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	opLocate = "locate"
	opEncode = "encode"

	// detectionModel selects the HOG frontal-face detector on the model service.
	detectionModel = "hog"
)

var ErrNotConnected = errors.New("not connected to face model service")

type IFaceModel interface {
	Locate(ctx context.Context, frame entity.Frame) ([]entity.FaceLocation, error)
	Encode(ctx context.Context, frame entity.Frame, locations []entity.FaceLocation) ([]entity.FeatureVector, error)
	IsConnected() bool
	Reconnect() error
	CloseConnection()
}

type modelRequest struct {
	Op        string   `json:"op"`
	Model     string   `json:"model,omitempty"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Pixels    []byte   `json:"pixels"`
	Locations [][4]int `json:"locations,omitempty"`
}

type modelResponse struct {
	Locations [][4]int    `json:"locations"`
	Encodings [][]float32 `json:"encodings"`
	Error     string      `json:"error,omitempty"`
}

type client struct {
	url          string
	log          *logrus.Logger
	conn         *websocket.Conn
	mu           sync.Mutex
	callMu       sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New returns a client for the face model service and dials it in the
// background. A failed initial dial is retried on the first call.
func New(log *logrus.Logger) IFaceModel {
	url := os.Getenv("AI_FACE_MODEL_URL")
	if url == "" {
		url = "ws://localhost:8000/api/v1/face/ws"
	}

	c := newClient(url, log)
	go c.connectInBackground()
	return c
}

func newClient(url string, log *logrus.Logger) *client {
	return &client{
		url:          url,
		log:          log,
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}
}

func (c *client) connectInBackground() {
	if err := c.Reconnect(); err != nil {
		c.log.Warnf("Initial connection to face model service failed: %v. Will retry on demand.", err)
		return
	}
	c.log.Info("Successfully connected to face model service")
}

func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *client) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.log.Debugf("Connecting to face model service at %s", c.url)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Error sending pong to face model service: %v", err)
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *client) CloseConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *client) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Ping to face model service failed, marking connection as dead: %v", err)
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *client) getConnection() (*websocket.Conn, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn, nil
	}
	if err := c.Reconnect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *client) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

// roundTrip sends one request and waits for its response. Calls are
// serialized because the service answers in order on a single socket.
func (c *client) roundTrip(ctx context.Context, req modelRequest) (*modelResponse, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	conn, err := c.getConnection()
	if err != nil {
		return nil, err
	}

	writeDeadline := time.Now().Add(c.writeTimeout)
	readDeadline := time.Now().Add(c.readTimeout)
	if deadline, ok := ctx.Deadline(); ok {
		if deadline.Before(writeDeadline) {
			writeDeadline = deadline
		}
		if deadline.Before(readDeadline) {
			readDeadline = deadline
		}
	}

	conn.SetWriteDeadline(writeDeadline)
	if err := conn.WriteJSON(req); err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("error sending %s request: %w", req.Op, err)
	}

	conn.SetReadDeadline(readDeadline)
	var resp modelResponse
	if err := conn.ReadJSON(&resp); err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("error reading %s response: %w", req.Op, err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	if resp.Error != "" {
		return nil, fmt.Errorf("face model %s failed: %s", req.Op, resp.Error)
	}
	return &resp, nil
}

func (c *client) Locate(ctx context.Context, frame entity.Frame) ([]entity.FaceLocation, error) {
	resp, err := c.roundTrip(ctx, newRequest(opLocate, frame, nil))
	if err != nil {
		return nil, err
	}

	locations := make([]entity.FaceLocation, 0, len(resp.Locations))
	for _, l := range resp.Locations {
		locations = append(locations, entity.FaceLocation{Top: l[0], Right: l[1], Bottom: l[2], Left: l[3]})
	}

	c.log.Debugf("Face model located %d faces", len(locations))
	return locations, nil
}

func (c *client) Encode(ctx context.Context, frame entity.Frame, locations []entity.FaceLocation) ([]entity.FeatureVector, error) {
	if len(locations) == 0 {
		return []entity.FeatureVector{}, nil
	}

	resp, err := c.roundTrip(ctx, newRequest(opEncode, frame, locations))
	if err != nil {
		return nil, err
	}

	vectors := make([]entity.FeatureVector, 0, len(resp.Encodings))
	for _, e := range resp.Encodings {
		if len(e) != entity.FeatureVectorSize {
			return nil, fmt.Errorf("face model returned %d-d encoding, want %d", len(e), entity.FeatureVectorSize)
		}
		vectors = append(vectors, entity.FeatureVector(e))
	}
	return vectors, nil
}

// newRequest ships the frame as raw RGB samples; the service expects RGB.
func newRequest(op string, frame entity.Frame, locations []entity.FaceLocation) modelRequest {
	rgb := frame
	if frame.Order != entity.ChannelOrderRGB {
		rgb = frame.WithOrder(entity.ChannelOrderRGB)
	}

	req := modelRequest{
		Op:     op,
		Width:  rgb.Width,
		Height: rgb.Height,
		Pixels: rgb.Pix,
	}
	if op == opLocate {
		req.Model = detectionModel
	}
	for _, l := range locations {
		req.Locations = append(req.Locations, [4]int{l.Top, l.Right, l.Bottom, l.Left})
	}
	return req
}
