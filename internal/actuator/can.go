// Package actuator forwards control commands to hardware over SocketCAN.
package actuator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// FrameLength is the payload size of a command frame: three little-endian
// int16 commands, a rolling counter and a checksum.
const FrameLength = 8

var ErrFrame = errors.New("actuator: malformed frame")

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return &SocketCANWriter{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// Codec maps a three-axis command to a CAN frame. Each axis is sent as
// round(u/Scale) saturated to int16.
type Codec struct {
	ID    uint32
	Scale float64
}

func (c Codec) Encode(u dynamo.Control, counter uint8) (can.Frame, error) {
	if len(u) != dynamo.Dim {
		return can.Frame{}, fmt.Errorf("%w: %d commands, want %d", ErrFrame, len(u), dynamo.Dim)
	}
	if c.Scale <= 0 {
		return can.Frame{}, fmt.Errorf("%w: scale %g", ErrFrame, c.Scale)
	}

	var payload [FrameLength]byte
	for i, v := range u {
		binary.LittleEndian.PutUint16(payload[2*i:], uint16(toRaw(v, c.Scale)))
	}
	payload[6] = counter
	payload[7] = checksum(payload[:7])

	var f can.Frame
	f.ID = c.ID
	f.Length = FrameLength
	copy(f.Data[:], payload[:])
	return f, nil
}

// Decode recovers the command and counter from a frame built by Encode.
func (c Codec) Decode(f can.Frame) (dynamo.Control, uint8, error) {
	if f.ID != c.ID {
		return nil, 0, fmt.Errorf("%w: id 0x%X, want 0x%X", ErrFrame, f.ID, c.ID)
	}
	if f.Length != FrameLength {
		return nil, 0, fmt.Errorf("%w: length %d", ErrFrame, f.Length)
	}
	if checksum(f.Data[:7]) != f.Data[7] {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrFrame)
	}
	u := make(dynamo.Control, dynamo.Dim)
	for i := range u {
		raw := int16(binary.LittleEndian.Uint16(f.Data[2*i:]))
		u[i] = float64(raw) * c.Scale
	}
	return u, f.Data[6], nil
}

func toRaw(v, scale float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v / scale)
	if r > math.MaxInt16 {
		return math.MaxInt16
	}
	if r < math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}

func checksum(b []byte) byte {
	var s byte
	for _, v := range b {
		s ^= v
	}
	return s
}

// Sink sends every applied command as one frame.
type Sink struct {
	mu      sync.Mutex
	w       CANWriter
	codec   Codec
	counter uint8
	sent    int
}

func NewSink(w CANWriter, codec Codec) *Sink {
	return &Sink{w: w, codec: codec}
}

func (s *Sink) Apply(ctx context.Context, u dynamo.Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.codec.Encode(u, s.counter)
	if err != nil {
		return err
	}
	if err := s.w.WriteFrame(ctx, f); err != nil {
		return fmt.Errorf("actuator: write frame: %w", err)
	}
	s.counter++
	s.sent++
	return nil
}

func (s *Sink) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *Sink) Close() error {
	return s.w.Close()
}
