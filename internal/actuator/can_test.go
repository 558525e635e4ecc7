package actuator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.einride.tech/can"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

var _ mpc.ControlSink = (*Sink)(nil)

type fakeWriter struct {
	frames []can.Frame
	err    error
	closed bool
}

func (f *fakeWriter) WriteFrame(_ context.Context, frame can.Frame) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestCodecRoundTrip(t *testing.T) {
	assert := assert.New(t)
	codec := Codec{ID: 0x120, Scale: 0.01}

	f, err := codec.Encode(dynamo.Control{15, -7.25, 0.004}, 9)
	assert.NoError(err)
	assert.Equal(uint32(0x120), f.ID)
	assert.Equal(uint8(FrameLength), f.Length)

	u, counter, err := codec.Decode(f)
	assert.NoError(err)
	assert.Equal(uint8(9), counter)
	assert.InDelta(15, u[0], 1e-9)
	assert.InDelta(-7.25, u[1], 1e-9)
	assert.InDelta(0, u[2], 1e-9)
}

func TestCodecSaturates(t *testing.T) {
	assert := assert.New(t)
	codec := Codec{ID: 1, Scale: 0.001}

	f, err := codec.Encode(dynamo.Control{1000, -1000, 0}, 0)
	assert.NoError(err)
	u, _, err := codec.Decode(f)
	assert.NoError(err)
	assert.InDelta(32.767, u[0], 1e-9)
	assert.InDelta(-32.768, u[1], 1e-9)
}

func TestCodecRejects(t *testing.T) {
	assert := assert.New(t)
	codec := Codec{ID: 0x120, Scale: 0.01}

	_, err := codec.Encode(dynamo.Control{1, 2}, 0)
	assert.ErrorIs(err, ErrFrame)
	_, err = Codec{ID: 1}.Encode(dynamo.Control{1, 2, 3}, 0)
	assert.ErrorIs(err, ErrFrame)

	f, _ := codec.Encode(dynamo.Control{1, 2, 3}, 0)
	f.Data[0] ^= 0xFF
	_, _, err = codec.Decode(f)
	assert.ErrorIs(err, ErrFrame)

	f, _ = codec.Encode(dynamo.Control{1, 2, 3}, 0)
	_, _, err = Codec{ID: 0x121, Scale: 0.01}.Decode(f)
	assert.ErrorIs(err, ErrFrame)
}

func TestSinkCountsFrames(t *testing.T) {
	assert := assert.New(t)
	w := &fakeWriter{}
	sink := NewSink(w, Codec{ID: 0x120, Scale: 0.01})

	for i := 0; i < 3; i++ {
		assert.NoError(sink.Apply(context.Background(), dynamo.Control{float64(i), 0, 0}))
	}
	assert.Equal(3, sink.Sent())
	assert.Len(w.frames, 3)
	assert.Equal(uint8(2), w.frames[2].Data[6])

	assert.NoError(sink.Close())
	assert.True(w.closed)
}

func TestSinkWriteError(t *testing.T) {
	assert := assert.New(t)
	boom := errors.New("bus off")
	sink := NewSink(&fakeWriter{err: boom}, Codec{ID: 0x120, Scale: 0.01})

	err := sink.Apply(context.Background(), dynamo.Control{1, 1, 1})
	assert.ErrorIs(err, boom)
	assert.Equal(0, sink.Sent())
}
