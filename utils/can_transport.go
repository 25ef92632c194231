package utils

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// CANWriter sends frames onto a bus.
type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// CANReader receives frames from a bus.
type CANReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

// ErrReceiveClosed is returned once the underlying socket stops delivering frames.
var ErrReceiveClosed = errors.New("can receive closed")

type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

// NewSocketCANWriter dials iface ("vcan0", "can0", ...) for transmit.
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

// SocketCANReader owns a single receive goroutine so that cancelling a
// ReadFrame call never leaves a stray reader behind.
type SocketCANReader struct {
	conn   net.Conn
	frames chan can.Frame
	done   chan struct{}
	err    error
}

func NewSocketCANReader(ctx context.Context, iface string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}

	r := &SocketCANReader{
		conn:   conn,
		frames: make(chan can.Frame, 64),
		done:   make(chan struct{}),
	}
	go r.receive(socketcan.NewReceiver(conn))
	return r, nil
}

func (r *SocketCANReader) receive(recv *socketcan.Receiver) {
	defer close(r.done)
	for recv.Receive() {
		if recv.HasErrorFrame() {
			continue
		}
		select {
		case r.frames <- recv.Frame():
		default:
			// consumer is behind; newest frames win on the next read
		}
	}
	r.err = recv.Err()
}

// ReadFrame blocks until a frame arrives, the socket closes, or ctx ends.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f := <-r.frames:
		return f, nil
	case <-r.done:
		if r.err != nil {
			return can.Frame{}, fmt.Errorf("%w: %v", ErrReceiveClosed, r.err)
		}
		return can.Frame{}, ErrReceiveClosed
	}
}

func (r *SocketCANReader) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
