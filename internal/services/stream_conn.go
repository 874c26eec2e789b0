package services

import (
	"encoding/json"
	"sync"

	"emperror.dev/errors"
)

const (
	ErrSlowConsumer = errors.Sentinel("stream buffer full")
	ErrConnClosed   = errors.Sentinel("stream closed")

	DefaultStreamBuffer = 16
)

var keepAliveFrame = []byte(": keep-alive\n\n")

// Conn 广播器眼中的一条实时连接；Send 不得阻塞，广播器可能持锁调用
type Conn interface {
	Send(frame []byte) error
	Close()
}

// StreamConn 单条 HTTP 流的帧缓冲。Send 从不阻塞，
// 由 handler goroutine 读取 Frames，它是响应唯一的写入方
type StreamConn struct {
	frames    chan []byte
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewStreamConn(buffer int) *StreamConn {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	return &StreamConn{
		frames: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *StreamConn) Send(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.frames <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *StreamConn) Frames() <-chan []byte {
	return c.frames
}

// Done 任意一方关闭连接后关闭
func (c *StreamConn) Done() <-chan struct{} {
	return c.done
}

func (c *StreamConn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

// DataFrame 把 JSON 负载包装成一个 event-stream data 帧
func DataFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	return append(frame, '\n', '\n')
}

func EncodeFrame(v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to encode stream message")
	}
	return DataFrame(payload), nil
}
