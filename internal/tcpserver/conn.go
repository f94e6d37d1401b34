package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/taoyao-code/daly-bms/internal/transport"
)

// ErrConnClosed 网关连接已关闭
var ErrConnClosed = errors.New("bridge connection closed")

// Conn 单个网关连接，实现 session.Writer。
// 下行写同步完成，调用方能拿到写失败；连续失败由服务端熔断器兜住。
type Conn struct {
	c            net.Conn
	id           uint64
	writeTimeout time.Duration
	breaker      *transport.Breaker

	wmu       sync.Mutex
	closeOnce sync.Once
	doneC     chan struct{}
}

func newConn(c net.Conn, id uint64, writeTimeout time.Duration, breaker *transport.Breaker) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Conn{
		c:            c,
		id:           id,
		writeTimeout: writeTimeout,
		breaker:      breaker,
		doneC:        make(chan struct{}),
	}
}

// ID 返回连接ID（单进程唯一递增）
func (cc *Conn) ID() uint64 { return cc.id }

// RemoteAddr 返回远端地址
func (cc *Conn) RemoteAddr() net.Addr { return cc.c.RemoteAddr() }

// Write 写入一帧；ctx 的截止时间早于写超时时以 ctx 为准
func (cc *Conn) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-cc.doneC:
		return ErrConnClosed
	default:
	}

	deadline := time.Now().Add(cc.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return cc.breaker.Call(func() error {
		cc.wmu.Lock()
		defer cc.wmu.Unlock()
		_ = cc.c.SetWriteDeadline(deadline)
		n, err := cc.c.Write(frame)
		if err != nil {
			return fmt.Errorf("bridge write: %w", err)
		}
		if n != len(frame) {
			return fmt.Errorf("short write: %d of %d bytes", n, len(frame))
		}
		return nil
	})
}

// read 带空闲超时的读取，供 transport.Pump 使用
func (cc *Conn) read(idle time.Duration) *idleReader {
	return &idleReader{c: cc.c, idle: idle}
}

// Close 关闭连接，可重复调用
func (cc *Conn) Close() error {
	var err error
	cc.closeOnce.Do(func() {
		close(cc.doneC)
		err = cc.c.Close()
	})
	return err
}

// Done 返回连接关闭通知通道
func (cc *Conn) Done() <-chan struct{} { return cc.doneC }

// idleReader 每次读之前刷新读超时，超时即视为网关失联
type idleReader struct {
	c    net.Conn
	idle time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	if r.idle > 0 {
		_ = r.c.SetReadDeadline(time.Now().Add(r.idle))
	}
	return r.c.Read(p)
}
