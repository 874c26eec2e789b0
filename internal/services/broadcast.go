package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"livepoll/internal/logger"
	"livepoll/internal/metrics"
	"livepoll/internal/models"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultKeepAlive = 30 * time.Second

// Broadcaster 按会话登记实时连接，并把变更事件分发给它们
type Broadcaster struct {
	subscriber ChangeSubscriber
	keepAlive  time.Duration
	now        func() time.Time

	mu    sync.Mutex
	conns map[string]map[Conn]struct{}

	initMu      sync.Mutex
	initialized bool

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

func NewBroadcaster(subscriber ChangeSubscriber, keepAlive time.Duration) *Broadcaster {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &Broadcaster{
		subscriber: subscriber,
		keepAlive:  keepAlive,
		now:        time.Now,
		conns:      make(map[string]map[Conn]struct{}),
		stop:       make(chan struct{}),
	}
}

// Init 订阅变更事件，成功后重复调用无效，失败后下次调用重试
func (b *Broadcaster) Init() error {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	if b.initialized {
		return nil
	}
	if err := b.subscriber.Subscribe(b.OnChangeEvent); err != nil {
		return errors.WrapIf(err, "failed to initialise broadcaster")
	}
	b.initialized = true
	logger.For("broadcast").Info("Subscribed to change events")
	return nil
}

// Start 运行心跳循环，直到 ctx 结束或调用 Close
func (b *Broadcaster) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			ticker := time.NewTicker(b.keepAlive)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-b.stop:
					return
				case <-ticker.C:
					b.SendKeepAlive()
				}
			}
		}()
	})
}

// Close 停止心跳循环并关闭所有连接
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() {
		close(b.stop)
		b.wg.Wait()

		b.mu.Lock()
		all := b.conns
		b.conns = make(map[string]map[Conn]struct{})
		metrics.StreamConnections.Set(0)
		b.mu.Unlock()

		for _, set := range all {
			for conn := range set {
				conn.Close()
			}
		}
	})
}

// AddConnection 先发送 connected 消息再登记连接，均在持锁期间完成，
// 保证任何变更事件都排在 connected 之后
func (b *Broadcaster) AddConnection(sessionID string, conn Conn) {
	frame, err := EncodeFrame(models.StreamMessage{
		Type:      models.EventConnected,
		SessionID: sessionID,
		Timestamp: b.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		conn.Close()
		return
	}

	b.mu.Lock()
	if err := conn.Send(frame); err != nil {
		b.mu.Unlock()
		conn.Close()
		logger.For("broadcast").WithError(err).WithField("session", sessionID).Debug("Stream connection failed greeting")
		return
	}
	set, ok := b.conns[sessionID]
	if !ok {
		set = make(map[Conn]struct{})
		b.conns[sessionID] = set
	}
	if _, exists := set[conn]; !exists {
		set[conn] = struct{}{}
		metrics.StreamConnections.Inc()
	}
	count := len(set)
	b.mu.Unlock()

	logger.For("broadcast").WithFields(log.Fields{
		"session":     sessionID,
		"connections": count,
	}).Debug("Stream connection added")
}

// RemoveConnection 注销并关闭连接，未登记的连接忽略
func (b *Broadcaster) RemoveConnection(sessionID string, conn Conn) {
	b.mu.Lock()
	removed := b.removeLocked(sessionID, conn)
	b.mu.Unlock()

	if removed {
		conn.Close()
		logger.For("broadcast").WithField("session", sessionID).Debug("Stream connection removed")
	}
}

func (b *Broadcaster) removeLocked(sessionID string, conn Conn) bool {
	set, ok := b.conns[sessionID]
	if !ok {
		return false
	}
	if _, ok := set[conn]; !ok {
		return false
	}
	delete(set, conn)
	metrics.StreamConnections.Dec()
	if len(set) == 0 {
		delete(b.conns, sessionID)
	}
	return true
}

// OnChangeEvent 把负载原样转发给该会话的所有连接
func (b *Broadcaster) OnChangeEvent(sessionID string, payload []byte) {
	b.broadcast(sessionID, DataFrame(payload))
}

func (b *Broadcaster) broadcast(sessionID string, frame []byte) {
	targets := b.snapshot(sessionID)
	if len(targets) == 0 {
		return
	}

	var dead []Conn
	for _, conn := range targets {
		if err := conn.Send(frame); err != nil {
			logger.For("broadcast").WithError(err).WithField("session", sessionID).Debug("Dropping stream connection")
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		b.RemoveConnection(sessionID, conn)
	}
}

func (b *Broadcaster) snapshot(sessionID string) []Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.conns[sessionID]
	out := make([]Conn, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

// SendKeepAlive 向所有连接发送注释帧，发送失败的连接被移除
func (b *Broadcaster) SendKeepAlive() {
	b.mu.Lock()
	targets := make(map[string][]Conn, len(b.conns))
	for sessionID, set := range b.conns {
		for conn := range set {
			targets[sessionID] = append(targets[sessionID], conn)
		}
	}
	b.mu.Unlock()

	for sessionID, conns := range targets {
		for _, conn := range conns {
			if err := conn.Send(keepAliveFrame); err != nil {
				b.RemoveConnection(sessionID, conn)
			}
		}
	}
}

func (b *Broadcaster) Stats() models.ConnectionStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := models.ConnectionStats{
		TotalSessions: len(b.conns),
		Sessions:      make([]models.SessionConnections, 0, len(b.conns)),
	}
	for sessionID, set := range b.conns {
		stats.TotalConnections += len(set)
		stats.Sessions = append(stats.Sessions, models.SessionConnections{
			SessionID:   sessionID,
			Connections: len(set),
		})
	}
	sort.Slice(stats.Sessions, func(i, j int) bool {
		return stats.Sessions[i].SessionID < stats.Sessions[j].SessionID
	})
	return stats
}
