// Package pubsub 在 worker 与持有实时连接的各进程之间传递变更事件
package pubsub

import (
	"encoding/json"
	"sync"

	"livepoll/internal/logger"
	"livepoll/internal/models"
	"livepoll/internal/rdb"

	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
)

type Publisher struct {
	client radix.Client
}

func NewPublisher(client radix.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish 向 results:<sessionId> 发布事件，尽力投递
func (p *Publisher) Publish(evt models.ChangeEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return errors.WrapIf(err, "failed to encode change event")
	}
	if err := p.client.Do(radix.Cmd(nil, "PUBLISH", rdb.ResultsChannel(evt.SessionID), string(data))); err != nil {
		return errors.WrapIff(err, "failed to publish change event for session %s", evt.SessionID)
	}
	return nil
}

// Handler 接收每个变更事件的原始负载
type Handler = func(sessionID string, payload []byte)

// Subscriber 模式订阅 results:* 并分发给 Handler
type Subscriber struct {
	conn  radix.PubSubConn
	msgCh chan radix.PubSubMessage
	done  chan struct{}
	wg    sync.WaitGroup

	mu         sync.Mutex
	subscribed bool
	closeOnce  sync.Once
}

func NewSubscriber(conn radix.PubSubConn) *Subscriber {
	return &Subscriber{
		conn:  conn,
		msgCh: make(chan radix.PubSubMessage, 256),
		done:  make(chan struct{}),
	}
}

// Subscribe 开始投递，成功后重复调用无效
func (s *Subscriber) Subscribe(handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		return nil
	}

	if err := s.conn.PSubscribe(s.msgCh, rdb.ResultsPattern); err != nil {
		return errors.WrapIf(err, "failed to subscribe to change events")
	}
	s.subscribed = true

	s.wg.Add(1)
	go s.dispatch(handler)
	return nil
}

func (s *Subscriber) dispatch(handler Handler) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.msgCh:
			sessionID, ok := rdb.SessionFromChannel(msg.Channel)
			if !ok {
				logger.For("pubsub").WithField("channel", msg.Channel).Warn("Ignoring message on unexpected channel")
				continue
			}
			handler(sessionID, msg.Message)
		}
	}
}

func (s *Subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
		close(s.done)
		s.wg.Wait()
	})
	return err
}
