package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"convivo.im.messaging/internal/realtime"
	"convivo.im.messaging/pkg/wire"
)

// IntentHandler dispatches decoded mutation intents.
type IntentHandler interface {
	HandleSendMessage(ctx context.Context, intent *wire.SendMessage)
	HandleMarkConversationRead(ctx context.Context, intent *wire.MarkConversationRead)
	HandleMarkMessageRead(ctx context.Context, intent *wire.MarkMessageRead)
	HandleDeleteMessage(ctx context.Context, intent *wire.DeleteMessage)
	HandleAnnouncement(ctx context.Context, intent *wire.Announcement)
}

// SubscriberConfig sizes the worker pool.
type SubscriberConfig struct {
	WorkerCount int
	BufferSize  int
}

// IntentSubscriber consumes mutation intents from the shared subject via a
// queue group, fanning decode+dispatch across a worker pool.
type IntentSubscriber struct {
	nc           *nats.Conn
	handler      IntentHandler
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	msgChan      chan *nats.Msg
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
}

func NewIntentSubscriber(nc *nats.Conn, handler IntentHandler, config SubscriberConfig) *IntentSubscriber {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 32
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 4096
	}

	return &IntentSubscriber{
		nc:      nc,
		handler: handler,
		logger:  slog.Default(),
		config:  config,
	}
}

// Start subscribes and launches the workers.
func (s *IntentSubscriber) Start(ctx context.Context) error {
	s.msgChan = make(chan *nats.Msg, s.config.BufferSize)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	sub, err := s.nc.QueueSubscribe(realtime.SubjectIntents, realtime.QueueGroup, func(msg *nats.Msg) {
		select {
		case s.msgChan <- msg:
		default:
			s.logger.Warn("Intent buffer full, dropping intent", "bufferSize", s.config.BufferSize)
		}
	})
	if err != nil {
		cancel()
		return err
	}

	s.subscription = sub
	s.logger.Info("Intent subscriber started",
		"subject", realtime.SubjectIntents,
		"workerCount", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

func (s *IntentSubscriber) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.msgChan:
			if !ok {
				return
			}
			s.handleIntent(ctx, msg.Data)
		}
	}
}

func (s *IntentSubscriber) handleIntent(ctx context.Context, data []byte) {
	var intent wire.Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		s.logger.Error("Failed to unmarshal intent", "error", err)
		return
	}

	switch {
	case intent.SendMessage != nil:
		s.handler.HandleSendMessage(ctx, intent.SendMessage)
	case intent.MarkConversationRead != nil:
		s.handler.HandleMarkConversationRead(ctx, intent.MarkConversationRead)
	case intent.MarkMessageRead != nil:
		s.handler.HandleMarkMessageRead(ctx, intent.MarkMessageRead)
	case intent.DeleteMessage != nil:
		s.handler.HandleDeleteMessage(ctx, intent.DeleteMessage)
	case intent.Announcement != nil:
		s.handler.HandleAnnouncement(ctx, intent.Announcement)
	default:
		s.logger.Warn("Intent carries no known payload")
	}
}

// Stop unsubscribes, drains the workers and waits for them.
func (s *IntentSubscriber) Stop() error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "error", err)
		}
	}

	if s.msgChan != nil {
		close(s.msgChan)
	}

	s.wg.Wait()

	s.logger.Info("Intent subscriber stopped")
	return nil
}

// BufferUsage reports channel occupancy for monitoring.
func (s *IntentSubscriber) BufferUsage() (current int, capacity int) {
	if s.msgChan == nil {
		return 0, 0
	}
	return len(s.msgChan), cap(s.msgChan)
}
