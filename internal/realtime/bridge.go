package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"convivo.im.messaging/internal/model"
	"convivo.im.messaging/pkg/wire"
)

// ConnState is the tri-state connection indicator surfaced to the UI.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MessageFetcher re-fetches a single message by id. The bridge never
// trusts an event payload to carry the row.
type MessageFetcher interface {
	FetchByID(ctx context.Context, messageID int64) (*model.Message, error)
}

// ReceiptWriter upserts a read receipt on behalf of the viewer.
type ReceiptWriter interface {
	MarkRead(ctx context.Context, messageID, userID int64) error
}

// Update is one change applied to the held thread.
type Update struct {
	Kind    string
	Message model.Message
}

const updateBuffer = 64

// Bridge keeps a Thread eventually consistent with server-side inserts for
// one conversation. Open subscribes to the conversation's change feed;
// Close is deterministic teardown and is safe to call more than once.
// Having the thread open marks incoming remote messages as read.
type Bridge struct {
	conversationID int64
	viewerID       int64

	thread   *Thread
	fetcher  MessageFetcher
	receipts ReceiptWriter
	logger   *slog.Logger

	state atomic.Int32

	sub     *nats.Subscription
	events  chan *nats.Msg
	updates chan Update

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewBridge(conversationID, viewerID int64, fetcher MessageFetcher, receipts ReceiptWriter) *Bridge {
	b := &Bridge{
		conversationID: conversationID,
		viewerID:       viewerID,
		thread:         NewThread(),
		fetcher:        fetcher,
		receipts:       receipts,
		logger:         slog.Default(),
		events:         make(chan *nats.Msg, updateBuffer),
		updates:        make(chan Update, updateBuffer),
	}
	b.state.Store(int32(StateConnecting))
	return b
}

// Open subscribes to the conversation's change feed and starts the
// consumer loop. Call Close when the conversation view goes away.
func (b *Bridge) Open(ctx context.Context, nc *nats.Conn) error {
	sub, err := nc.Subscribe(ConversationSubject(b.conversationID), func(msg *nats.Msg) {
		select {
		case b.events <- msg:
		default:
			// merge-by-id makes a dropped event recoverable on the
			// next page load
			b.logger.Warn("Event buffer full, dropping event", "conversationId", b.conversationID)
		}
	})
	if err != nil {
		b.state.Store(int32(StateDisconnected))
		return err
	}

	b.sub = sub
	b.state.Store(int32(StateConnected))

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.loop(loopCtx)

	b.logger.Debug("Bridge opened", "conversationId", b.conversationID, "viewerId", b.viewerID)
	return nil
}

func (b *Bridge) loop(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-b.events:
			if !ok {
				return
			}
			b.handleEvent(ctx, msg.Data)
		}
	}
}

func (b *Bridge) handleEvent(ctx context.Context, data []byte) {
	var event wire.MessageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Error("Failed to unmarshal event", "error", err)
		return
	}
	if event.ConversationID != b.conversationID {
		return
	}

	switch event.Kind {
	case wire.EventMessageInserted:
		b.handleInsert(ctx, &event)
	case wire.EventMessageDeleted:
		if b.thread.Remove(event.MessageID) {
			b.emit(Update{Kind: wire.EventMessageDeleted, Message: model.Message{ID: event.MessageID}})
		}
	}
}

func (b *Bridge) handleInsert(ctx context.Context, event *wire.MessageEvent) {
	msg, err := b.fetcher.FetchByID(ctx, event.MessageID)
	if err != nil {
		b.logger.Error("Failed to fetch message for event", "messageId", event.MessageID, "error", err)
		return
	}
	if msg == nil {
		// already deleted between event and fetch
		return
	}

	if !b.thread.Merge(*msg) {
		return
	}

	// seen-while-viewing: anything arriving in an open thread from
	// another author is acknowledged immediately
	if msg.UserID != b.viewerID {
		if err := b.receipts.MarkRead(ctx, msg.ID, b.viewerID); err != nil {
			b.logger.Error("Failed to write receipt", "messageId", msg.ID, "error", err)
		}
	}

	b.emit(Update{Kind: wire.EventMessageInserted, Message: *msg})
}

func (b *Bridge) emit(update Update) {
	select {
	case b.updates <- update:
	default:
		b.logger.Warn("Update channel full, dropping update", "conversationId", b.conversationID)
	}
}

// AppendLocal installs a message the viewer just sent, skipping the
// re-fetch path. The later echo from the change feed deduplicates against
// it by id.
func (b *Bridge) AppendLocal(msg model.Message) bool {
	return b.thread.Merge(msg)
}

// Thread exposes the held list.
func (b *Bridge) Thread() *Thread {
	return b.thread
}

// Updates yields applied changes for the UI to render.
func (b *Bridge) Updates() <-chan Update {
	return b.updates
}

// State returns the current connection state.
func (b *Bridge) State() ConnState {
	return ConnState(b.state.Load())
}

// Close unsubscribes and stops the consumer loop. Idempotent.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.state.Store(int32(StateDisconnected))
		if b.sub != nil {
			if err := b.sub.Unsubscribe(); err != nil {
				b.logger.Error("Failed to unsubscribe", "error", err)
			}
		}
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		close(b.updates)
		b.logger.Debug("Bridge closed", "conversationId", b.conversationID)
	})
}
