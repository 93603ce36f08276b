package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"convivo.im.messaging/internal/snowflake"
)

// AnnouncerConfig tunes the batch writer.
type AnnouncerConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// systemNotice is one pending system message for one conversation.
type systemNotice struct {
	MessageID      int64
	ConversationID int64
	AuthorID       int64
	Content        string
	CreatedAt      time.Time
}

// Announcer fans board announcements out as system messages. Notices are
// buffered and written with pgx.Batch when the batch fills or the flush
// ticker fires; insert events are published per conversation after the
// write lands.
type Announcer struct {
	db          *pgxpool.Pool
	idGenerator *snowflake.Node
	publisher   ChangePublisher
	config      AnnouncerConfig
	noticeChan  chan *systemNotice
	logger      *slog.Logger
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

func NewAnnouncer(db *pgxpool.Pool, idGenerator *snowflake.Node, publisher ChangePublisher, config AnnouncerConfig) *Announcer {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	return &Announcer{
		db:          db,
		idGenerator: idGenerator,
		publisher:   publisher,
		config:      config,
		noticeChan:  make(chan *systemNotice, config.BatchSize*10),
		logger:      slog.Default(),
		stopChan:    make(chan struct{}),
	}
}

// Start launches the flush worker.
func (a *Announcer) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.worker(ctx)
	a.logger.Info("Announcer started",
		"batchSize", a.config.BatchSize,
		"flushInterval", a.config.FlushInterval,
	)
}

// Stop flushes whatever is buffered and waits for the worker.
func (a *Announcer) Stop() {
	close(a.stopChan)
	a.wg.Wait()
	a.logger.Info("Announcer stopped")
}

// Enqueue queues one system message per conversation and returns the
// message ids immediately; the rows land on the next flush.
func (a *Announcer) Enqueue(conversationIDs []int64, authorID int64, content string) []int64 {
	now := time.Now().UTC()
	ids := make([]int64, 0, len(conversationIDs))

	for _, convID := range conversationIDs {
		notice := &systemNotice{
			MessageID:      a.idGenerator.Generate().Int64(),
			ConversationID: convID,
			AuthorID:       authorID,
			Content:        content,
			CreatedAt:      now,
		}
		ids = append(ids, notice.MessageID)

		select {
		case a.noticeChan <- notice:
		default:
			a.logger.Warn("Announcement queue full, waiting...")
			a.noticeChan <- notice
		}
	}

	return ids
}

// QueueSize reports the buffered notice count for monitoring.
func (a *Announcer) QueueSize() int {
	return len(a.noticeChan)
}

func (a *Announcer) worker(ctx context.Context) {
	defer a.wg.Done()

	batch := make([]*systemNotice, 0, a.config.BatchSize)
	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				a.flush(context.Background(), batch)
			}
			return
		case <-a.stopChan:
			// drain whatever arrived before the stop
			for {
				select {
				case notice := <-a.noticeChan:
					batch = append(batch, notice)
				default:
					if len(batch) > 0 {
						a.flush(context.Background(), batch)
					}
					return
				}
			}
		case notice := <-a.noticeChan:
			batch = append(batch, notice)
			if len(batch) >= a.config.BatchSize {
				a.flush(ctx, batch)
				batch = make([]*systemNotice, 0, a.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(ctx, batch)
				batch = make([]*systemNotice, 0, a.config.BatchSize)
			}
		}
	}
}

func (a *Announcer) flush(ctx context.Context, batch []*systemNotice) {
	if len(batch) == 0 {
		return
	}

	startTime := time.Now()

	pgBatch := &pgx.Batch{}
	query := `
		INSERT INTO messages (id, conversation_id, user_id, content, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
	`
	for _, n := range batch {
		pgBatch.Queue(query, n.MessageID, n.ConversationID, n.AuthorID, n.Content, n.CreatedAt)
	}

	br := a.db.SendBatch(ctx, pgBatch)

	flushed := make([]*systemNotice, 0, len(batch))
	for i := 0; i < len(batch); i++ {
		if _, err := br.Exec(); err != nil {
			a.logger.Error("Failed to save announcement in batch",
				"messageId", batch[i].MessageID,
				"conversationId", batch[i].ConversationID,
				"error", err,
			)
			continue
		}
		flushed = append(flushed, batch[i])
	}
	if err := br.Close(); err != nil {
		a.logger.Error("Failed to close batch results", "error", err)
	}

	for _, n := range flushed {
		if err := a.publisher.MessageInserted(n.ConversationID, n.MessageID, n.AuthorID); err != nil {
			a.logger.Warn("Failed to publish announcement event", "messageId", n.MessageID, "error", err)
		}
	}

	a.logger.Debug("Announcement batch flushed",
		"count", len(flushed),
		"elapsed", time.Since(startTime),
	)
}
