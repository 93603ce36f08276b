package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convivo.im.messaging/internal/cache"
	apperrors "convivo.im.messaging/internal/errors"
	"convivo.im.messaging/internal/jwt"
	"convivo.im.messaging/internal/middleware"
	"convivo.im.messaging/internal/model"
	"convivo.im.messaging/internal/repository"
	"convivo.im.messaging/internal/service"
	"convivo.im.messaging/internal/snowflake"
)

var (
	testDBHost     = getEnv("POSTGRES_HOST", "localhost")
	testDBPort     = getEnv("POSTGRES_PORT", "5432")
	testDBUser     = getEnv("POSTGRES_USER", "postgres")
	testDBPassword = getEnv("POSTGRES_PASSWORD", "password")
	testDBName     = getEnv("POSTGRES_DB", "messaging")

	testRedisHost     = getEnv("REDIS_HOST", "localhost")
	testRedisPort     = getEnv("REDIS_PORT", "6379")
	testRedisPassword = getEnv("REDIS_PASSWORD", "")
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// capturePublisher records change events instead of pushing them to NATS.
type capturePublisher struct {
	mu       sync.Mutex
	inserted []int64
	deleted  []int64
}

func (p *capturePublisher) MessageInserted(conversationID, messageID, authorID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inserted = append(p.inserted, messageID)
	return nil
}

func (p *capturePublisher) MessageDeleted(conversationID, messageID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, messageID)
	return nil
}

type testDeps struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	jwtService  *jwt.Service
	sfNode      *snowflake.Node
	publisher   *capturePublisher
	router      *gin.Engine
}

func setupIntegrationTest(t *testing.T) *testDeps {
	t.Helper()

	ctx := context.Background()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testDBUser, testDBPassword, testDBHost, testDBPort, testDBName)

	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		t.Skipf("Skipping integration test: database ping failed: %v", err)
	}
	if _, err := db.Exec(ctx, "SELECT 1 FROM conversations LIMIT 1"); err != nil {
		db.Close()
		t.Skipf("Skipping integration test: schema not migrated: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", testRedisHost, testRedisPort),
		Password: testRedisPassword,
		DB:       0,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		t.Skipf("Skipping integration test: cannot connect to Redis: %v", err)
	}

	jwtService := jwt.NewService("test-secret-key", 24*time.Hour)

	sfNode, err := snowflake.NewNode(1)
	require.NoError(t, err)

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	listCache := cache.NewConversationCache(redisClient)
	publisher := &capturePublisher{}

	conversationService := service.NewConversationService(conversationRepo, listCache, sfNode)
	messageService := service.NewMessageService(
		messageRepo,
		conversationRepo,
		receiptRepo,
		nil, // no object storage; text-only sends never reach it
		publisher,
		listCache,
		sfNode,
	)

	conversationHandler := NewConversationHandler(conversationService)
	messageHandler := NewMessageHandler(messageService, conversationService)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtService))
	v1.GET("/conversations", conversationHandler.List)
	v1.POST("/conversations", conversationHandler.Create)
	v1.GET("/conversations/:id", conversationHandler.Get)
	v1.POST("/conversations/:id/read", conversationHandler.MarkRead)
	v1.GET("/conversations/:id/messages", messageHandler.Page)
	v1.POST("/conversations/:id/messages", messageHandler.Send)
	v1.DELETE("/messages/:id", messageHandler.Delete)

	return &testDeps{
		db:          db,
		redisClient: redisClient,
		jwtService:  jwtService,
		sfNode:      sfNode,
		publisher:   publisher,
		router:      r,
	}
}

func (d *testDeps) teardown() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
}

func (d *testDeps) cleanupConversation(ctx context.Context, conversationID int64) {
	d.db.Exec(ctx, "DELETE FROM messages WHERE conversation_id = $1", conversationID)
	d.db.Exec(ctx, "DELETE FROM conversation_participants WHERE conversation_id = $1", conversationID)
	d.db.Exec(ctx, "DELETE FROM conversations WHERE id = $1", conversationID)
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (d *testDeps) do(t *testing.T, userID int64, method, path string, body any) *apiEnvelope {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	token, err := d.jwtService.GenerateToken(userID)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)

	var envelope apiEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return &envelope
}

func TestIntegration_MessagingFlow(t *testing.T) {
	deps := setupIntegrationTest(t)
	defer deps.teardown()

	ctx := context.Background()
	userA := deps.sfNode.Generate().Int64()
	userB := deps.sfNode.Generate().Int64()
	outsider := deps.sfNode.Generate().Int64()

	// A starts a conversation with B
	envelope := deps.do(t, userA, http.MethodPost, "/api/v1/conversations", gin.H{
		"title":           "integration",
		"participant_ids": []int64{userB},
	})
	require.Equal(t, 0, envelope.Code, envelope.Message)

	var conv model.Conversation
	require.NoError(t, json.Unmarshal(envelope.Data, &conv))
	require.NotZero(t, conv.ID)
	defer deps.cleanupConversation(ctx, conv.ID)

	convPath := fmt.Sprintf("/api/v1/conversations/%d", conv.ID)

	// both sides see it with nothing unread
	envelope = deps.do(t, userB, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, 0, envelope.Code)
	var listing struct {
		List []model.ConversationSummary `json:"list"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	summary := findSummary(t, listing.List, conv.ID)
	assert.Equal(t, 0, summary.UnreadCount)
	assert.Nil(t, summary.LastMessage)

	// A sends a message
	envelope = deps.do(t, userA, http.MethodPost, convPath+"/messages", gin.H{
		"content": "hello from the other side",
	})
	require.Equal(t, 0, envelope.Code, envelope.Message)
	var sent model.Message
	require.NoError(t, json.Unmarshal(envelope.Data, &sent))
	require.NotZero(t, sent.ID)

	// B pages the thread and sees it, with A's implicit receipt attached
	envelope = deps.do(t, userB, http.MethodGet, convPath+"/messages", nil)
	require.Equal(t, 0, envelope.Code)
	var page struct {
		List []model.Message `json:"list"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &page))
	require.Len(t, page.List, 1)
	assert.Equal(t, "hello from the other side", page.List[0].Content)
	require.Len(t, page.List[0].Receipts, 1)
	assert.Equal(t, userA, page.List[0].Receipts[0].UserID)

	// the message counts as unread for B, not for A
	envelope = deps.do(t, userB, http.MethodGet, "/api/v1/conversations", nil)
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	summary = findSummary(t, listing.List, conv.ID)
	assert.Equal(t, 1, summary.UnreadCount)
	require.NotNil(t, summary.LastMessage)
	assert.Equal(t, sent.ID, summary.LastMessage.ID)

	envelope = deps.do(t, userA, http.MethodGet, "/api/v1/conversations", nil)
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	summary = findSummary(t, listing.List, conv.ID)
	assert.Equal(t, 0, summary.UnreadCount)

	// B marks the conversation read
	envelope = deps.do(t, userB, http.MethodPost, convPath+"/read", gin.H{
		"message_id": sent.ID,
	})
	require.Equal(t, 0, envelope.Code)

	envelope = deps.do(t, userB, http.MethodGet, "/api/v1/conversations", nil)
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	summary = findSummary(t, listing.List, conv.ID)
	assert.Equal(t, 0, summary.UnreadCount)

	// outsiders cannot read the thread
	envelope = deps.do(t, outsider, http.MethodGet, convPath+"/messages", nil)
	assert.Equal(t, apperrors.CodeNotParticipant, envelope.Code)

	// only the author may delete
	msgPath := fmt.Sprintf("/api/v1/messages/%d", sent.ID)
	envelope = deps.do(t, userB, http.MethodDelete, msgPath, nil)
	assert.Equal(t, apperrors.CodeNotAuthor, envelope.Code)

	envelope = deps.do(t, userA, http.MethodDelete, msgPath, nil)
	require.Equal(t, 0, envelope.Code)

	envelope = deps.do(t, userB, http.MethodGet, convPath+"/messages", nil)
	require.NoError(t, json.Unmarshal(envelope.Data, &page))
	assert.Len(t, page.List, 0)

	// both mutations reached the change feed
	deps.publisher.mu.Lock()
	defer deps.publisher.mu.Unlock()
	assert.Contains(t, deps.publisher.inserted, sent.ID)
	assert.Contains(t, deps.publisher.deleted, sent.ID)
}

func TestIntegration_ReadPointerOnlyAdvances(t *testing.T) {
	deps := setupIntegrationTest(t)
	defer deps.teardown()

	ctx := context.Background()
	userA := deps.sfNode.Generate().Int64()
	userB := deps.sfNode.Generate().Int64()

	envelope := deps.do(t, userA, http.MethodPost, "/api/v1/conversations", gin.H{
		"participant_ids": []int64{userB},
	})
	require.Equal(t, 0, envelope.Code, envelope.Message)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(envelope.Data, &conv))
	defer deps.cleanupConversation(ctx, conv.ID)

	convPath := fmt.Sprintf("/api/v1/conversations/%d", conv.ID)

	var ids []int64
	for i := 0; i < 3; i++ {
		envelope = deps.do(t, userA, http.MethodPost, convPath+"/messages", gin.H{
			"content": fmt.Sprintf("msg %d", i),
		})
		require.Equal(t, 0, envelope.Code, envelope.Message)
		var sent model.Message
		require.NoError(t, json.Unmarshal(envelope.Data, &sent))
		ids = append(ids, sent.ID)
	}

	// read up to the newest, then try to move the pointer backwards
	envelope = deps.do(t, userB, http.MethodPost, convPath+"/read", gin.H{"message_id": ids[2]})
	require.Equal(t, 0, envelope.Code)
	envelope = deps.do(t, userB, http.MethodPost, convPath+"/read", gin.H{"message_id": ids[0]})
	require.Equal(t, 0, envelope.Code)

	var pointer int64
	err := deps.db.QueryRow(ctx,
		"SELECT last_read_message_id FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2",
		conv.ID, userB).Scan(&pointer)
	require.NoError(t, err)
	assert.Equal(t, ids[2], pointer)
}

func findSummary(t *testing.T, list []model.ConversationSummary, conversationID int64) *model.ConversationSummary {
	t.Helper()
	for i := range list {
		if list[i].ID == conversationID {
			return &list[i]
		}
	}
	t.Fatalf("conversation %d not in listing", conversationID)
	return nil
}
