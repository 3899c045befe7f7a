package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/pkg/config"
	"github.com/xhad/mmrag/pkg/rag"
)

func newTestPipeline(t *testing.T) *rag.Pipeline {
	t.Helper()
	cfg := &config.Config{
		Embedding: config.EmbeddingConfig{Provider: "local", CacheSize: 16, CacheTTLSeconds: 60},
		Chat:      config.ChatConfig{Provider: "local"},
		Store:     config.StoreConfig{Type: "memory", Collection: "test", VectorDim: 384},
		Processor: config.ProcessorConfig{ChunkSize: 800, ChunkOverlap: 120},
		Tools:     config.ToolsConfig{TimeoutSeconds: 10},
	}
	p, err := rag.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req Message) Message {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestWebSocketAskAndDelete(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	_, err := p.AddDocument(ctx, "pets.txt", "The cat is black. The dog is brown.", models.Metadata{
		Source: models.SourceFile, Path: "pets.txt", Name: "pets.txt", Ext: ".txt", Type: models.TypeText,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewWSServer(p, Config{}).Handler())
	defer srv.Close()
	conn := dial(t, srv)

	resp := roundTrip(t, conn, Message{Type: TypeAsk, Content: "What color is the cat?"})
	require.Equal(t, TypeAnswer, resp.Type)
	assert.Equal(t, "The cat is black. The dog is brown.", resp.Content)

	var answer models.Answer
	require.NoError(t, json.Unmarshal(resp.Data, &answer))
	require.Len(t, answer.Contexts, 1)
	assert.Equal(t, "pets.txt", answer.Contexts[0].Metadata.DocID)
	assert.Equal(t, 0, answer.Contexts[0].Metadata.Chunk)

	resp = roundTrip(t, conn, Message{
		Type:    TypeAsk,
		Content: "What color is the cat?",
		Data:    json.RawMessage(`{"top_k": 3, "only": "youtube"}`),
	})
	require.Equal(t, TypeAnswer, resp.Type)
	assert.Equal(t, "No relevant context found.", resp.Content)

	resp = roundTrip(t, conn, Message{Type: TypeDelete, Content: "pets.txt"})
	require.Equal(t, TypeDeleted, resp.Type)
	var deleted DeleteResult
	require.NoError(t, json.Unmarshal(resp.Data, &deleted))
	assert.Equal(t, DeleteResult{DocID: "pets.txt", Deleted: 1}, deleted)
}

func TestWebSocketIngest(t *testing.T) {
	p := newTestPipeline(t)
	srv := httptest.NewServer(NewWSServer(p, Config{}).Handler())
	defer srv.Close()
	conn := dial(t, srv)

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("Meeting notes about the launch."), 0o644))

	resp := roundTrip(t, conn, Message{Type: TypeIngest, Content: path})
	require.Equal(t, TypeIngested, resp.Type)
	var res models.FileResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 31, res.Chars)
	require.NotNil(t, res.AddedChunks)
	assert.Equal(t, 1, *res.AddedChunks)
}

func TestWebSocketErrors(t *testing.T) {
	srv := httptest.NewServer(NewWSServer(newTestPipeline(t), Config{}).Handler())
	defer srv.Close()
	conn := dial(t, srv)

	resp := roundTrip(t, conn, Message{Type: "summarize", Content: "x"})
	assert.Equal(t, TypeError, resp.Type)
	assert.Contains(t, resp.Content, "unknown message type")

	resp = roundTrip(t, conn, Message{Type: TypeAsk, Content: "  "})
	assert.Equal(t, TypeError, resp.Type)

	resp = roundTrip(t, conn, Message{Type: TypeAsk, Content: "q", Data: json.RawMessage(`{"only":"pdf"}`)})
	assert.Equal(t, TypeError, resp.Type)
	assert.Contains(t, resp.Content, "--only")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var bad Message
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, TypeError, bad.Type)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(NewWSServer(newTestPipeline(t), Config{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mmrag_")
}

func TestWebSocketOriginCheck(t *testing.T) {
	srv := httptest.NewServer(NewWSServer(newTestPipeline(t), Config{
		AllowedOrigins: []string{"https://app.example.com/"},
	}).Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{name: "no origin header", origin: "", ok: true},
		{name: "same host", origin: srv.URL, ok: true},
		{name: "listed origin", origin: "https://app.example.com", ok: true},
		{name: "foreign origin", origin: "http://evil.example", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.ok {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestWebSocketIngestRoot(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "kept.txt")
	require.NoError(t, os.WriteFile(inside, []byte("Inside the root."), 0o644))
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("Outside the root."), 0o644))

	srv := httptest.NewServer(NewWSServer(newTestPipeline(t), Config{IngestRoot: root}).Handler())
	defer srv.Close()
	conn := dial(t, srv)

	resp := roundTrip(t, conn, Message{Type: TypeIngest, Content: outside})
	assert.Equal(t, TypeError, resp.Type)
	assert.Contains(t, resp.Content, "outside the ingest root")

	resp = roundTrip(t, conn, Message{Type: TypeIngest, Content: filepath.Join(root, "..", filepath.Base(filepath.Dir(outside)), "secret.txt")})
	assert.Equal(t, TypeError, resp.Type)

	resp = roundTrip(t, conn, Message{Type: TypeIngest, Content: inside})
	assert.Equal(t, TypeIngested, resp.Type)
}
