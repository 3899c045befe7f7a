package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/pkg/metrics"
	"github.com/xhad/mmrag/pkg/retriever"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Request and response message types.
const (
	TypeAsk      = "ask"
	TypeIngest   = "ingest"
	TypeIngestYT = "ingest-yt"
	TypeDelete   = "delete"

	TypeAnswer   = "answer"
	TypeIngested = "ingested"
	TypeDeleted  = "deleted"
	TypeError    = "error"
)

type Message struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type AskOptions struct {
	TopK        int    `json:"top_k"`
	Only        string `json:"only"`
	File        string `json:"file"`
	URLContains string `json:"url_contains"`
}

// DeleteResult is the payload of a deleted message.
type DeleteResult struct {
	DocID   string `json:"doc_id"`
	Deleted int    `json:"deleted"`
}

type Pipeline interface {
	Ingest(ctx context.Context, path string) (any, error)
	IngestYouTube(ctx context.Context, url string) (*models.YouTubeResult, error)
	Ask(ctx context.Context, question string, topK int, scope models.Scope) (*models.Answer, error)
	Delete(ctx context.Context, docID string) int
}

type Config struct {
	// AllowedOrigins lists browser origins accepted besides the server's
	// own host. Requests without an Origin header are always accepted.
	AllowedOrigins []string
	// IngestRoot, when set, confines ingest requests to this directory.
	IngestRoot string
}

type WSServer struct {
	config   Config
	pipeline Pipeline
	upgrader websocket.Upgrader
}

func NewWSServer(pipeline Pipeline, config Config) *WSServer {
	s := &WSServer{config: config, pipeline: pipeline}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *WSServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ingestPath resolves path and checks it against the configured root.
func (s *WSServer) ingestPath(path string) (string, error) {
	if s.config.IngestRoot == "" {
		return path, nil
	}
	root, err := filepath.Abs(s.config.IngestRoot)
	if err != nil {
		return "", fmt.Errorf("resolve ingest root: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the ingest root", path)
	}
	return abs, nil
}

// Handler serves /ws, /health and /metrics.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context, addr string) error {
	logger := logutil.GetLogger(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting websocket server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down websocket server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := logutil.GetLogger(r.Context()).With(zap.String("remote", r.RemoteAddr))
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("read message failed", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(r.Context(), conn, TypeError, fmt.Sprintf("invalid message: %v", err), nil)
			continue
		}
		// one message at a time per connection
		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	logger := logutil.GetLogger(ctx).With(zap.String("type", msg.Type))
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		s.sendMessage(ctx, conn, TypeError, "content is required", nil)
		return
	}
	logger.Debug("handling message", zap.String("content", content))

	switch msg.Type {
	case TypeAsk:
		var opts AskOptions
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &opts); err != nil {
				s.sendMessage(ctx, conn, TypeError, fmt.Sprintf("invalid ask options: %v", err), nil)
				return
			}
		}
		if opts.TopK == 0 {
			opts.TopK = retriever.DefaultTopK
		}
		scope, err := retriever.ScopeFromOnly(opts.Only, opts.File, opts.URLContains)
		if err != nil {
			s.sendMessage(ctx, conn, TypeError, err.Error(), nil)
			return
		}
		answer, err := s.pipeline.Ask(ctx, content, opts.TopK, scope)
		if err != nil {
			s.sendMessage(ctx, conn, TypeError, err.Error(), nil)
			return
		}
		s.sendMessage(ctx, conn, TypeAnswer, answer.Answer, answer)

	case TypeIngest:
		path, err := s.ingestPath(content)
		if err != nil {
			s.sendMessage(ctx, conn, TypeError, err.Error(), nil)
			return
		}
		report, err := s.pipeline.Ingest(ctx, path)
		if err != nil {
			s.sendMessage(ctx, conn, TypeError, err.Error(), report)
			return
		}
		s.sendMessage(ctx, conn, TypeIngested, content, report)

	case TypeIngestYT:
		res, err := s.pipeline.IngestYouTube(ctx, content)
		if err != nil {
			s.sendMessage(ctx, conn, TypeError, err.Error(), res)
			return
		}
		s.sendMessage(ctx, conn, TypeIngested, content, res)

	case TypeDelete:
		n := s.pipeline.Delete(ctx, content)
		s.sendMessage(ctx, conn, TypeDeleted, content, DeleteResult{DocID: content, Deleted: n})

	default:
		s.sendMessage(ctx, conn, TypeError, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
}

func (s *WSServer) sendMessage(ctx context.Context, conn *websocket.Conn, msgType, content string, data any) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			logutil.GetLogger(ctx).Error("marshal message data failed", zap.Error(err))
		} else {
			msg.Data = raw
		}
	}
	if err := conn.WriteJSON(msg); err != nil {
		logutil.GetLogger(ctx).Warn("send message failed", zap.Error(err))
	}
}
