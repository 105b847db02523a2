package emails_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Samy8769/mail-classifier-3/internal/emails"
	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
)

type mockSystem struct {
	ingestFn        func(ctx context.Context, batch []emails.IngestCommand) ([]emails.Email, error)
	findFn          func(ctx context.Context, id uuid.UUID) (*emails.Email, error)
	listFn          func(ctx context.Context, page pagination.PageRequest, filters emails.Filters) (*pagination.PageResult[emails.Email], error)
	conversationFn  func(ctx context.Context, conversationID string) (*emails.Conversation, error)
	conversationsFn func(ctx context.Context) ([]string, error)
}

func (m *mockSystem) Handler() *emails.Handler {
	return newTestHandler(m)
}

func (m *mockSystem) Ingest(ctx context.Context, batch []emails.IngestCommand) ([]emails.Email, error) {
	return m.ingestFn(ctx, batch)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*emails.Email, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters emails.Filters) (*pagination.PageResult[emails.Email], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Conversation(ctx context.Context, conversationID string) (*emails.Conversation, error) {
	return m.conversationFn(ctx, conversationID)
}

func (m *mockSystem) Conversations(ctx context.Context) ([]string, error) {
	return m.conversationsFn(ctx)
}

func newTestHandler(sys *mockSystem) *emails.Handler {
	return emails.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *emails.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func TestHandlerIngest(t *testing.T) {
	var captured []emails.IngestCommand
	sys := &mockSystem{
		ingestFn: func(_ context.Context, batch []emails.IngestCommand) ([]emails.Email, error) {
			captured = batch
			stored := make([]emails.Email, len(batch))
			for i, cmd := range batch {
				stored[i] = emails.Email{
					ID:             uuid.New(),
					ConversationID: cmd.ConversationID,
					Subject:        cmd.Subject,
					Sender:         cmd.Sender,
					Recipients:     cmd.Recipients,
					Body:           cmd.Body,
					ReceivedAt:     cmd.ReceivedAt,
					Topic:          cmd.Topic,
					CreatedAt:      time.Now(),
				}
			}
			return stored, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("stores batch without topic", func(t *testing.T) {
		// topic is optional: a batch that omits it is still valid and the
		// missing value survives the round trip as null.
		body := `[{
			"conversation_id": "conv-42",
			"subject": "Commande banc optique",
			"sender": "alice@ags.fr",
			"recipients": ["bob@thales.fr"],
			"body": "Bonjour, merci de confirmer la commande.",
			"received_at": "2026-03-10T09:30:00Z"
		}]`

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/emails", bytes.NewBufferString(body))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
		}
		if len(captured) != 1 {
			t.Fatalf("captured batch = %d commands, want 1", len(captured))
		}
		if captured[0].Topic != nil {
			t.Errorf("topic = %v, want nil for an omitted topic", *captured[0].Topic)
		}

		var stored []emails.Email
		if err := json.NewDecoder(rec.Body).Decode(&stored); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(stored) != 1 || stored[0].Topic != nil {
			t.Error("stored email should carry no topic")
		}
	})

	t.Run("preserves an explicit topic", func(t *testing.T) {
		body := `[{
			"conversation_id": "conv-42",
			"subject": "RE: Commande banc optique",
			"sender": "bob@thales.fr",
			"body": "Commande confirmee.",
			"received_at": "2026-03-10T11:30:00Z",
			"topic": "commande"
		}]`

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/emails", bytes.NewBufferString(body))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
		}
		if captured[0].Topic == nil || *captured[0].Topic != "commande" {
			t.Errorf("topic = %v, want commande", captured[0].Topic)
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/emails", bytes.NewBufferString("{not json"))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestHandlerConversation(t *testing.T) {
	conv := sampleConversation()
	sys := &mockSystem{
		conversationFn: func(_ context.Context, conversationID string) (*emails.Conversation, error) {
			if conversationID != "conv-42" {
				return nil, emails.ErrNotFound
			}
			return &conv, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("returns ordered messages", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/emails/conversations/conv-42", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var got emails.Conversation
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if got.ConversationID != "conv-42" || len(got.Emails) != 2 {
			t.Errorf("conversation = %s with %d emails, want conv-42 with 2", got.ConversationID, len(got.Emails))
		}
	})

	t.Run("unknown conversation maps to 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/emails/conversations/missing", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}
