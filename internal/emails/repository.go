package emails

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
	"github.com/Samy8769/mail-classifier-3/pkg/query"
	"github.com/Samy8769/mail-classifier-3/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an email repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "emails"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

// Ingest stores a batch of emails in one transaction. The batch is all or
// nothing so a conversation is never partially visible to classification.
func (r *repo) Ingest(ctx context.Context, batch []IngestCommand) ([]Email, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, cmd := range batch {
		if cmd.ConversationID == "" || strings.TrimSpace(cmd.Body) == "" {
			return nil, fmt.Errorf("%w: conversation_id and body are required", ErrInvalidEmail)
		}
	}

	q := `
		INSERT INTO emails(id, conversation_id, subject, sender, recipients, body, received_at, topic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, conversation_id, subject, sender, recipients, body, received_at, topic, created_at`

	stored, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Email, error) {
		result := make([]Email, 0, len(batch))
		for _, cmd := range batch {
			recipients, err := json.Marshal(cmd.Recipients)
			if err != nil {
				return nil, fmt.Errorf("marshal recipients: %w", err)
			}

			args := []any{
				uuid.New(), cmd.ConversationID, cmd.Subject, cmd.Sender,
				recipients, cmd.Body, cmd.ReceivedAt, cmd.Topic,
			}
			email, err := repository.QueryOne(ctx, tx, q, args, scanEmail)
			if err != nil {
				return nil, err
			}
			result = append(result, email)
		}
		return result, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("emails ingested",
		"count", len(stored),
		"conversation_id", stored[0].ConversationID,
	)
	return stored, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Email, error) {
	q, args := query.NewBuilder(emailProjection).BuildSingle("ID", id)

	email, err := repository.QueryOne(ctx, r.db, q, args, scanEmail)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &email, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Email], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(emailProjection, emailDefaultSort).
		WhereSearch(page.Search, "Subject", "Sender", "Body")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count emails: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	result, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEmail)
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}

	paged := pagination.NewPageResult(result, total, page.Page, page.PageSize)
	return &paged, nil
}

// Conversation returns the full ordered message set for a conversation.
// Ordering by reception time keeps the fingerprint stable across reads.
func (r *repo) Conversation(ctx context.Context, conversationID string) (*Conversation, error) {
	result, err := repository.QueryMany(ctx, r.db,
		`SELECT id, conversation_id, subject, sender, recipients, body, received_at, topic, created_at
		 FROM emails WHERE conversation_id = $1
		 ORDER BY received_at, created_at`,
		[]any{conversationID}, scanEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return &Conversation{
		ConversationID: conversationID,
		Emails:         result,
	}, nil
}

func (r *repo) Conversations(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT conversation_id FROM emails ORDER BY conversation_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
