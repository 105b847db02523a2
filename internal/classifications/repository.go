package classifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/Samy8769/mail-classifier-3/internal/emails"
	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
	"github.com/Samy8769/mail-classifier-3/pkg/query"
	"github.com/Samy8769/mail-classifier-3/pkg/repository"
)

type repo struct {
	db         *sql.DB
	rt         *pipeline.Runtime
	emails     emails.System
	cache      *cacheStore
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a classification repository implementing the System interface.
// It internally constructs the pipeline runtime from the provided dependencies.
func New(
	db *sql.DB,
	agent gaconfig.AgentConfig,
	pcfg pipeline.Config,
	logger *slog.Logger,
	pagination pagination.Config,
	tax taxonomy.System,
	mail emails.System,
) System {
	cache := &cacheStore{db: db}
	rt := &pipeline.Runtime{
		Config:   pcfg,
		Taxonomy: tax,
		Client:   pipeline.NewAgentClient(agent),
		Cache:    pipeline.NewCache(cache, logger),
		// One limiter for the runtime's lifetime: concurrent Classify
		// calls share the model-call bound instead of multiplying it.
		Limiter: pipeline.NewLimiter(pcfg.Concurrency),
		Logger:  logger.With("workflow", "classify"),
	}
	return &repo{
		db:         db,
		rt:         rt,
		emails:     mail,
		cache:      cache,
		logger:     logger.With("system", "classifications"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

// Classify runs the pipeline for one conversation and persists its durable
// output: classification rows per (email, tag), the chunk layout, the cache
// entry, and an audit row. force bypasses the cache and recomputes.
func (r *repo) Classify(ctx context.Context, conversationID string, force bool) (*pipeline.Result, error) {
	started := time.Now()

	conversation, err := r.emails.Conversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, emails.ErrNotFound) {
			return nil, fmt.Errorf("%w: conversation %s has no emails", ErrNotFound, conversationID)
		}
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	doc := pipeline.Document{
		ConversationID: conversationID,
		Fingerprint:    conversation.Fingerprint(),
		Text:           conversation.Text(),
	}

	if force {
		r.rt.Cache.Evict(doc.ConversationID, doc.Fingerprint)
		if err := r.cache.evict(ctx, conversationID); err != nil {
			r.logger.Warn("cache eviction failed", "conversation_id", conversationID, "error", err)
		}
	}

	result, err := pipeline.Execute(ctx, r.rt, doc)
	if err != nil {
		r.audit(ctx, "classify", conversationID, "failure", err.Error(), time.Since(started))
		return nil, fmt.Errorf("classify conversation %s: %w", conversationID, err)
	}

	if !result.FromCache {
		if err := r.persist(ctx, conversation, doc, result); err != nil {
			r.audit(ctx, "classify", conversationID, "failure", err.Error(), time.Since(started))
			return nil, fmt.Errorf("persist classification: %w", err)
		}
	}

	status := "success"
	var errText string
	if result.Outcome == pipeline.RunPartial {
		status = "partial"
		errText = fmt.Sprintf("unresolved axes: %s", strings.Join(result.Unresolved(), ", "))
	}
	r.audit(ctx, "classify", conversationID, status, errText, time.Since(started))

	r.logger.Info("conversation classified",
		"conversation_id", conversationID,
		"outcome", result.Outcome,
		"from_cache", result.FromCache,
		"duration", time.Since(started),
	)
	return result, nil
}

// persist writes the chunk layout and one classification row per
// (email, tag) in a single transaction. Human-sourced rows survive
// reclassification; everything else is replaced.
func (r *repo) persist(
	ctx context.Context,
	conversation *emails.Conversation,
	doc pipeline.Document,
	result *pipeline.Result,
) error {
	chunker := pipeline.NewChunker(
		r.rt.Config.EffectiveMaxTokens(),
		r.rt.Config.OverlapTokens,
		pipeline.ApproxCounter(r.rt.Config.CharsPerToken),
	)
	chunks, err := chunker.Split(doc.Text)
	if err != nil {
		return fmt.Errorf("chunk layout: %w", err)
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM conversation_chunks WHERE conversation_id = $1`,
			doc.ConversationID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear chunks: %w", err)
		}

		for _, chunk := range chunks {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conversation_chunks(conversation_id, chunk_index, kind, tokens, oversized, content)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				doc.ConversationID, chunk.Index, string(chunk.Kind),
				chunk.Tokens, chunk.Oversized, chunk.Text,
			); err != nil {
				return struct{}{}, fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM classifications WHERE conversation_id = $1 AND source <> 'human'`,
			doc.ConversationID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear classifications: %w", err)
		}

		insertQ := `
			INSERT INTO classifications(
				id, email_id, conversation_id, chunk_index,
				tag_name, axis_name, source, confidence
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (email_id, tag_name) DO NOTHING`

		for axisName, outcome := range result.Axes {
			if outcome.Status != pipeline.AxisResolved {
				continue
			}
			for _, assignment := range outcome.Tags {
				for _, email := range conversation.Emails {
					if _, err := tx.ExecContext(ctx, insertQ,
						uuid.New(), email.ID, doc.ConversationID, assignment.Chunk,
						assignment.Tag, axisName, string(assignment.Source), assignment.Confidence,
					); err != nil {
						return struct{}{}, fmt.Errorf("insert classification %s: %w", assignment.Tag, err)
					}
				}
			}
		}

		return struct{}{}, nil
	})

	return err
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Classification], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "TagName", "AxisName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count classifications: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanClassification)
	if err != nil {
		return nil, fmt.Errorf("query classifications: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Classification, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanClassification)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) ForConversation(ctx context.Context, conversationID string) ([]Classification, error) {
	return repository.QueryMany(ctx, r.db,
		`SELECT id, email_id, conversation_id, chunk_index, tag_name, axis_name,
				source, confidence, classified_at, validated_by, validated_at
		 FROM classifications WHERE conversation_id = $1
		 ORDER BY axis_name, tag_name`,
		[]any{conversationID}, scanClassification,
	)
}

func (r *repo) Validate(ctx context.Context, id uuid.UUID, cmd ValidateCommand) (*Classification, error) {
	if cmd.ValidatedBy == "" {
		return nil, fmt.Errorf("%w: validated_by is required", ErrInvalidRequest)
	}

	validateQ := `
		UPDATE classifications
		SET validated_by = $1, validated_at = NOW()
		WHERE id = $2
		RETURNING id, email_id, conversation_id, chunk_index, tag_name, axis_name,
				  source, confidence, classified_at, validated_by, validated_at`

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Classification, error) {
		return repository.QueryOne(ctx, tx, validateQ, []any{cmd.ValidatedBy, id}, scanClassification)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("classification validated",
		"id", c.ID,
		"validated_by", cmd.ValidatedBy,
	)
	return &c, nil
}

// Update replaces the tag on a row with a human correction. The owning axis
// is re-derived from the catalog so the row never carries a dangling tag.
func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Classification, error) {
	if cmd.TagName == "" || cmd.UpdatedBy == "" {
		return nil, fmt.Errorf("%w: tag_name and updated_by are required", ErrInvalidRequest)
	}

	catalog, err := r.rt.Taxonomy.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("taxonomy snapshot: %w", err)
	}
	axis, ok := catalog.AxisForTag(cmd.TagName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTag, cmd.TagName)
	}

	updateQ := `
		UPDATE classifications
		SET tag_name = $1, axis_name = $2, source = 'human', confidence = 1.0,
			validated_by = $3, validated_at = NOW()
		WHERE id = $4
		RETURNING id, email_id, conversation_id, chunk_index, tag_name, axis_name,
				  source, confidence, classified_at, validated_by, validated_at`

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Classification, error) {
		return repository.QueryOne(ctx, tx, updateQ,
			[]any{cmd.TagName, axis.Name, cmd.UpdatedBy, id},
			scanClassification,
		)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("classification updated",
		"id", c.ID,
		"tag", c.TagName,
		"updated_by", cmd.UpdatedBy,
	)
	return &c, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM classifications WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("classification deleted", "id", id)
	return nil
}

func (r *repo) AuditTrail(ctx context.Context, conversationID string) ([]AuditEntry, error) {
	return repository.QueryMany(ctx, r.db,
		`SELECT id, operation, conversation_id, status, error, duration_ms, created_at
		 FROM audit_log WHERE conversation_id = $1
		 ORDER BY created_at DESC`,
		[]any{conversationID}, scanAuditEntry,
	)
}

// audit records one pipeline operation. Audit writes are best effort; a
// failure is logged, never propagated.
func (r *repo) audit(
	ctx context.Context,
	operation, conversationID, status, errText string,
	duration time.Duration,
) {
	var errVal *string
	if errText != "" {
		errVal = &errText
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log(id, operation, conversation_id, status, error, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), operation, conversationID, status, errVal, duration.Milliseconds(),
	)
	if err != nil {
		r.logger.Warn("audit write failed",
			"operation", operation,
			"conversation_id", conversationID,
			"error", err,
		)
	}
}
