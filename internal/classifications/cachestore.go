package classifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
)

// cacheStore persists pipeline results in the conversation_cache table,
// implementing pipeline.CacheStore. Entries are keyed by (conversation_id,
// fingerprint) and never mutated: a changed fingerprint inserts a new row
// that supersedes the old one without deleting it.
type cacheStore struct {
	db *sql.DB
}

func (s *cacheStore) Lookup(ctx context.Context, conversationID, fingerprint string) (*pipeline.Result, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM conversation_cache
		 WHERE conversation_id = $1 AND fingerprint = $2`,
		conversationID, fingerprint,
	).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation cache: %w", err)
	}

	var result pipeline.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &result, nil
}

func (s *cacheStore) Store(ctx context.Context, conversationID, fingerprint string, result *pipeline.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_cache(conversation_id, fingerprint, result)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (conversation_id, fingerprint) DO UPDATE SET
			result = EXCLUDED.result,
			created_at = NOW()`,
		conversationID, fingerprint, payload,
	)
	if err != nil {
		return fmt.Errorf("store conversation cache: %w", err)
	}
	return nil
}

// evict removes every cached entry for a conversation, used by explicit
// reclassification requests.
func (s *cacheStore) evict(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_cache WHERE conversation_id = $1`,
		conversationID,
	)
	return err
}
