package taxonomy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

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

// New creates a taxonomy repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "taxonomy"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

// Snapshot loads axes, dependencies, tags, constraints, and rules and builds
// a validated Catalog. Intended to be called once per pipeline run batch;
// fails fast on malformed definitions.
func (r *repo) Snapshot(ctx context.Context) (*Catalog, error) {
	axes, err := r.Axes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load axes: %w", err)
	}

	tags, err := repository.QueryMany(ctx, r.db,
		`SELECT id, name, axis_name, prefix, description, active, metadata, created_at, updated_at
		 FROM tags WHERE active = true ORDER BY name`,
		nil, scanTag,
	)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}

	constraints, err := repository.QueryMany(ctx, r.db,
		`SELECT axis_name, constraint_text, position, active
		 FROM axis_constraints WHERE active = true ORDER BY axis_name, position`,
		nil, scanConstraint,
	)
	if err != nil {
		return nil, fmt.Errorf("load constraints: %w", err)
	}

	rules, err := repository.QueryMany(ctx, r.db,
		`SELECT id, priority, position, condition_kind, condition_value, action, action_tag, active
		 FROM inference_rules WHERE active = true ORDER BY priority, position`,
		nil, scanRule,
	)
	if err != nil {
		return nil, fmt.Errorf("load inference rules: %w", err)
	}

	catalog, err := NewCatalog(axes, tags, constraints, rules)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	r.logger.Info("taxonomy snapshot loaded",
		"axes", len(axes),
		"tags", len(tags),
		"rules", len(rules),
	)
	return catalog, nil
}

func (r *repo) Axes(ctx context.Context) ([]Axis, error) {
	axes, err := repository.QueryMany(ctx, r.db,
		`SELECT name, prefix, vocabulary, multiplicity, priority, prompt
		 FROM axes ORDER BY priority, name`,
		nil, scanAxis,
	)
	if err != nil {
		return nil, fmt.Errorf("query axes: %w", err)
	}

	deps, err := r.dependencies(ctx)
	if err != nil {
		return nil, err
	}
	for i := range axes {
		axes[i].DependsOn = deps[axes[i].Name]
	}

	return axes, nil
}

func (r *repo) dependencies(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT axis_name, depends_on FROM axis_dependencies ORDER BY axis_name, depends_on`,
	)
	if err != nil {
		return nil, fmt.Errorf("query axis dependencies: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	for rows.Next() {
		var axis, dep string
		if err := rows.Scan(&axis, &dep); err != nil {
			return nil, err
		}
		deps[axis] = append(deps[axis], dep)
	}
	return deps, rows.Err()
}

func (r *repo) ListTags(
	ctx context.Context,
	page pagination.PageRequest,
	filters TagFilters,
) (*pagination.PageResult[Tag], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(tagProjection, tagDefaultSort).
		WhereSearch(page.Search, "Name", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count tags: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	tags, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanTag)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}

	result := pagination.NewPageResult(tags, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) FindTag(ctx context.Context, name string) (*Tag, error) {
	q, args := query.NewBuilder(tagProjection).BuildSingle("Name", name)

	t, err := repository.QueryOne(ctx, r.db, q, args, scanTag)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) CreateTag(ctx context.Context, cmd CreateTagCommand) (*Tag, error) {
	var metadata []byte
	if cmd.Metadata != nil {
		var err error
		metadata, err = json.Marshal(cmd.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal tag metadata: %w", err)
		}
	}

	q := `
		INSERT INTO tags(id, name, axis_name, prefix, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, axis_name, prefix, description, active, metadata, created_at, updated_at`

	args := []any{uuid.New(), cmd.Name, cmd.AxisName, cmd.Prefix, cmd.Description, metadata}

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Tag, error) {
		return repository.QueryOne(ctx, tx, q, args, scanTag)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrAxisNotFound, ErrDuplicate)
	}

	r.logger.Info("tag created", "name", t.Name, "axis", t.AxisName)
	return &t, nil
}

func (r *repo) DeactivateTag(ctx context.Context, name string) (*Tag, error) {
	q := `
		UPDATE tags SET active = false, updated_at = NOW()
		WHERE name = $1
		RETURNING id, name, axis_name, prefix, description, active, metadata, created_at, updated_at`

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Tag, error) {
		return repository.QueryOne(ctx, tx, q, []any{name}, scanTag)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("tag deactivated", "name", t.Name)
	return &t, nil
}

func scanAxis(s repository.Scanner) (Axis, error) {
	var a Axis
	err := s.Scan(
		&a.Name,
		&a.Prefix,
		&a.Vocabulary,
		&a.Multiplicity,
		&a.Priority,
		&a.Prompt,
	)
	return a, err
}

func scanConstraint(s repository.Scanner) (Constraint, error) {
	var c Constraint
	err := s.Scan(
		&c.AxisName,
		&c.Text,
		&c.Position,
		&c.Active,
	)
	return c, err
}

func scanRule(s repository.Scanner) (InferenceRule, error) {
	var r InferenceRule
	err := s.Scan(
		&r.ID,
		&r.Priority,
		&r.Position,
		&r.ConditionKind,
		&r.ConditionValue,
		&r.Action,
		&r.ActionTag,
		&r.Active,
	)
	return r, err
}
