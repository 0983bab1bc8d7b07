package opportunity

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"opportunity-hunter/internal/domain"
	"opportunity-hunter/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

// RunMigrations applies every up script from the migrations package in
// version order. The scripts are idempotent, so this is safe on every boot
// for deployments that skip cmd/migrate; it does not record schema_migrations.
func (r *Repository) RunMigrations(ctx context.Context) error {
	paths, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	// zero-padded versions sort lexically
	slices.Sort(paths)
	for _, p := range paths {
		body, err := fs.ReadFile(migrations.FS, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		if _, err := r.pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", p, err)
		}
	}
	return nil
}

const opportunityColumns = `id, slug, title, protocol_name, type, chains, reward_min, reward_max, reward_currency,
       trust_score, source, source_ref, dedupe_key, requirements, starts_at, ends_at, status,
       description, tags, url, claim_start, claim_end, sponsored, last_synced_at, created_at, updated_at`

const upsertSQL = `
INSERT INTO opportunities (
    slug, title, protocol_name, type, chains, reward_min, reward_max, reward_currency,
    trust_score, source, source_ref, dedupe_key, requirements, starts_at, ends_at, status,
    description, tags, url, claim_start, claim_end, sponsored, last_synced_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8,
    $9, $10, $11, $12, $13, $14, $15, $16,
    $17, $18, $19, $20, $21, $22, $23, $23
)
ON CONFLICT (source, source_ref) DO UPDATE SET
    slug = EXCLUDED.slug,
    title = EXCLUDED.title,
    protocol_name = EXCLUDED.protocol_name,
    type = EXCLUDED.type,
    chains = EXCLUDED.chains,
    reward_min = EXCLUDED.reward_min,
    reward_max = EXCLUDED.reward_max,
    reward_currency = EXCLUDED.reward_currency,
    trust_score = EXCLUDED.trust_score,
    dedupe_key = EXCLUDED.dedupe_key,
    requirements = EXCLUDED.requirements,
    starts_at = EXCLUDED.starts_at,
    ends_at = EXCLUDED.ends_at,
    status = EXCLUDED.status,
    description = EXCLUDED.description,
    tags = EXCLUDED.tags,
    url = EXCLUDED.url,
    claim_start = EXCLUDED.claim_start,
    claim_end = EXCLUDED.claim_end,
    sponsored = EXCLUDED.sponsored,
    last_synced_at = EXCLUDED.last_synced_at,
    updated_at = EXCLUDED.updated_at`

// UpsertOpportunity writes one record keyed on (source, source_ref).
// inserted is false when an existing row was updated.
func (r *Repository) UpsertOpportunity(ctx context.Context, c domain.CandidateOpportunity, syncedAt time.Time) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "opportunity-repo.upsert")
	defer span.End()

	args, err := upsertArgs(c, syncedAt)
	if err != nil {
		return false, err
	}
	var inserted bool
	if err := r.pool.QueryRow(ctx, upsertSQL+"\nRETURNING (xmax = 0)", args...).Scan(&inserted); err != nil {
		return false, err
	}
	return inserted, nil
}

// CreateCurated stores an admin-curated opportunity and returns the row.
func (r *Repository) CreateCurated(ctx context.Context, c domain.CandidateOpportunity) (domain.Opportunity, error) {
	ctx, span := r.tracer.Start(ctx, "opportunity-repo.create-curated")
	defer span.End()

	c.Source = domain.SourceCurated
	args, err := upsertArgs(c, time.Now().UTC())
	if err != nil {
		return domain.Opportunity{}, err
	}
	return scanOpportunity(r.pool.QueryRow(ctx, upsertSQL+"\nRETURNING "+opportunityColumns, args...))
}

func upsertArgs(c domain.CandidateOpportunity, syncedAt time.Time) ([]any, error) {
	requirements := c.Requirements
	if requirements == nil {
		requirements = map[string]any{}
	}
	reqJSON, err := json.Marshal(requirements)
	if err != nil {
		return nil, fmt.Errorf("encode requirements: %w", err)
	}
	return []any{
		c.Slug,
		c.Title,
		c.ProtocolName,
		string(c.Type),
		nonNilStrings(c.Chains),
		c.RewardMin,
		c.RewardMax,
		c.RewardCurrency,
		c.TrustScore,
		c.Source,
		c.SourceRef,
		c.DedupeKey,
		string(reqJSON),
		c.StartsAt,
		c.EndsAt,
		string(c.Status),
		c.Description,
		nonNilStrings(c.Tags),
		c.URL,
		c.ClaimStart,
		c.ClaimEnd,
		c.Sponsored,
		syncedAt.UTC(),
	}, nil
}

// ListFeed returns published rows matching filter, ordered by id.
func (r *Repository) ListFeed(ctx context.Context, filter domain.FeedFilter) ([]domain.Opportunity, error) {
	ctx, span := r.tracer.Start(ctx, "opportunity-repo.list-feed")
	defer span.End()

	var types []string
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	pattern := ""
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern = "%" + escapeLike(s) + "%"
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+opportunityColumns+`
FROM opportunities
WHERE status = 'published'
  AND ($1::text[] IS NULL OR type = ANY($1::text[]))
  AND trust_score >= $2
  AND ($3 = '' OR title ILIKE $3 OR protocol_name ILIKE $3 OR description ILIKE $3)
ORDER BY id`, types, filter.TrustMin, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListBySource reads stored candidates back, used by the curated adapter.
func (r *Repository) ListBySource(ctx context.Context, source string, opportunityType domain.OpportunityType) ([]domain.CandidateOpportunity, error) {
	ctx, span := r.tracer.Start(ctx, "opportunity-repo.list-by-source")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT `+opportunityColumns+`
FROM opportunities
WHERE source = $1 AND type = $2 AND status = 'published'
ORDER BY id`, source, string(opportunityType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CandidateOpportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o.CandidateOpportunity)
	}
	return out, rows.Err()
}

// ExpireEnded marks published rows whose end time has passed.
func (r *Repository) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "opportunity-repo.expire-ended")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE opportunities
SET status = 'expired', updated_at = $1
WHERE status = 'published' AND ends_at IS NOT NULL AND ends_at < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var (
		o            domain.Opportunity
		oppType      string
		status       string
		requirements []byte
	)
	err := row.Scan(
		&o.ID,
		&o.Slug,
		&o.Title,
		&o.ProtocolName,
		&oppType,
		&o.Chains,
		&o.RewardMin,
		&o.RewardMax,
		&o.RewardCurrency,
		&o.TrustScore,
		&o.Source,
		&o.SourceRef,
		&o.DedupeKey,
		&requirements,
		&o.StartsAt,
		&o.EndsAt,
		&status,
		&o.Description,
		&o.Tags,
		&o.URL,
		&o.ClaimStart,
		&o.ClaimEnd,
		&o.Sponsored,
		&o.LastSyncedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return domain.Opportunity{}, err
	}
	o.Type = domain.OpportunityType(oppType)
	o.Status = domain.OpportunityStatus(status)
	if len(requirements) > 0 {
		if err := json.Unmarshal(requirements, &o.Requirements); err != nil {
			return domain.Opportunity{}, fmt.Errorf("decode requirements for %d: %w", o.ID, err)
		}
	}
	o.Trust = domain.Trust{Score: o.TrustScore, Level: domain.TrustLevelFor(o.TrustScore)}
	return o, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
