// Package warehouse mirrors the gold fact table and date dimension into a
// relational database and serves paged queries over it.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/pkg/pagination"
	"github.com/JaimeStill/salesflow/pkg/query"
	"github.com/JaimeStill/salesflow/pkg/repository"
)

// System loads and queries the warehouse.
type System interface {
	// Load upserts facts by order_id in one transaction.
	Load(ctx context.Context, facts []Fact) (int64, error)
	// LoadDates inserts dimension rows, skipping existing date_ids.
	LoadDates(ctx context.Context, dates []DimDate) (int64, error)
	// List pages through facts matching filters.
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Fact], error)
	// Find returns the fact for one order_id.
	Find(ctx context.Context, orderID string) (*Fact, error)
}

type repo struct {
	db         *sql.DB
	dialect    query.Dialect
	projection *query.ProjectionMap
	pagination pagination.Config
	logger     *zap.Logger
}

// New creates a warehouse over an open connection.
func New(db *sql.DB, dialect query.Dialect, pagination pagination.Config, logger *zap.Logger) System {
	return &repo{
		db:         db,
		dialect:    dialect,
		projection: projection(dialect),
		pagination: pagination,
		logger:     logger.With(zap.String("system", "warehouse")),
	}
}

func (r *repo) Load(ctx context.Context, facts []Fact) (int64, error) {
	table := r.projection.Table()
	q := fmt.Sprintf(`
		INSERT INTO %s (order_id, date_id, geo_id, product_id, quantity, unit_price, revenue_jpy, updated_at)
		VALUES (%s)
		ON CONFLICT (order_id) DO UPDATE SET
			date_id = excluded.date_id,
			geo_id = excluded.geo_id,
			product_id = excluded.product_id,
			quantity = excluded.quantity,
			unit_price = excluded.unit_price,
			revenue_jpy = excluded.revenue_jpy,
			updated_at = excluded.updated_at`,
		table, r.placeholders(8))

	n, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (int64, error) {
		return repository.ExecEach(ctx, tx, q, facts, func(f Fact) []any {
			return []any{f.OrderID, nullInt(f.DateID), f.GeoID, f.ProductID, f.Quantity, f.UnitPrice, f.Revenue, f.UpdatedAt}
		})
	})
	if err != nil {
		return 0, fmt.Errorf("load facts: %w", repository.MapError(err, ErrNotFound, ErrDuplicate))
	}

	r.logger.Info("facts loaded", zap.Int("rows", len(facts)), zap.Int64("affected", n))
	return n, nil
}

func (r *repo) LoadDates(ctx context.Context, dates []DimDate) (int64, error) {
	table := "dim_date"
	if r.dialect == query.Postgres {
		table = "public.dim_date"
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (date_id, date) VALUES (%s) ON CONFLICT (date_id) DO NOTHING",
		table, r.placeholders(2))

	n, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (int64, error) {
		return repository.ExecEach(ctx, tx, q, dates, func(d DimDate) []any {
			return []any{d.DateID, d.Date}
		})
	})
	if err != nil {
		return 0, fmt.Errorf("load dates: %w", err)
	}

	r.logger.Debug("dates loaded", zap.Int("rows", len(dates)), zap.Int64("inserted", n))
	return n, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Fact], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(r.projection, defaultSort...).
		WithDialect(r.dialect).
		WhereContains("ProductID", page.Search)

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count facts: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	facts, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanFact)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}

	result := pagination.NewPageResult(facts, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, orderID string) (*Fact, error) {
	q, args := query.NewBuilder(r.projection).WithDialect(r.dialect).BuildSingle("OrderID", orderID)

	f, err := repository.QueryOne(ctx, r.db, q, args, scanFact)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &f, nil
}

func (r *repo) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = r.dialect.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
