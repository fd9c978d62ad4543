package warehouse

import (
	"fmt"

	"github.com/JaimeStill/salesflow/internal/gold"
	"github.com/JaimeStill/salesflow/pkg/query"
	"github.com/JaimeStill/salesflow/pkg/repository"
	"github.com/JaimeStill/salesflow/pkg/table"
)

// Fact is one row of the fact table. DateID is nil when the gold value
// did not parse.
type Fact struct {
	OrderID   string  `json:"order_id"`
	DateID    *int64  `json:"date_id"`
	GeoID     string  `json:"geo_id"`
	ProductID string  `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Revenue   float64 `json:"revenue_jpy"`
	UpdatedAt string  `json:"updated_at"`
}

// DimDate is one row of the date dimension.
type DimDate struct {
	DateID int64
	Date   string
}

// Filters narrows fact listings. Nil fields are ignored; the date bounds
// are inclusive.
type Filters struct {
	GeoID     *string
	ProductID *string
	DateFrom  *int64
	DateTo    *int64
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("GeoID", deref(f.GeoID)).
		WhereEquals("ProductID", deref(f.ProductID)).
		WhereRange("DateID", deref(f.DateFrom), deref(f.DateTo))
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

var defaultSort = []query.SortField{
	{Field: "DateID"},
	{Field: "OrderID"},
}

func projection(d query.Dialect) *query.ProjectionMap {
	schema := "public"
	if d == query.SQLite {
		schema = ""
	}
	return query.
		NewProjectionMap(schema, "fact_sales", "f").
		Project("order_id", "OrderID").
		Project("date_id", "DateID").
		Project("geo_id", "GeoID").
		Project("product_id", "ProductID").
		Project("quantity", "Quantity").
		Project("unit_price", "UnitPrice").
		Project("revenue_jpy", "Revenue").
		Project("updated_at", "UpdatedAt")
}

func scanFact(s repository.Scanner) (Fact, error) {
	var f Fact
	err := s.Scan(
		&f.OrderID,
		&f.DateID,
		&f.GeoID,
		&f.ProductID,
		&f.Quantity,
		&f.UnitPrice,
		&f.Revenue,
		&f.UpdatedAt,
	)
	return f, err
}

// FactsFromTable types every row of a gold fact table. Numeric cells must
// parse; a null date_id loads as NULL.
func FactsFromTable(t *table.Table) ([]Fact, error) {
	for _, c := range []string{gold.ColOrderID, gold.ColQuantity, gold.ColUnitPrice, gold.ColRevenue} {
		if !t.Has(c) {
			return nil, fmt.Errorf("%w: missing column %s", ErrInvalidFact, c)
		}
	}

	facts := make([]Fact, t.Len())
	for i := range t.Len() {
		f := Fact{
			OrderID:   t.Get(i, gold.ColOrderID),
			GeoID:     t.Get(i, gold.ColGeoID),
			ProductID: t.Get(i, gold.ColProductID),
			UpdatedAt: t.Get(i, gold.ColUpdatedAt),
		}
		if f.OrderID == "" {
			return nil, fmt.Errorf("%w: row %d has no order_id", ErrInvalidFact, i+1)
		}
		if id, ok := table.ParseInt(t.Get(i, gold.ColDateID)); ok {
			f.DateID = &id
		}

		var ok bool
		if f.Quantity, ok = table.ParseInt(t.Get(i, gold.ColQuantity)); !ok {
			return nil, fmt.Errorf("%w: order %s quantity %q", ErrInvalidFact, f.OrderID, t.Get(i, gold.ColQuantity))
		}
		if f.UnitPrice, ok = table.ParseFloat(t.Get(i, gold.ColUnitPrice)); !ok {
			return nil, fmt.Errorf("%w: order %s unit_price %q", ErrInvalidFact, f.OrderID, t.Get(i, gold.ColUnitPrice))
		}
		if f.Revenue, ok = table.ParseFloat(t.Get(i, gold.ColRevenue)); !ok {
			return nil, fmt.Errorf("%w: order %s revenue_jpy %q", ErrInvalidFact, f.OrderID, t.Get(i, gold.ColRevenue))
		}
		facts[i] = f
	}
	return facts, nil
}

// DatesFromTable types the rows of a date dimension table.
func DatesFromTable(t *table.Table) ([]DimDate, error) {
	dates := make([]DimDate, 0, t.Len())
	for i := range t.Len() {
		id, ok := table.ParseInt(t.Get(i, gold.DimColDateID))
		if !ok {
			return nil, fmt.Errorf("%w: date_id %q", ErrInvalidFact, t.Get(i, gold.DimColDateID))
		}
		dates = append(dates, DimDate{DateID: id, Date: t.Get(i, gold.DimColDate)})
	}
	return dates, nil
}
