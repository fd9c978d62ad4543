package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/salesflow/internal/warehouse"
	"github.com/JaimeStill/salesflow/pkg/formatting"
	"github.com/JaimeStill/salesflow/pkg/pagination"
	"github.com/JaimeStill/salesflow/pkg/query"
	"github.com/JaimeStill/salesflow/pkg/table"
)

var factsFlags struct {
	page     int
	pageSize int
	search   string
	geo      string
	product  string
	from     int64
	to       int64
	sort     string
	json     bool
}

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Query facts loaded into the warehouse",
}

var factsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Page through warehouse facts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withWarehouse(cmd, func(wh warehouse.System) error {
			page := pagination.PageRequest{
				Page:     factsFlags.page,
				PageSize: factsFlags.pageSize,
				Sort:     query.ParseSortFields(factsFlags.sort),
			}
			if factsFlags.search != "" {
				page.Search = &factsFlags.search
			}

			var filters warehouse.Filters
			if factsFlags.geo != "" {
				filters.GeoID = &factsFlags.geo
			}
			if factsFlags.product != "" {
				filters.ProductID = &factsFlags.product
			}
			if cmd.Flags().Changed("from") {
				filters.DateFrom = &factsFlags.from
			}
			if cmd.Flags().Changed("to") {
				filters.DateTo = &factsFlags.to
			}

			result, err := wh.List(cmd.Context(), page, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if factsFlags.json {
				return writeJSON(out, result)
			}
			fmt.Fprint(out, factTable(result.Data))
			fmt.Fprintf(out, "\npage %d of %d, %d facts\n", result.Page, result.TotalPages, result.Total)
			if result.HasNext() {
				fmt.Fprintf(out, "next: --page %d\n", result.Page+1)
			}
			return nil
		})
	},
}

var factsFindCmd = &cobra.Command{
	Use:   "find <order_id>",
	Short: "Show one fact by order id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWarehouse(cmd, func(wh warehouse.System) error {
			f, err := wh.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if factsFlags.json {
				return writeJSON(cmd.OutOrStdout(), f)
			}
			fmt.Fprint(cmd.OutOrStdout(), factTable([]warehouse.Fact{*f}))
			return nil
		})
	},
}

func init() {
	lf := factsListCmd.Flags()
	lf.IntVar(&factsFlags.page, "page", 1, "page number")
	lf.IntVar(&factsFlags.pageSize, "page-size", 0, "page size (default from config)")
	lf.StringVar(&factsFlags.search, "search", "", "match product ids containing text")
	lf.StringVar(&factsFlags.geo, "geo", "", "filter by geo_id")
	lf.StringVar(&factsFlags.product, "product", "", "filter by product_id")
	lf.Int64Var(&factsFlags.from, "from", 0, "first date_id (YYYYMMDD, inclusive)")
	lf.Int64Var(&factsFlags.to, "to", 0, "last date_id (YYYYMMDD, inclusive)")
	lf.StringVar(&factsFlags.sort, "sort", "", "sort fields, e.g. \"-revenue,orderId\"")

	factsCmd.PersistentFlags().BoolVar(&factsFlags.json, "json", false, "print JSON")
	factsCmd.AddCommand(factsListCmd, factsFindCmd)
}

func withWarehouse(cmd *cobra.Command, fn func(warehouse.System) error) error {
	return withApp(cmd.Context(), func(a *app) error {
		db := a.infra.Database
		if db == nil {
			return errDatabaseDisabled
		}
		return fn(warehouse.New(db.Connection(), db.Dialect(), a.cfg.Pagination, a.infra.Logger))
	})
}

func factTable(facts []warehouse.Fact) string {
	rows := make([][]string, len(facts))
	for i, f := range facts {
		date := ""
		if f.DateID != nil {
			date = strconv.FormatInt(*f.DateID, 10)
		}
		rows[i] = []string{
			f.OrderID,
			date,
			f.GeoID,
			f.ProductID,
			table.FormatInt(f.Quantity),
			table.FormatFloat(f.UnitPrice),
			table.FormatFloat(f.Revenue),
			f.UpdatedAt,
		}
	}
	return formatting.Table(
		[]string{"order_id", "date_id", "geo_id", "product_id", "quantity", "unit_price", "revenue_jpy", "updated_at"},
		rows,
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
