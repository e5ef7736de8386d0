package historical

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"simexchange/internal/model"
)

// Store wraps the columnar store's SQL handle, grounded in pkg/db.Database's
// *sql.DB wrapper. The store is modeled as database/sql over
// modernc.org/sqlite — no ClickHouse driver exists in the retrieved pack
// (see DESIGN.md), so the query shapes from spec §6 are kept intact against
// the teacher's own driver.
type Store struct {
	db       *sql.DB
	exchange string
	instr    string
	channel  string
}

// NewStore binds a store to one (exchange, instrument, channel) triple; all
// table/view names it builds are scoped to that partition, per spec §6.
func NewStore(db *sql.DB, exchange, instrument, channel string) *Store {
	return &Store{db: db, exchange: exchange, instr: instrument, channel: channel}
}

func (s *Store) database() string {
	return ConstructDatabaseName(s.exchange, s.instr, s.channel)
}

// ListTables enumerates every table belonging to this store's database,
// mirroring "SHOW TABLES FROM {db}" against sqlite_master (its closest
// equivalent: a name-prefix scan, since sqlite has no per-database
// namespacing).
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	prefix := s.database() + "_"
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table','view') AND name LIKE ? ORDER BY name`,
		prefix+"%")
	if err != nil {
		return nil, &model.StoreErr{Query: "SHOW TABLES", Date: "", Err: err}
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &model.StoreErr{Query: "SHOW TABLES", Date: "", Err: err}
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// EnsureUnionView (re)creates the per-day union view over every per-symbol
// table already present for that date, ordered by timestamp. Real
// ClickHouse union views are a first-class dialect feature; sqlite gets the
// same externally-visible name and ordering via a plain UNION ALL view over
// whatever per-symbol tables exist for the date at call time.
func (s *Store) EnsureUnionView(ctx context.Context, date time.Time) error {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return err
	}
	prefix := fmt.Sprintf("%s_%s", s.database(), date.Format(dateLayout))
	var parts []string
	for _, t := range tables {
		if strings.HasPrefix(t, prefix+"_") {
			parts = append(parts, fmt.Sprintf(
				"SELECT symbol AS basequote, side, price, timestamp, amount FROM %s", t))
		}
	}
	view := ConstructUnionViewName(s.exchange, s.instr, s.channel, date)
	if len(parts) == 0 {
		return &model.StoreErr{Query: "CREATE VIEW " + view, Date: date.Format(dateLayout),
			Err: fmt.Errorf("no per-symbol tables for date")}
	}
	query := fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS %s ORDER BY timestamp ASC",
		view, strings.Join(parts, " UNION ALL "))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return &model.StoreErr{Query: query, Date: date.Format(dateLayout), Err: err}
	}
	return nil
}

// CursorPublicTrades returns a range-over-func iterator reading
// "SELECT symbol, side, price, timestamp, amount FROM {table} ORDER BY
// timestamp ASC" one row at a time off the per-symbol table for (date,
// base, quote).
func (s *Store) CursorPublicTrades(ctx context.Context, date time.Time, base, quote string) func(func(model.PublicTrade, error) bool) {
	table := ConstructTableName(s.exchange, s.instr, s.channel, date, base, quote)
	return s.cursor(ctx, table, date, "")
}

// CursorUnionedPublicTrades is the same cursor against the date's union
// view, so trades across every symbol traded that day come out merged in
// timestamp order (spec §4.1).
func (s *Store) CursorUnionedPublicTrades(ctx context.Context, date time.Time) func(func(model.PublicTrade, error) bool) {
	view := ConstructUnionViewName(s.exchange, s.instr, s.channel, date)
	return s.cursor(ctx, view, date, "basequote")
}

// cursor is the shared row-streaming primitive: it opens one *sql.Rows and
// yields rows lazily, stopping early if the consumer's yield returns false
// (the iterator protocol's way of letting a `break` close the cursor).
func (s *Store) cursor(ctx context.Context, table string, date time.Time, baseQuoteCol string) func(func(model.PublicTrade, error) bool) {
	return func(yield func(model.PublicTrade, error) bool) {
		selectCols := "symbol, side, price, timestamp, amount"
		if baseQuoteCol != "" {
			selectCols = baseQuoteCol + " AS basequote, side, price, timestamp, amount"
		}
		query := fmt.Sprintf("SELECT %s FROM %s ORDER BY timestamp ASC", selectCols, table)
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			yield(model.PublicTrade{}, &model.StoreErr{Query: query, Date: date.Format(dateLayout), Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			var t model.PublicTrade
			var side string
			var dst []any
			if baseQuoteCol != "" {
				dst = []any{&t.BaseQuote, &side, &t.Price, &t.Timestamp, &t.Amount}
			} else {
				dst = []any{&t.Symbol, &side, &t.Price, &t.Timestamp, &t.Amount}
			}
			if err := rows.Scan(dst...); err != nil {
				yield(model.PublicTrade{}, &model.StoreErr{Query: query, Date: date.Format(dateLayout), Err: err})
				return
			}
			t.Side = parseSide(side)
			if !yield(t, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.PublicTrade{}, &model.StoreErr{Query: query, Date: date.Format(dateLayout), Err: err})
		}
	}
}

func parseSide(s string) model.Side {
	if strings.EqualFold(s, "sell") {
		return model.SideSell
	}
	return model.SideBuy
}

// DropTablesMatching drops every table (or view) in this store's database
// whose name contains substr (spec §4.1's admin operation).
func (s *Store) DropTablesMatching(ctx context.Context, substr string) error {
	prefix := s.database() + "_"
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type FROM sqlite_master WHERE type IN ('table','view') AND name LIKE ?`,
		prefix+"%")
	if err != nil {
		return &model.StoreErr{Query: "SHOW TABLES", Date: "", Err: err}
	}
	var targets [][2]string
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			rows.Close()
			return &model.StoreErr{Query: "SHOW TABLES", Date: "", Err: err}
		}
		if strings.Contains(name, substr) {
			targets = append(targets, [2]string{name, kind})
		}
	}
	rows.Close()

	for _, tgt := range targets {
		name, kind := tgt[0], tgt[1]
		verb := "DROP TABLE"
		if kind == "view" {
			verb = "DROP VIEW"
		}
		query := fmt.Sprintf("%s IF EXISTS %s", verb, name)
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return &model.StoreErr{Query: query, Date: "", Err: err}
		}
	}
	return nil
}
