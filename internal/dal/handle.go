package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Row is a single result row keyed by column name. Text columns that a driver
// returns as []byte are converted to string.
type Row map[string]any

// Handle is a request-scoped view of the DB. It is not safe for concurrent
// use; each request gets its own. At most one transaction is open per handle.
type Handle struct {
	db *DB
	tx *sqlx.Tx
}

// InTransaction reports whether the handle has an open transaction.
func (h *Handle) InTransaction() bool { return h.tx != nil }

func (h *Handle) driverName() string {
	if h.tx != nil {
		return h.tx.DriverName()
	}
	return h.db.DriverName()
}

// run executes fn inside the open transaction or against a checked-out pool.
// Outside a transaction a failure caused by a dropped connection gets exactly
// one reconnect-and-retry; a second failure is surfaced.
func (h *Handle) run(ctx context.Context, op, query string, params []Param, fn func(sqlx.ExtContext) error) error {
	if h.tx != nil {
		err := fn(h.tx)
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		return h.db.classify(op, KindQuery, query, params, err)
	}

	pool, err := h.db.checkConnection(ctx)
	if err != nil {
		return err
	}
	err = fn(pool)
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	if isConnectionError(err) {
		h.db.log.Warn("database connection dropped during "+op+", retrying once", "cause", err.Error())
		pool, cerr := h.db.checkConnection(ctx)
		if cerr != nil {
			return cerr
		}
		err = fn(pool)
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return h.db.classify(op, KindQuery, query, params, err)
}

// Query runs a parameterized SELECT. On failure it returns an empty, non-nil
// slice together with the classified error.
func (h *Handle) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows := []Row{}
	err := h.run(ctx, "query", query, positional(query, args), func(ext sqlx.ExtContext) error {
		rs, err := ext.QueryxContext(ctx, ext.Rebind(query), args...)
		if err != nil {
			return err
		}
		defer rs.Close()

		out := []Row{}
		for rs.Next() {
			m := make(map[string]any)
			if err := rs.MapScan(m); err != nil {
				return err
			}
			out = append(out, normalize(m))
		}
		if err := rs.Err(); err != nil {
			return err
		}
		rows = out
		return nil
	})
	if err != nil {
		return []Row{}, err
	}
	return rows, nil
}

// QueryOne returns the first row of a parameterized SELECT, or ErrNotFound.
func (h *Handle) QueryOne(ctx context.Context, query string, args ...any) (Row, error) {
	var row Row
	err := h.run(ctx, "query_one", query, positional(query, args), func(ext sqlx.ExtContext) error {
		m := make(map[string]any)
		err := ext.QueryRowxContext(ctx, ext.Rebind(query), args...).MapScan(m)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		row = normalize(m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Get scans a single row into dest using sqlx struct mapping, or returns ErrNotFound.
func (h *Handle) Get(ctx context.Context, dest any, query string, args ...any) error {
	return h.run(ctx, "get", query, positional(query, args), func(ext sqlx.ExtContext) error {
		err := sqlx.GetContext(ctx, ext, dest, ext.Rebind(query), args...)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
}

// Select scans all rows into dest, a pointer to a slice.
func (h *Handle) Select(ctx context.Context, dest any, query string, args ...any) error {
	return h.run(ctx, "select", query, positional(query, args), func(ext sqlx.ExtContext) error {
		return sqlx.SelectContext(ctx, ext, dest, ext.Rebind(query), args...)
	})
}

// Execute runs an INSERT, UPDATE or DELETE and returns the affected row count,
// or 0 on failure.
func (h *Handle) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return h.exec(ctx, "execute", query, positional(query, args), args)
}

func (h *Handle) exec(ctx context.Context, op, query string, params []Param, args []any) (int64, error) {
	var n int64
	err := h.run(ctx, op, query, params, func(ext sqlx.ExtContext) error {
		res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Insert builds a parameterized INSERT from fields and returns the generated id.
// Table and column names go through SanitizeIdentifier; values are always bound.
func (h *Handle) Insert(ctx context.Context, table string, fields map[string]any) (int64, error) {
	tbl, cols, args, params, err := prepare(table, fields)
	if err != nil {
		return 0, err
	}
	driver := h.driverName()

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = c.quote(driver)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tbl.quote(driver), strings.Join(quoted, ", "), placeholders(len(cols)))

	var id int64
	if driver == "postgres" {
		query += " RETURNING id"
		err = h.run(ctx, "insert", query, params, func(ext sqlx.ExtContext) error {
			return ext.QueryRowxContext(ctx, ext.Rebind(query), args...).Scan(&id)
		})
	} else {
		err = h.run(ctx, "insert", query, params, func(ext sqlx.ExtContext) error {
			res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			return err
		})
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update sets fields on the rows matched by where, which must be
// already-parameterized SQL such as "id = ?". It returns the affected row count.
func (h *Handle) Update(ctx context.Context, table string, fields map[string]any, where string, whereArgs ...any) (int64, error) {
	if strings.TrimSpace(where) == "" {
		return 0, ErrMissingWhere
	}
	tbl, cols, args, params, err := prepare(table, fields)
	if err != nil {
		return 0, err
	}
	driver := h.driverName()

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c.quote(driver) + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", tbl.quote(driver), strings.Join(sets, ", "), where)

	args = append(args, whereArgs...)
	params = append(params, positional(where, whereArgs)...)
	return h.exec(ctx, "update", query, params, args)
}

// Delete removes the rows matched by where and returns the affected row count.
func (h *Handle) Delete(ctx context.Context, table string, where string, whereArgs ...any) (int64, error) {
	if strings.TrimSpace(where) == "" {
		return 0, ErrMissingWhere
	}
	tbl, err := SanitizeIdentifier(table)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", tbl.quote(h.driverName()), where)
	return h.exec(ctx, "delete", query, positional(where, whereArgs), whereArgs)
}

// BeginTransaction opens a transaction on this handle. It returns ErrTxActive
// if one is already open.
func (h *Handle) BeginTransaction(ctx context.Context) error {
	if h.tx != nil {
		return ErrTxActive
	}
	pool, err := h.db.checkConnection(ctx)
	if err != nil {
		return err
	}
	tx, err := pool.BeginTxx(ctx, nil)
	if err != nil {
		return h.db.classify("begin", KindQuery, "", nil, err)
	}
	h.tx = tx
	return nil
}

// Commit commits the open transaction. It returns ErrNoTx outside one.
func (h *Handle) Commit() error {
	if h.tx == nil {
		return ErrNoTx
	}
	tx := h.tx
	h.tx = nil
	if err := tx.Commit(); err != nil {
		return h.db.classify("commit", KindQuery, "", nil, err)
	}
	return nil
}

// Rollback aborts the open transaction. It returns ErrNoTx outside one.
func (h *Handle) Rollback() error {
	if h.tx == nil {
		return ErrNoTx
	}
	tx := h.tx
	h.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return h.db.classify("rollback", KindQuery, "", nil, err)
	}
	return nil
}

// Transaction runs fn inside a transaction, committing if it returns nil and
// rolling back on error or panic.
func (h *Handle) Transaction(ctx context.Context, fn func(*Handle) error) (err error) {
	if err := h.BeginTransaction(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = h.Rollback()
			panic(p)
		}
	}()

	if err := fn(h); err != nil {
		if rbErr := h.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return h.Commit()
}

// Release rolls back a transaction left open by the request, if any.
func (h *Handle) Release() {
	if h.tx != nil {
		h.db.log.Warn("rolling back transaction left open at end of request")
		_ = h.Rollback()
	}
}

// TableExists reports whether a table with the given name exists in the
// current schema.
func (h *Handle) TableExists(ctx context.Context, name string) (bool, error) {
	tbl, err := SanitizeIdentifier(name)
	if err != nil {
		return false, err
	}
	var query string
	switch h.driverName() {
	case "mysql":
		query = `SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	case "postgres":
		query = `SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
	default:
		query = `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`
	}
	return h.exists(ctx, query, tbl.String())
}

// ColumnExists reports whether table has a column named col.
func (h *Handle) ColumnExists(ctx context.Context, table, col string) (bool, error) {
	tbl, err := SanitizeIdentifier(table)
	if err != nil {
		return false, err
	}
	c, err := SanitizeIdentifier(col)
	if err != nil {
		return false, err
	}
	var query string
	switch h.driverName() {
	case "mysql":
		query = `SELECT 1 FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
	case "postgres":
		query = `SELECT 1 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?`
	default:
		query = `SELECT 1 FROM pragma_table_info(?) WHERE name = ?`
	}
	return h.exists(ctx, query, tbl.String(), c.String())
}

func (h *Handle) exists(ctx context.Context, query string, args ...any) (bool, error) {
	_, err := h.QueryOne(ctx, query, args...)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// prepare sanitizes the table and column names and orders the fields so the
// generated SQL is stable.
func prepare(table string, fields map[string]any) (Identifier, []Identifier, []any, []Param, error) {
	tbl, err := SanitizeIdentifier(table)
	if err != nil {
		return Identifier{}, nil, nil, nil, err
	}
	if len(fields) == 0 {
		return Identifier{}, nil, nil, nil, ErrNoFields
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := make([]Identifier, len(names))
	args := make([]any, len(names))
	params := make([]Param, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		col, err := SanitizeIdentifier(name)
		if err != nil {
			return Identifier{}, nil, nil, nil, err
		}
		if seen[col.String()] {
			return Identifier{}, nil, nil, nil, fmt.Errorf("%w: %q collides with another column after sanitizing", ErrInvalidIdentifier, name)
		}
		seen[col.String()] = true
		cols[i] = col
		args[i] = fields[name]
		params[i] = Param{Name: col.String(), Value: fields[name]}
	}
	return tbl, cols, args, params, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func normalize(m map[string]any) Row {
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
	return Row(m)
}
