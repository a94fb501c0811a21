package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"resource-api/internal/domain"
)

// ResourceTable is the backing table of Resource records.
const ResourceTable = "resources"

var (
	resourceColumns = []string{"id", "name", "description", "created_at", "updated_at"}
	writableColumns = map[string]struct{}{"name": {}, "description": {}}
	selectResources = "SELECT " + strings.Join(resourceColumns, ", ") + " FROM " + ResourceTable
)

// Where maps a column to the exact value it must hold. A nil or empty Where
// places no constraint on the query.
type Where map[string]any

// Values maps writable columns to new values. A nil value writes NULL.
type Values map[string]any

// ResourceRow is the table row as scanned from the store.
type ResourceRow struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// Resource converts the row to its domain form.
func (r ResourceRow) Resource() domain.Resource {
	res := domain.Resource{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Description.Valid {
		desc := r.Description.String
		res.Description = &desc
	}
	return res
}

// Option configures a ResourceModel.
type Option func(*ResourceModel)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *ResourceModel) {
		m.now = now
	}
}

// ResourceModel maps Resource records onto the resources table and exposes
// the primitive store operations. The connection pool is borrowed; the model
// never closes it.
type ResourceModel struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

func NewResourceModel(db *sqlx.DB, dialect Dialect, opts ...Option) *ResourceModel {
	m := &ResourceModel{
		db:      db,
		dialect: dialect,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sync creates the table when it does not exist yet.
func (m *ResourceModel) Sync(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, m.dialect.CreateResourceTable()); err != nil {
		return fmt.Errorf("create %s table: %w", ResourceTable, err)
	}
	return nil
}

// Ping checks that the store is reachable.
func (m *ResourceModel) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Insert writes a new row and returns it as stored.
func (m *ResourceModel) Insert(ctx context.Context, values Values) (*ResourceRow, error) {
	cols, args, err := values.split()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	cols = append(cols, "created_at", "updated_at")
	args = append(args, now, now)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", ResourceTable, strings.Join(cols, ", "), placeholders)

	var id int64
	if err := m.db.QueryRowxContext(ctx, m.db.Rebind(query), args...).Scan(&id); err != nil {
		return nil, m.wrap("insert resource", err)
	}

	row, err := m.FindByPK(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("insert resource: row %d vanished after insert", id)
	}
	return row, nil
}

// FindByPK returns the row with the given id, or nil when there is none.
func (m *ResourceModel) FindByPK(ctx context.Context, id int64) (*ResourceRow, error) {
	return m.FindOne(ctx, Where{"id": id})
}

// FindAll returns every row matching where, ordered by ascending id.
func (m *ResourceModel) FindAll(ctx context.Context, where Where) ([]ResourceRow, error) {
	clause, args, err := where.clause()
	if err != nil {
		return nil, err
	}
	rows := []ResourceRow{}
	if err := m.db.SelectContext(ctx, &rows, m.db.Rebind(selectResources+clause+" ORDER BY id ASC"), args...); err != nil {
		return nil, m.wrap("query resources", err)
	}
	return rows, nil
}

// FindOne returns the lowest-id row matching where, or nil when none match.
func (m *ResourceModel) FindOne(ctx context.Context, where Where) (*ResourceRow, error) {
	clause, args, err := where.clause()
	if err != nil {
		return nil, err
	}
	var row ResourceRow
	err = m.db.GetContext(ctx, &row, m.db.Rebind(selectResources+clause+" ORDER BY id ASC LIMIT 1"), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, m.wrap("query resource", err)
	}
	return &row, nil
}

// Update writes values to every row matching where and returns the number of
// rows matched together with their new state. updated_at is set to the later
// of the clock and the newest stored value so it never moves backwards.
func (m *ResourceModel) Update(ctx context.Context, values Values, where Where) (int64, []ResourceRow, error) {
	current, err := m.FindAll(ctx, where)
	if err != nil {
		return 0, nil, err
	}
	if len(current) == 0 {
		return 0, []ResourceRow{}, nil
	}

	stamp := m.now().UTC()
	ids := make([]int64, len(current))
	for i, row := range current {
		ids[i] = row.ID
		if row.UpdatedAt.After(stamp) {
			stamp = row.UpdatedAt.UTC()
		}
	}

	cols, args, err := values.split()
	if err != nil {
		return 0, nil, err
	}
	sets := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, stamp)

	in, idArgs := inList(ids)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id IN (%s)", ResourceTable, strings.Join(sets, ", "), in)
	res, err := m.db.ExecContext(ctx, m.db.Rebind(query), append(args, idArgs...)...)
	if err != nil {
		return 0, nil, m.wrap("update resources", err)
	}
	matched, err := res.RowsAffected()
	if err != nil {
		return 0, nil, fmt.Errorf("update rows affected: %w", err)
	}

	updated := []ResourceRow{}
	query = selectResources + " WHERE id IN (" + in + ") ORDER BY id ASC"
	if err := m.db.SelectContext(ctx, &updated, m.db.Rebind(query), idArgs...); err != nil {
		return 0, nil, m.wrap("reload resources", err)
	}
	return matched, updated, nil
}

// Destroy removes every row matching where and reports how many were removed.
func (m *ResourceModel) Destroy(ctx context.Context, where Where) (int64, error) {
	clause, args, err := where.clause()
	if err != nil {
		return 0, err
	}
	res, err := m.db.ExecContext(ctx, m.db.Rebind("DELETE FROM "+ResourceTable+clause), args...)
	if err != nil {
		return 0, m.wrap("delete resources", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of rows matching where.
func (m *ResourceModel) Count(ctx context.Context, where Where) (int64, error) {
	clause, args, err := where.clause()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := m.db.GetContext(ctx, &n, m.db.Rebind("SELECT COUNT(*) FROM "+ResourceTable+clause), args...); err != nil {
		return 0, m.wrap("count resources", err)
	}
	return n, nil
}

func (m *ResourceModel) wrap(op string, err error) error {
	if m.dialect.IsConstraintViolation(err) {
		return &domain.ConstraintError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (w Where) clause() (string, []any, error) {
	if len(w) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(w))
	for k := range w {
		if !isColumn(k) {
			return "", nil, fmt.Errorf("unknown column %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		parts[i] = k + " = ?"
		args[i] = w[k]
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (v Values) split() ([]string, []any, error) {
	cols := make([]string, 0, len(v))
	for k := range v {
		if _, ok := writableColumns[k]; !ok {
			return nil, nil, fmt.Errorf("column %q is not writable", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = v[c]
	}
	return cols, args, nil
}

func inList(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

func isColumn(name string) bool {
	for _, c := range resourceColumns {
		if c == name {
			return true
		}
	}
	return false
}
