package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dkoval/tabletalk/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store. It is the primary
// backend: uniqueness and the ownership chain are additionally guarded by
// schema constraints, so a bug in the policy layer cannot corrupt the data.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, it uses ":memory:" for an in-memory database.
// For file-based storage the parent directory is created automatically.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory for database: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT,
		context TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username) WHERE username IS NOT NULL AND username != '';

	CREATE TABLE IF NOT EXISTS tables (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		table_name TEXT NOT NULL,
		UNIQUE(user_id, table_name)
	);

	CREATE INDEX IF NOT EXISTS idx_tables_user_id ON tables(user_id);

	CREATE TABLE IF NOT EXISTS columns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_id INTEGER NOT NULL REFERENCES tables(id),
		column_name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		UNIQUE(table_id, column_name)
	);

	CREATE INDEX IF NOT EXISTS idx_columns_table_id ON columns(table_id);

	CREATE TABLE IF NOT EXISTS data (
		row_id INTEGER NOT NULL,
		column_id INTEGER NOT NULL REFERENCES columns(id),
		data TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (row_id, column_id)
	);

	CREATE INDEX IF NOT EXISTS idx_data_column_id ON data(column_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser stores a new user. The ID must be supplied by the caller.
func (s *SQLiteStore) CreateUser(u *model.User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctxJSON, err := marshalContext(u.Context)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO users (id, username, context) VALUES (?, ?, ?)`,
		u.ID, nullableString(u.Username), ctxJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var username sql.NullString
	var ctxJSON sql.NullString
	err := s.db.QueryRow(
		`SELECT username, context FROM users WHERE id = ?`, id,
	).Scan(&username, &ctxJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	ctx, err := unmarshalContext(ctxJSON)
	if err != nil {
		return nil, err
	}
	return &model.User{ID: id, Username: username.String, Context: ctx}, nil
}

// CountUsername counts users carrying the given username.
func (s *SQLiteStore) CountUsername(username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM users WHERE username = ?`, username,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usernames: %w", err)
	}
	return count, nil
}

// ListUsers returns all users ordered by ID.
func (s *SQLiteStore) ListUsers() ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, username, context FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var id int64
		var username, ctxJSON sql.NullString
		if err := rows.Scan(&id, &username, &ctxJSON); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		ctx, err := unmarshalContext(ctxJSON)
		if err != nil {
			return nil, err
		}
		users = append(users, &model.User{ID: id, Username: username.String, Context: ctx})
	}
	return users, rows.Err()
}

// LoadContext returns the persisted conversation context for a user.
// A missing user or missing context yields an empty context, not an error.
func (s *SQLiteStore) LoadContext(userID int64) (*model.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ctxJSON sql.NullString
	err := s.db.QueryRow(
		`SELECT context FROM users WHERE id = ?`, userID,
	).Scan(&ctxJSON)
	if err == sql.ErrNoRows {
		return model.NewContext(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load context: %w", err)
	}
	return unmarshalContextOrEmpty(ctxJSON)
}

// SaveContext upserts the conversation context for a user, creating a bare
// user row if none exists yet.
func (s *SQLiteStore) SaveContext(userID int64, ctx *model.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctxJSON, err := marshalContext(ctx)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`UPDATE users SET context = ? WHERE id = ?`, ctxJSON, userID)
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	if affected == 0 {
		_, err = s.db.Exec(`INSERT INTO users (id, context) VALUES (?, ?)`, userID, ctxJSON)
		if err != nil {
			return fmt.Errorf("failed to save context: %w", err)
		}
	}
	return nil
}

// InsertTable stores a new table and returns its generated ID.
func (s *SQLiteStore) InsertTable(t *model.Table) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO tables (user_id, table_name) VALUES (?, ?)`,
		t.UserID, t.Name,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert table: %w", err)
	}
	return res.LastInsertId()
}

// GetTable retrieves a table by ID.
func (s *SQLiteStore) GetTable(id int64) (*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &model.Table{ID: id}
	err := s.db.QueryRow(
		`SELECT user_id, table_name FROM tables WHERE id = ?`, id,
	).Scan(&t.UserID, &t.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query table: %w", err)
	}
	return t, nil
}

// UpdateTable applies the non-nil patch fields to a table.
func (s *SQLiteStore) UpdateTable(id int64, patch model.TablePatch) error {
	if patch.Name == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tables SET table_name = ? WHERE id = ?`, *patch.Name, id)
	if err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}
	return noRecordIfZero(res)
}

// DeleteTable removes a table. Dependent columns are not touched.
func (s *SQLiteStore) DeleteTable(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM tables WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}
	return noRecordIfZero(res)
}

// ListTables returns every table ordered by ID.
func (s *SQLiteStore) ListTables() ([]*model.Table, error) {
	return s.queryTables(`SELECT id, user_id, table_name FROM tables ORDER BY id`)
}

// ListTablesByUser returns the tables owned by one user, ordered by ID.
func (s *SQLiteStore) ListTablesByUser(userID int64) ([]*model.Table, error) {
	return s.queryTables(`SELECT id, user_id, table_name FROM tables WHERE user_id = ? ORDER BY id`, userID)
}

func (s *SQLiteStore) queryTables(query string, args ...any) ([]*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []*model.Table
	for rows.Next() {
		t := &model.Table{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// CountTableName counts tables with the given name owned by one user.
func (s *SQLiteStore) CountTableName(userID int64, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tables WHERE user_id = ? AND table_name = ?`,
		userID, name,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count table names: %w", err)
	}
	return count, nil
}

// InsertColumn stores a new column and returns its generated ID.
func (s *SQLiteStore) InsertColumn(c *model.Column) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO columns (table_id, column_name, type) VALUES (?, ?, ?)`,
		c.TableID, c.Name, c.Type,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert column: %w", err)
	}
	return res.LastInsertId()
}

// GetColumn retrieves a column by ID.
func (s *SQLiteStore) GetColumn(id int64) (*model.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &model.Column{ID: id}
	err := s.db.QueryRow(
		`SELECT table_id, column_name, type FROM columns WHERE id = ?`, id,
	).Scan(&c.TableID, &c.Name, &c.Type)
	if err == sql.ErrNoRows {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query column: %w", err)
	}
	return c, nil
}

// UpdateColumn applies the non-nil patch fields to a column.
func (s *SQLiteStore) UpdateColumn(id int64, patch model.ColumnPatch) error {
	if patch.Name == nil && patch.Type == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE columns SET `
	args := make([]any, 0, 3)
	if patch.Name != nil {
		query += `column_name = ?`
		args = append(args, *patch.Name)
	}
	if patch.Type != nil {
		if len(args) > 0 {
			query += `, `
		}
		query += `type = ?`
		args = append(args, *patch.Type)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update column: %w", err)
	}
	return noRecordIfZero(res)
}

// DeleteColumn removes a column. Dependent cells are not touched.
func (s *SQLiteStore) DeleteColumn(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM columns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}
	return noRecordIfZero(res)
}

// ListColumns returns every column ordered by ID.
func (s *SQLiteStore) ListColumns() ([]*model.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, table_id, column_name, type FROM columns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	var columns []*model.Column
	for rows.Next() {
		c := &model.Column{}
		if err := rows.Scan(&c.ID, &c.TableID, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// CountColumnName counts columns with the given name inside one table.
func (s *SQLiteStore) CountColumnName(tableID int64, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM columns WHERE table_id = ? AND column_name = ?`,
		tableID, name,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count column names: %w", err)
	}
	return count, nil
}

// UpsertCell stores a cell value, replacing any existing value at the same
// (row, column) coordinates.
func (s *SQLiteStore) UpsertCell(c *model.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO data (row_id, column_id, data) VALUES (?, ?, ?)`,
		c.RowID, c.ColumnID, c.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cell: %w", err)
	}
	return nil
}

// GetCell retrieves a cell by its composite key.
func (s *SQLiteStore) GetCell(rowID, columnID int64) (*model.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &model.Cell{RowID: rowID, ColumnID: columnID}
	err := s.db.QueryRow(
		`SELECT data FROM data WHERE row_id = ? AND column_id = ?`,
		rowID, columnID,
	).Scan(&c.Value)
	if err == sql.ErrNoRows {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cell: %w", err)
	}
	return c, nil
}

// UpdateCell replaces the value of an existing cell.
func (s *SQLiteStore) UpdateCell(rowID, columnID int64, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE data SET data = ? WHERE row_id = ? AND column_id = ?`,
		value, rowID, columnID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cell: %w", err)
	}
	return noRecordIfZero(res)
}

// DeleteCell removes a cell by its composite key.
func (s *SQLiteStore) DeleteCell(rowID, columnID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM data WHERE row_id = ? AND column_id = ?`,
		rowID, columnID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cell: %w", err)
	}
	return noRecordIfZero(res)
}

// ListCells returns every cell ordered by (row, column).
func (s *SQLiteStore) ListCells() ([]*model.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT row_id, column_id, data FROM data ORDER BY row_id, column_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	defer rows.Close()

	var cells []*model.Cell
	for rows.Next() {
		c := &model.Cell{}
		if err := rows.Scan(&c.RowID, &c.ColumnID, &c.Value); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// noRecordIfZero converts a zero-row result into ErrNoRecord.
func noRecordIfZero(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRecord
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalContext(ctx *model.Context) (string, error) {
	if ctx == nil {
		ctx = model.NewContext()
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}
	return string(data), nil
}

func unmarshalContext(raw sql.NullString) (*model.Context, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	ctx := &model.Context{}
	if err := json.Unmarshal([]byte(raw.String), ctx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}
	return ctx, nil
}

func unmarshalContextOrEmpty(raw sql.NullString) (*model.Context, error) {
	ctx, err := unmarshalContext(raw)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		return model.NewContext(), nil
	}
	return ctx, nil
}
