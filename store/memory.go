package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dkoval/tabletalk/model"
)

// MemoryStore is an in-memory implementation of Store, used as the default
// fallback and for tests.
type MemoryStore struct {
	mu sync.RWMutex

	users   map[int64]*model.User
	tables  map[int64]*model.Table
	columns map[int64]*model.Column
	cells   map[cellKey]*model.Cell

	nextTableID  int64
	nextColumnID int64
}

type cellKey struct {
	rowID    int64
	columnID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]*model.User),
		tables:  make(map[int64]*model.Table),
		columns: make(map[int64]*model.Column),
		cells:   make(map[cellKey]*model.Cell),
	}
}

// CreateUser stores a new user. The ID must be supplied by the caller.
func (s *MemoryStore) CreateUser(u *model.User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user already exists: %d", u.ID)
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// GetUser retrieves a user by ID.
func (s *MemoryStore) GetUser(id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNoRecord
	}
	cp := *u
	return &cp, nil
}

// CountUsername counts users carrying the given username.
func (s *MemoryStore) CountUsername(username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, u := range s.users {
		if u.Username != "" && u.Username == username {
			count++
		}
	}
	return count, nil
}

// ListUsers returns all users ordered by ID.
func (s *MemoryStore) ListUsers() ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// LoadContext returns the persisted conversation context for a user.
// A missing user or missing context yields an empty context, not an error.
func (s *MemoryStore) LoadContext(userID int64) (*model.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok || u.Context == nil {
		return model.NewContext(), nil
	}
	cp := model.Context{History: append([]model.Turn(nil), u.Context.History...)}
	return &cp, nil
}

// SaveContext upserts the conversation context for a user, creating a bare
// user entry if none exists yet.
func (s *MemoryStore) SaveContext(userID int64, ctx *model.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := model.Context{History: append([]model.Turn(nil), ctx.History...)}
	if u, ok := s.users[userID]; ok {
		u.Context = &cp
		return nil
	}
	s.users[userID] = &model.User{ID: userID, Context: &cp}
	return nil
}

// InsertTable stores a new table and returns its generated ID.
func (s *MemoryStore) InsertTable(t *model.Table) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTableID++
	cp := *t
	cp.ID = s.nextTableID
	s.tables[cp.ID] = &cp
	return cp.ID, nil
}

// GetTable retrieves a table by ID.
func (s *MemoryStore) GetTable(id int64) (*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[id]
	if !ok {
		return nil, ErrNoRecord
	}
	cp := *t
	return &cp, nil
}

// UpdateTable applies the non-nil patch fields to a table.
func (s *MemoryStore) UpdateTable(id int64, patch model.TablePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[id]
	if !ok {
		return ErrNoRecord
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	return nil
}

// DeleteTable removes a table. Dependent columns are not touched.
func (s *MemoryStore) DeleteTable(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[id]; !ok {
		return ErrNoRecord
	}
	delete(s.tables, id)
	return nil
}

// ListTables returns every table ordered by ID.
func (s *MemoryStore) ListTables() ([]*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := make([]*model.Table, 0, len(s.tables))
	for _, t := range s.tables {
		cp := *t
		tables = append(tables, &cp)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
	return tables, nil
}

// ListTablesByUser returns the tables owned by one user, ordered by ID.
func (s *MemoryStore) ListTablesByUser(userID int64) ([]*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := make([]*model.Table, 0)
	for _, t := range s.tables {
		if t.UserID == userID {
			cp := *t
			tables = append(tables, &cp)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
	return tables, nil
}

// CountTableName counts tables with the given name owned by one user.
func (s *MemoryStore) CountTableName(userID int64, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.tables {
		if t.UserID == userID && t.Name == name {
			count++
		}
	}
	return count, nil
}

// InsertColumn stores a new column and returns its generated ID.
func (s *MemoryStore) InsertColumn(c *model.Column) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextColumnID++
	cp := *c
	cp.ID = s.nextColumnID
	s.columns[cp.ID] = &cp
	return cp.ID, nil
}

// GetColumn retrieves a column by ID.
func (s *MemoryStore) GetColumn(id int64) (*model.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.columns[id]
	if !ok {
		return nil, ErrNoRecord
	}
	cp := *c
	return &cp, nil
}

// UpdateColumn applies the non-nil patch fields to a column.
func (s *MemoryStore) UpdateColumn(id int64, patch model.ColumnPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.columns[id]
	if !ok {
		return ErrNoRecord
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	return nil
}

// DeleteColumn removes a column. Dependent cells are not touched.
func (s *MemoryStore) DeleteColumn(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.columns[id]; !ok {
		return ErrNoRecord
	}
	delete(s.columns, id)
	return nil
}

// ListColumns returns every column ordered by ID.
func (s *MemoryStore) ListColumns() ([]*model.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	columns := make([]*model.Column, 0, len(s.columns))
	for _, c := range s.columns {
		cp := *c
		columns = append(columns, &cp)
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i].ID < columns[j].ID })
	return columns, nil
}

// CountColumnName counts columns with the given name inside one table.
func (s *MemoryStore) CountColumnName(tableID int64, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.columns {
		if c.TableID == tableID && c.Name == name {
			count++
		}
	}
	return count, nil
}

// UpsertCell stores a cell value, replacing any existing value at the same
// (row, column) coordinates.
func (s *MemoryStore) UpsertCell(c *model.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.cells[cellKey{c.RowID, c.ColumnID}] = &cp
	return nil
}

// GetCell retrieves a cell by its composite key.
func (s *MemoryStore) GetCell(rowID, columnID int64) (*model.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cells[cellKey{rowID, columnID}]
	if !ok {
		return nil, ErrNoRecord
	}
	cp := *c
	return &cp, nil
}

// UpdateCell replaces the value of an existing cell.
func (s *MemoryStore) UpdateCell(rowID, columnID int64, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[cellKey{rowID, columnID}]
	if !ok {
		return ErrNoRecord
	}
	c.Value = value
	return nil
}

// DeleteCell removes a cell by its composite key.
func (s *MemoryStore) DeleteCell(rowID, columnID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cellKey{rowID, columnID}
	if _, ok := s.cells[key]; !ok {
		return ErrNoRecord
	}
	delete(s.cells, key)
	return nil
}

// ListCells returns every cell ordered by (row, column).
func (s *MemoryStore) ListCells() ([]*model.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cells := make([]*model.Cell, 0, len(s.cells))
	for _, c := range s.cells {
		cp := *c
		cells = append(cells, &cp)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].RowID != cells[j].RowID {
			return cells[i].RowID < cells[j].RowID
		}
		return cells[i].ColumnID < cells[j].ColumnID
	})
	return cells, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
