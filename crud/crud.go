package crud

import (
	"errors"
	"fmt"

	"github.com/dkoval/tabletalk/model"
	"github.com/dkoval/tabletalk/store"
)

// Engine implements ownership-checked, uniqueness-checked operations over the
// entity hierarchy User → Table → Column → Cell. Every mutating or reading
// operation on a table, column or cell takes the acting user's ID and fails
// with ErrNotFound unless the record exists and sits under that user in the
// ownership chain.
type Engine struct {
	store store.Store
}

// NewEngine creates a CRUD engine over the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// owns reports whether the record of the given kind belongs to ownerID.
// Columns resolve through their parent table; tables compare their owner
// field directly. The chain has fixed depth, so one hop is all it takes.
// Dangling references resolve to false rather than erroring.
func (e *Engine) owns(kind model.Kind, id int64, ownerID int64) (bool, error) {
	switch kind {
	case model.KindColumn:
		c, err := e.store.GetColumn(id)
		if errors.Is(err, store.ErrNoRecord) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return e.owns(model.KindTable, c.TableID, ownerID)
	case model.KindTable:
		t, err := e.store.GetTable(id)
		if errors.Is(err, store.ErrNoRecord) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return t.UserID == ownerID, nil
	}
	return false, nil
}

// CreateUser registers a new user with a globally unique username.
func (e *Engine) CreateUser(id int64, username string) error {
	count, err := e.store.CountUsername(username)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return &ConflictError{Field: "username", Value: username}
	}
	return e.store.CreateUser(&model.User{ID: id, Username: username})
}

// GetUser retrieves a user by ID.
func (e *Engine) GetUser(id int64) (*model.User, error) {
	u, err := e.store.GetUser(id)
	if errors.Is(err, store.ErrNoRecord) {
		return nil, ErrNotFound
	}
	return u, err
}

// CreateTable creates a table owned by ownerID. The name must be unique
// among that user's tables. Returns the new table ID.
func (e *Engine) CreateTable(ownerID int64, name string) (int64, error) {
	count, err := e.store.CountTableName(ownerID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to check table name: %w", err)
	}
	if count > 0 {
		return 0, &ConflictError{Field: "table", Value: name}
	}
	return e.store.InsertTable(&model.Table{UserID: ownerID, Name: name})
}

// GetTable retrieves a table, filtering by ID and owner in one step.
func (e *Engine) GetTable(ownerID, id int64) (*model.Table, error) {
	t, err := e.store.GetTable(id)
	if errors.Is(err, store.ErrNoRecord) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.UserID != ownerID {
		return nil, ErrNotFound
	}
	return t, nil
}

// UpdateTable renames a table. Existence is checked before ownership; both
// failures surface as ErrNotFound. Uniqueness is not re-validated on update.
func (e *Engine) UpdateTable(ownerID, id int64, patch model.TablePatch) error {
	if _, err := e.store.GetTable(id); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}
	ok, err := e.owns(model.KindTable, id, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return e.store.UpdateTable(id, patch)
}

// DeleteTable removes a table. Columns under it are left in place,
// reachable only by ID.
func (e *Engine) DeleteTable(ownerID, id int64) error {
	if _, err := e.store.GetTable(id); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}
	ok, err := e.owns(model.KindTable, id, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return e.store.DeleteTable(id)
}

// CreateColumn creates a column in a table the owner controls. The name must
// be unique within the table. Returns the new column ID.
func (e *Engine) CreateColumn(ownerID, tableID int64, name, colType string) (int64, error) {
	ok, err := e.owns(model.KindTable, tableID, ownerID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	count, err := e.store.CountColumnName(tableID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to check column name: %w", err)
	}
	if count > 0 {
		return 0, &ConflictError{Field: "column", Value: name}
	}
	return e.store.InsertColumn(&model.Column{TableID: tableID, Name: name, Type: colType})
}

// GetColumn retrieves a column after confirming the ownership chain.
func (e *Engine) GetColumn(ownerID, id int64) (*model.Column, error) {
	c, err := e.store.GetColumn(id)
	if errors.Is(err, store.ErrNoRecord) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ok, err := e.owns(model.KindColumn, id, ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// UpdateColumn applies the patch to a column. Existence is checked before
// ownership. Uniqueness is not re-validated on update.
func (e *Engine) UpdateColumn(ownerID, id int64, patch model.ColumnPatch) error {
	if _, err := e.store.GetColumn(id); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}
	ok, err := e.owns(model.KindColumn, id, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return e.store.UpdateColumn(id, patch)
}

// DeleteColumn removes a column. Cells under it are left in place.
func (e *Engine) DeleteColumn(ownerID, id int64) error {
	if _, err := e.store.GetColumn(id); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}
	ok, err := e.owns(model.KindColumn, id, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return e.store.DeleteColumn(id)
}

// CreateCell writes a value at (rowID, columnID) under a column the owner
// controls. A second write to the same coordinates replaces the value; the
// composite key is the cell's identity, so no surrogate ID is returned.
func (e *Engine) CreateCell(ownerID, rowID, columnID int64, value string) error {
	ok, err := e.owns(model.KindColumn, columnID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return e.store.UpsertCell(&model.Cell{RowID: rowID, ColumnID: columnID, Value: value})
}

// GetCell retrieves the value at (rowID, columnID) after confirming the
// ownership chain on the column.
func (e *Engine) GetCell(ownerID, rowID, columnID int64) (*model.Cell, error) {
	ok, err := e.owns(model.KindColumn, columnID, ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	c, err := e.store.GetCell(rowID, columnID)
	if errors.Is(err, store.ErrNoRecord) {
		return nil, ErrNotFound
	}
	return c, err
}

// UpdateCell replaces the value of an existing cell. Existence is checked
// before ownership.
func (e *Engine) UpdateCell(ownerID, rowID, columnID int64, value string) error {
	if _, err := e.store.GetCell(rowID, columnID); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}
	ok, err := e.owns(model.KindColumn, columnID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return e.store.UpdateCell(rowID, columnID, value)
}

// DeleteCell removes a cell. Existence is checked before ownership.
func (e *Engine) DeleteCell(ownerID, rowID, columnID int64) error {
	if _, err := e.store.GetCell(rowID, columnID); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}
	ok, err := e.owns(model.KindColumn, columnID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return e.store.DeleteCell(rowID, columnID)
}

// List returns all records of the given kind as generic field bags.
// Tables are scoped to the owner; users, columns and cells have no direct
// owner field and are returned unscoped. Callers narrow those with filters.
func (e *Engine) List(kind model.Kind, ownerID int64) ([]model.Record, error) {
	switch kind {
	case model.KindUser:
		users, err := e.store.ListUsers()
		if err != nil {
			return nil, err
		}
		records := make([]model.Record, 0, len(users))
		for _, u := range users {
			records = append(records, u.Fields())
		}
		return records, nil
	case model.KindTable:
		tables, err := e.store.ListTablesByUser(ownerID)
		if err != nil {
			return nil, err
		}
		records := make([]model.Record, 0, len(tables))
		for _, t := range tables {
			records = append(records, t.Fields())
		}
		return records, nil
	case model.KindColumn:
		columns, err := e.store.ListColumns()
		if err != nil {
			return nil, err
		}
		records := make([]model.Record, 0, len(columns))
		for _, c := range columns {
			records = append(records, c.Fields())
		}
		return records, nil
	case model.KindCell:
		cells, err := e.store.ListCells()
		if err != nil {
			return nil, err
		}
		records := make([]model.Record, 0, len(cells))
		for _, c := range cells {
			records = append(records, c.Fields())
		}
		return records, nil
	}
	return nil, ErrUnknownKind
}

// ListFiltered lists records of the given kind and applies the filter
// mapping in memory. Volumes are per-tenant and small, so a post-filter
// over the full list is fine.
func (e *Engine) ListFiltered(kind model.Kind, ownerID int64, filters map[string]any) ([]model.Record, error) {
	records, err := e.List(kind, ownerID)
	if err != nil {
		return nil, err
	}
	return ApplyFilters(records, filters), nil
}
