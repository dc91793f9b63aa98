package store

import (
	"errors"

	"github.com/dkoval/tabletalk/model"
)

// ErrNoRecord is returned by Get/Load operations when the requested record
// does not exist in the underlying storage.
var ErrNoRecord = errors.New("record not found")

// Store defines the persistence primitives consumed by the CRUD engine and
// the conversation orchestrator. Implementations enforce only storage-level
// constraints; ownership and uniqueness policy live in the crud package.
//
// Implemented by SQLiteStore, MongoStore and MemoryStore.
type Store interface {
	// Users. User IDs are externally supplied, never generated by the store.
	CreateUser(u *model.User) error
	GetUser(id int64) (*model.User, error)
	CountUsername(username string) (int, error)
	ListUsers() ([]*model.User, error)

	// Per-user conversation context. SaveContext upserts: if the user does
	// not exist yet, a bare user row is created to carry the context.
	LoadContext(userID int64) (*model.Context, error)
	SaveContext(userID int64, ctx *model.Context) error

	// Tables
	InsertTable(t *model.Table) (int64, error)
	GetTable(id int64) (*model.Table, error)
	UpdateTable(id int64, patch model.TablePatch) error
	DeleteTable(id int64) error
	ListTables() ([]*model.Table, error)
	ListTablesByUser(userID int64) ([]*model.Table, error)
	CountTableName(userID int64, name string) (int, error)

	// Columns
	InsertColumn(c *model.Column) (int64, error)
	GetColumn(id int64) (*model.Column, error)
	UpdateColumn(id int64, patch model.ColumnPatch) error
	DeleteColumn(id int64) error
	ListColumns() ([]*model.Column, error)
	CountColumnName(tableID int64, name string) (int, error)

	// Cells, addressed by the composite key (row, column). UpsertCell
	// replaces the value when the coordinates already exist.
	UpsertCell(c *model.Cell) error
	GetCell(rowID, columnID int64) (*model.Cell, error)
	UpdateCell(rowID, columnID int64, value string) error
	DeleteCell(rowID, columnID int64) error
	ListCells() ([]*model.Cell, error)

	Close() error
}
