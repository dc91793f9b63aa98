package crud

import (
	"errors"
	"testing"

	"github.com/dkoval/tabletalk/model"
	"github.com/dkoval/tabletalk/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(store.NewMemoryStore())
}

func TestCreateTableSameNameDistinctUsers(t *testing.T) {
	e := newTestEngine(t)

	id1, err := e.CreateTable(1, "expenses")
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	id2, err := e.CreateTable(2, "expenses")
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if id1 == id2 {
		t.Errorf("expected distinct table IDs, got %d twice", id1)
	}
}

func TestCreateTableDuplicateNameSameUser(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.CreateTable(1, "expenses"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := e.CreateTable(1, "expenses")
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	records, err := e.List(model.KindTable, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 table after rejected duplicate, got %d", len(records))
	}
}

func TestCreateColumnDuplicateNameScopedToTable(t *testing.T) {
	e := newTestEngine(t)

	tbl1, _ := e.CreateTable(1, "a")
	tbl2, _ := e.CreateTable(1, "b")

	if _, err := e.CreateColumn(1, tbl1, "amount", "INTEGER"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := e.CreateColumn(1, tbl1, "amount", "INTEGER"); !IsConflict(err) {
		t.Fatalf("expected conflict for duplicate name in same table, got %v", err)
	}
	if _, err := e.CreateColumn(1, tbl2, "amount", "INTEGER"); err != nil {
		t.Errorf("same name in a different table should succeed, got %v", err)
	}
}

func TestCellWriteUpsertsOnCompositeKey(t *testing.T) {
	e := newTestEngine(t)

	tbl, _ := e.CreateTable(1, "a")
	col, _ := e.CreateColumn(1, tbl, "amount", "INTEGER")

	if err := e.CreateCell(1, 1, col, "10"); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := e.CreateCell(1, 1, col, "20"); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	cells, err := e.List(model.KindCell, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell after repeated write, got %d", len(cells))
	}
	if cells[0]["data"] != "20" {
		t.Errorf("expected updated value %q, got %v", "20", cells[0]["data"])
	}
}

func TestOwnershipMismatchReportsNotFound(t *testing.T) {
	e := newTestEngine(t)

	tbl, _ := e.CreateTable(1, "private")
	col, _ := e.CreateColumn(1, tbl, "secret", "TEXT")
	if err := e.CreateCell(1, 1, col, "v"); err != nil {
		t.Fatalf("cell create failed: %v", err)
	}

	newName := "stolen"
	attempts := []struct {
		name string
		err  error
	}{
		{"get table", func() error { _, err := e.GetTable(2, tbl); return err }()},
		{"update table", e.UpdateTable(2, tbl, model.TablePatch{Name: &newName})},
		{"delete table", e.DeleteTable(2, tbl)},
		{"get column", func() error { _, err := e.GetColumn(2, col); return err }()},
		{"delete column", e.DeleteColumn(2, col)},
		{"get cell", func() error { _, err := e.GetCell(2, 1, col); return err }()},
		{"update cell", e.UpdateCell(2, 1, col, "x")},
		{"delete cell", e.DeleteCell(2, 1, col)},
	}
	for _, a := range attempts {
		if !errors.Is(a.err, ErrNotFound) {
			t.Errorf("%s by non-owner: expected ErrNotFound, got %v", a.name, a.err)
		}
	}

	// Targets must be unchanged
	got, err := e.GetTable(1, tbl)
	if err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	if got.Name != "private" {
		t.Errorf("table was renamed by non-owner: %q", got.Name)
	}
	cell, err := e.GetCell(1, 1, col)
	if err != nil {
		t.Fatalf("owner cell read failed: %v", err)
	}
	if cell.Value != "v" {
		t.Errorf("cell was changed by non-owner: %q", cell.Value)
	}
}

func TestUpdateNonexistentTableNotFound(t *testing.T) {
	e := newTestEngine(t)

	name := "x"
	if err := e.UpdateTable(1, 99, model.TablePatch{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing table, got %v", err)
	}
	if err := e.DeleteCell(1, 1, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing cell, got %v", err)
	}
}

func TestCreateColumnInForeignTable(t *testing.T) {
	e := newTestEngine(t)

	tbl, _ := e.CreateTable(1, "a")
	if _, err := e.CreateColumn(2, tbl, "c", "TEXT"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for column in foreign table, got %v", err)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	e := newTestEngine(t)

	if err := e.CreateUser(1, "alice"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := e.CreateUser(2, "alice"); !IsConflict(err) {
		t.Errorf("expected conflict for duplicate username, got %v", err)
	}
}

func TestListTablesScopedToOwner(t *testing.T) {
	e := newTestEngine(t)

	e.CreateTable(1, "a")
	e.CreateTable(1, "b")
	e.CreateTable(2, "c")

	records, err := e.List(model.KindTable, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 tables for user 1, got %d", len(records))
	}
	for _, rec := range records {
		if rec["user_id"] != int64(1) {
			t.Errorf("foreign table leaked into list: %v", rec)
		}
	}
}

func TestListUnknownKind(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.List(model.Kind("Rows"), 1); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDeleteTableLeavesColumns(t *testing.T) {
	e := newTestEngine(t)

	tbl, _ := e.CreateTable(1, "a")
	col, _ := e.CreateColumn(1, tbl, "c", "TEXT")

	if err := e.DeleteTable(1, tbl); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// The column survives but its chain is dangling, so even the former
	// owner sees not-found.
	if _, err := e.GetColumn(1, col); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for orphaned column, got %v", err)
	}
	columns, err := e.List(model.KindColumn, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(columns) != 1 {
		t.Errorf("orphaned column should remain listed, got %d records", len(columns))
	}
}
