package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dkoval/tabletalk/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteUserRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.CreateUser(&model.User{ID: 42, Username: "alice"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	u, err := s.GetUser(42)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("expected username alice, got %q", u.Username)
	}

	count, err := s.CountUsername("alice")
	if err != nil {
		t.Fatalf("CountUsername failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	if _, err := s.GetUser(99); !errors.Is(err, ErrNoRecord) {
		t.Errorf("expected ErrNoRecord for missing user, got %v", err)
	}
}

func TestSQLiteContextUpsertCreatesBareUser(t *testing.T) {
	s := newTestSQLiteStore(t)

	ctx := model.NewContext()
	ctx.Append(model.RoleUser, "hello")
	if err := s.SaveContext(7, ctx); err != nil {
		t.Fatalf("SaveContext failed: %v", err)
	}

	loaded, err := s.LoadContext(7)
	if err != nil {
		t.Fatalf("LoadContext failed: %v", err)
	}
	if len(loaded.History) != 1 || loaded.History[0].Content != "hello" {
		t.Errorf("unexpected history: %+v", loaded.History)
	}

	// The bare user row must exist and carry no username
	u, err := s.GetUser(7)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.Username != "" {
		t.Errorf("bare user should have empty username, got %q", u.Username)
	}
}

func TestSQLiteLoadContextMissingUser(t *testing.T) {
	s := newTestSQLiteStore(t)

	ctx, err := s.LoadContext(123)
	if err != nil {
		t.Fatalf("LoadContext failed: %v", err)
	}
	if len(ctx.History) != 0 {
		t.Errorf("expected empty context, got %d turns", len(ctx.History))
	}
}

func TestSQLiteMultipleBareUsersAllowed(t *testing.T) {
	s := newTestSQLiteStore(t)

	// Context-only users carry no username; the unique index must not
	// collide on them.
	if err := s.SaveContext(1, model.NewContext()); err != nil {
		t.Fatalf("first SaveContext failed: %v", err)
	}
	if err := s.SaveContext(2, model.NewContext()); err != nil {
		t.Fatalf("second SaveContext failed: %v", err)
	}
}

func TestSQLiteTableLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)

	id, err := s.InsertTable(&model.Table{UserID: 1, Name: "budget"})
	if err != nil {
		t.Fatalf("InsertTable failed: %v", err)
	}

	tbl, err := s.GetTable(id)
	if err != nil {
		t.Fatalf("GetTable failed: %v", err)
	}
	if tbl.Name != "budget" || tbl.UserID != 1 {
		t.Errorf("unexpected table: %+v", tbl)
	}

	newName := "expenses"
	if err := s.UpdateTable(id, model.TablePatch{Name: &newName}); err != nil {
		t.Fatalf("UpdateTable failed: %v", err)
	}
	tbl, _ = s.GetTable(id)
	if tbl.Name != "expenses" {
		t.Errorf("expected renamed table, got %q", tbl.Name)
	}

	count, err := s.CountTableName(1, "expenses")
	if err != nil {
		t.Fatalf("CountTableName failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	if err := s.DeleteTable(id); err != nil {
		t.Fatalf("DeleteTable failed: %v", err)
	}
	if _, err := s.GetTable(id); !errors.Is(err, ErrNoRecord) {
		t.Errorf("expected ErrNoRecord after delete, got %v", err)
	}
	if err := s.DeleteTable(id); !errors.Is(err, ErrNoRecord) {
		t.Errorf("expected ErrNoRecord for double delete, got %v", err)
	}
}

func TestSQLiteListTablesByUser(t *testing.T) {
	s := newTestSQLiteStore(t)

	s.InsertTable(&model.Table{UserID: 1, Name: "a"})
	s.InsertTable(&model.Table{UserID: 2, Name: "b"})
	s.InsertTable(&model.Table{UserID: 1, Name: "c"})

	tables, err := s.ListTablesByUser(1)
	if err != nil {
		t.Fatalf("ListTablesByUser failed: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0].Name != "a" || tables[1].Name != "c" {
		t.Errorf("unexpected order: %+v", tables)
	}
}

func TestSQLiteColumnPartialPatch(t *testing.T) {
	s := newTestSQLiteStore(t)

	tblID, _ := s.InsertTable(&model.Table{UserID: 1, Name: "t"})
	id, err := s.InsertColumn(&model.Column{TableID: tblID, Name: "amount", Type: "INTEGER"})
	if err != nil {
		t.Fatalf("InsertColumn failed: %v", err)
	}

	newType := "TEXT"
	if err := s.UpdateColumn(id, model.ColumnPatch{Type: &newType}); err != nil {
		t.Fatalf("UpdateColumn failed: %v", err)
	}

	c, err := s.GetColumn(id)
	if err != nil {
		t.Fatalf("GetColumn failed: %v", err)
	}
	if c.Name != "amount" || c.Type != "TEXT" {
		t.Errorf("partial patch touched the wrong fields: %+v", c)
	}
}

func TestSQLiteCellUpsert(t *testing.T) {
	s := newTestSQLiteStore(t)

	tblID, _ := s.InsertTable(&model.Table{UserID: 1, Name: "t"})
	colID, _ := s.InsertColumn(&model.Column{TableID: tblID, Name: "c", Type: "TEXT"})

	if err := s.UpsertCell(&model.Cell{RowID: 1, ColumnID: colID, Value: "first"}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := s.UpsertCell(&model.Cell{RowID: 1, ColumnID: colID, Value: "second"}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	cells, err := s.ListCells()
	if err != nil {
		t.Fatalf("ListCells failed: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell after upsert, got %d", len(cells))
	}
	if cells[0].Value != "second" {
		t.Errorf("expected replaced value, got %q", cells[0].Value)
	}
}

func TestSQLiteInMemoryPath(t *testing.T) {
	s, err := NewSQLiteStore("")
	if err != nil {
		t.Fatalf("failed to create in-memory store: %v", err)
	}
	defer s.Close()

	if _, err := s.InsertTable(&model.Table{UserID: 1, Name: "t"}); err != nil {
		t.Errorf("insert on in-memory store failed: %v", err)
	}
}
