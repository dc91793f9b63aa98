package model

// Kind identifies one of the persisted entity kinds.
type Kind string

const (
	KindUser   Kind = "Users"
	KindTable  Kind = "Tables"
	KindColumn Kind = "Columns"
	KindCell   Kind = "Data"
)

// ParseKind maps a wire name (as the model sends it in list_records calls)
// to a Kind. Unknown names return false.
func ParseKind(name string) (Kind, bool) {
	switch Kind(name) {
	case KindUser, KindTable, KindColumn, KindCell:
		return Kind(name), true
	}
	return "", false
}

// Record is a generic field-name → value bag used for list results and
// in-memory filtering. Values are int64 for identifiers and row indexes,
// string for everything else.
type Record map[string]any

// User represents a registered user. The ID is externally supplied
// (e.g. a chat platform account id), never generated here.
type User struct {
	ID       int64
	Username string
	Context  *Context
}

// Fields returns the record view of the user. The context blob is
// deliberately excluded: it is conversational state, not table data.
func (u *User) Fields() Record {
	return Record{
		"id":       u.ID,
		"username": u.Username,
	}
}

// Table is a user-owned collection of columns. (UserID, Name) is unique.
type Table struct {
	ID     int64
	UserID int64
	Name   string
}

func (t *Table) Fields() Record {
	return Record{
		"id":         t.ID,
		"user_id":    t.UserID,
		"table_name": t.Name,
	}
}

// Column belongs to a table. (TableID, Name) is unique. Type is a free-text
// label ("TEXT", "INTEGER", ...) and is not enforced against cell values.
type Column struct {
	ID      int64
	TableID int64
	Name    string
	Type    string
}

func (c *Column) Fields() Record {
	return Record{
		"id":          c.ID,
		"table_id":    c.TableID,
		"column_name": c.Name,
		"type":        c.Type,
	}
}

// Cell holds one value addressed by the composite key (RowID, ColumnID).
// There is no surrogate id.
type Cell struct {
	RowID    int64
	ColumnID int64
	Value    string
}

func (c *Cell) Fields() Record {
	return Record{
		"row_id":    c.RowID,
		"column_id": c.ColumnID,
		"data":      c.Value,
	}
}

// TablePatch carries the updatable fields of a table. Nil means "leave as is".
type TablePatch struct {
	Name *string
}

// ColumnPatch carries the updatable fields of a column.
type ColumnPatch struct {
	Name *string
	Type *string
}
