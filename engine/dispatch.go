package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkoval/tabletalk/crud"
	"github.com/dkoval/tabletalk/log"
	"github.com/dkoval/tabletalk/model"
)

// Op is an enumerated tool operation. Names coming off the wire are parsed
// once; anything unrecognized maps to OpUnknown instead of failing a lookup.
type Op int

const (
	OpUnknown Op = iota
	OpCreateTable
	OpGetTable
	OpUpdateTable
	OpDeleteTable
	OpCreateColumn
	OpGetColumn
	OpUpdateColumn
	OpDeleteColumn
	OpCreateCell
	OpGetCell
	OpUpdateCell
	OpDeleteCell
	OpListRecords
	OpListRecordsWithFilters
	OpTaskEnd
)

var opNames = map[string]Op{
	"create_table":              OpCreateTable,
	"get_table":                 OpGetTable,
	"update_table":              OpUpdateTable,
	"delete_table":              OpDeleteTable,
	"create_column":             OpCreateColumn,
	"get_column":                OpGetColumn,
	"update_column":             OpUpdateColumn,
	"delete_column":             OpDeleteColumn,
	"create_cell":               OpCreateCell,
	"get_cell":                  OpGetCell,
	"update_cell":               OpUpdateCell,
	"delete_cell":               OpDeleteCell,
	"list_records":              OpListRecords,
	"list_records_with_filters": OpListRecordsWithFilters,
	"task_end":                  OpTaskEnd,
}

// ParseOp maps a tool name to its Op. Unknown names yield OpUnknown.
func ParseOp(name string) Op {
	if op, ok := opNames[name]; ok {
		return op
	}
	return OpUnknown
}

// String returns the wire name of the operation.
func (op Op) String() string {
	for name, o := range opNames {
		if o == op {
			return name
		}
	}
	return "unknown"
}

// Fixed status strings surfaced to the model.
const (
	msgNotFound         = "not found"
	msgUpdated          = "updated"
	msgDeleted          = "deleted"
	msgUnknownOperation = "unknown operation"
	msgTaskEnd          = "Task completed."
)

// Dispatcher maps parsed operations onto CRUD engine calls and folds the
// outcomes into short status strings. It never returns an error to the
// loop; every failure becomes text the model can react to.
type Dispatcher struct {
	engine *crud.Engine
}

// NewDispatcher creates a dispatcher over the given CRUD engine.
func NewDispatcher(e *crud.Engine) *Dispatcher {
	return &Dispatcher{engine: e}
}

// Dispatch executes one operation for ownerID. The returned bool reports
// whether the conversation loop should keep going: only task_end stops it,
// every other outcome (success or failure) requests another iteration.
func (d *Dispatcher) Dispatch(op Op, args map[string]any, ownerID int64) (bool, string) {
	switch op {
	case OpCreateTable:
		name, ok := stringArg(args, "table_name")
		if !ok {
			return true, "missing argument: table_name"
		}
		id, err := d.engine.CreateTable(ownerID, name)
		if err != nil {
			return true, statusText(err)
		}
		return true, fmt.Sprintf("table created with id %d", id)

	case OpGetTable:
		id, ok := intArg(args, "table_id")
		if !ok {
			return true, "missing argument: table_id"
		}
		t, err := d.engine.GetTable(ownerID, id)
		if err != nil {
			return true, statusText(err)
		}
		return true, renderRecord(t.Fields())

	case OpUpdateTable:
		id, ok := intArg(args, "table_id")
		if !ok {
			return true, "missing argument: table_id"
		}
		name, ok := stringArg(args, "table_name")
		if !ok {
			return true, "missing argument: table_name"
		}
		if err := d.engine.UpdateTable(ownerID, id, model.TablePatch{Name: &name}); err != nil {
			return true, statusText(err)
		}
		return true, msgUpdated

	case OpDeleteTable:
		id, ok := intArg(args, "table_id")
		if !ok {
			return true, "missing argument: table_id"
		}
		if err := d.engine.DeleteTable(ownerID, id); err != nil {
			return true, statusText(err)
		}
		return true, msgDeleted

	case OpCreateColumn:
		tableID, ok := intArg(args, "table_id")
		if !ok {
			return true, "missing argument: table_id"
		}
		name, ok := stringArg(args, "column_name")
		if !ok {
			return true, "missing argument: column_name"
		}
		colType, _ := stringArg(args, "type")
		id, err := d.engine.CreateColumn(ownerID, tableID, name, colType)
		if err != nil {
			return true, statusText(err)
		}
		return true, fmt.Sprintf("column created with id %d", id)

	case OpGetColumn:
		id, ok := intArg(args, "column_id")
		if !ok {
			return true, "missing argument: column_id"
		}
		c, err := d.engine.GetColumn(ownerID, id)
		if err != nil {
			return true, statusText(err)
		}
		return true, renderRecord(c.Fields())

	case OpUpdateColumn:
		id, ok := intArg(args, "column_id")
		if !ok {
			return true, "missing argument: column_id"
		}
		patch := model.ColumnPatch{}
		if name, ok := stringArg(args, "column_name"); ok {
			patch.Name = &name
		}
		if colType, ok := stringArg(args, "type"); ok {
			patch.Type = &colType
		}
		if err := d.engine.UpdateColumn(ownerID, id, patch); err != nil {
			return true, statusText(err)
		}
		return true, msgUpdated

	case OpDeleteColumn:
		id, ok := intArg(args, "column_id")
		if !ok {
			return true, "missing argument: column_id"
		}
		if err := d.engine.DeleteColumn(ownerID, id); err != nil {
			return true, statusText(err)
		}
		return true, msgDeleted

	case OpCreateCell:
		columnID, ok := intArg(args, "column_id")
		if !ok {
			return true, "missing argument: column_id"
		}
		rowID, ok := intArg(args, "row_id")
		if !ok {
			return true, "missing argument: row_id"
		}
		value, _ := stringArg(args, "data")
		if err := d.engine.CreateCell(ownerID, rowID, columnID, value); err != nil {
			return true, statusText(err)
		}
		return true, fmt.Sprintf("cell stored at row %d, column %d", rowID, columnID)

	case OpGetCell:
		columnID, ok := intArg(args, "column_id")
		if !ok {
			return true, "missing argument: column_id"
		}
		rowID, ok := intArg(args, "row_id")
		if !ok {
			return true, "missing argument: row_id"
		}
		c, err := d.engine.GetCell(ownerID, rowID, columnID)
		if err != nil {
			return true, statusText(err)
		}
		return true, renderRecord(c.Fields())

	case OpUpdateCell:
		columnID, ok := intArg(args, "column_id")
		if !ok {
			return true, "missing argument: column_id"
		}
		rowID, ok := intArg(args, "row_id")
		if !ok {
			return true, "missing argument: row_id"
		}
		value, _ := stringArg(args, "data")
		if err := d.engine.UpdateCell(ownerID, rowID, columnID, value); err != nil {
			return true, statusText(err)
		}
		return true, msgUpdated

	case OpDeleteCell:
		columnID, ok := intArg(args, "column_id")
		if !ok {
			return true, "missing argument: column_id"
		}
		rowID, ok := intArg(args, "row_id")
		if !ok {
			return true, "missing argument: row_id"
		}
		if err := d.engine.DeleteCell(ownerID, rowID, columnID); err != nil {
			return true, statusText(err)
		}
		return true, msgDeleted

	case OpListRecords:
		target, ok := stringArg(args, "target")
		if !ok {
			return true, "missing argument: target"
		}
		kind, ok := model.ParseKind(target)
		if !ok {
			return true, fmt.Sprintf("unknown target kind: %s", target)
		}
		records, err := d.engine.List(kind, ownerID)
		if err != nil {
			return true, statusText(err)
		}
		return true, renderRecords(records)

	case OpListRecordsWithFilters:
		target, ok := stringArg(args, "target")
		if !ok {
			return true, "missing argument: target"
		}
		kind, ok := model.ParseKind(target)
		if !ok {
			return true, fmt.Sprintf("unknown target kind: %s", target)
		}
		filters, _ := args["filters"].(map[string]any)
		records, err := d.engine.ListFiltered(kind, ownerID, filters)
		if err != nil {
			return true, statusText(err)
		}
		return true, renderRecords(records)

	case OpTaskEnd:
		return false, msgTaskEnd
	}

	return true, msgUnknownOperation
}

// statusText folds engine outcomes into the short strings the model sees.
// Conflicts name the offending value; everything else that is not-found or
// not-owned collapses into one message.
func statusText(err error) string {
	if errors.Is(err, crud.ErrNotFound) {
		return msgNotFound
	}
	if crud.IsConflict(err) {
		return err.Error()
	}
	if errors.Is(err, crud.ErrUnknownKind) {
		return "unknown target kind"
	}
	log.Log.Errorf("[Dispatcher] operation failed: %v", err)
	return fmt.Sprintf("operation failed: %v", err)
}

func renderRecord(rec model.Record) string {
	data, err := json.Marshal(rec)
	if err != nil {
		return msgNotFound
	}
	return string(data)
}

func renderRecords(records []model.Record) string {
	if len(records) == 0 {
		return "no records"
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "no records"
	}
	return string(data)
}

// intArg extracts an integer argument. JSON decoding hands numbers over as
// float64, so both forms are accepted.
func intArg(args map[string]any, key string) (int64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
