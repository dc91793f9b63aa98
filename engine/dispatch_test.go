package engine

import (
	"strings"
	"testing"

	"github.com/dkoval/tabletalk/crud"
	"github.com/dkoval/tabletalk/store"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(crud.NewEngine(store.NewMemoryStore()))
}

func TestParseOpUnknown(t *testing.T) {
	if op := ParseOp("drop_database"); op != OpUnknown {
		t.Errorf("expected OpUnknown, got %v", op)
	}
	if op := ParseOp("create_table"); op != OpCreateTable {
		t.Errorf("expected OpCreateTable, got %v", op)
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	d := newTestDispatcher()

	cont, result := d.Dispatch(OpUnknown, nil, 1)
	if !cont {
		t.Error("unknown operation must keep the loop running")
	}
	if result != msgUnknownOperation {
		t.Errorf("expected %q, got %q", msgUnknownOperation, result)
	}
}

func TestDispatchTaskEndStopsLoop(t *testing.T) {
	d := newTestDispatcher()

	cont, result := d.Dispatch(OpTaskEnd, nil, 1)
	if cont {
		t.Error("task_end must stop the loop")
	}
	if result != msgTaskEnd {
		t.Errorf("expected %q, got %q", msgTaskEnd, result)
	}
}

func TestDispatchCreateAndGetTable(t *testing.T) {
	d := newTestDispatcher()

	cont, result := d.Dispatch(OpCreateTable, map[string]any{"table_name": "budget"}, 1)
	if !cont {
		t.Error("create must keep the loop running")
	}
	if !strings.HasPrefix(result, "table created with id ") {
		t.Fatalf("unexpected create result: %q", result)
	}

	// JSON numbers arrive as float64
	_, result = d.Dispatch(OpGetTable, map[string]any{"table_id": float64(1)}, 1)
	if !strings.Contains(result, `"table_name":"budget"`) {
		t.Errorf("unexpected get result: %q", result)
	}
}

func TestDispatchConflictNamesValue(t *testing.T) {
	d := newTestDispatcher()

	d.Dispatch(OpCreateTable, map[string]any{"table_name": "budget"}, 1)
	cont, result := d.Dispatch(OpCreateTable, map[string]any{"table_name": "budget"}, 1)
	if !cont {
		t.Error("conflict must keep the loop running")
	}
	if !strings.Contains(result, "budget") || !strings.Contains(result, "already exists") {
		t.Errorf("conflict must name the offending value, got %q", result)
	}
}

func TestDispatchNotFoundOnForeignRecord(t *testing.T) {
	d := newTestDispatcher()

	d.Dispatch(OpCreateTable, map[string]any{"table_name": "private"}, 1)
	_, result := d.Dispatch(OpGetTable, map[string]any{"table_id": float64(1)}, 2)
	if result != msgNotFound {
		t.Errorf("expected %q for foreign record, got %q", msgNotFound, result)
	}
}

func TestDispatchMissingArgument(t *testing.T) {
	d := newTestDispatcher()

	cont, result := d.Dispatch(OpCreateTable, map[string]any{}, 1)
	if !cont {
		t.Error("missing argument must keep the loop running")
	}
	if !strings.Contains(result, "table_name") {
		t.Errorf("expected missing-argument message, got %q", result)
	}
}

func TestDispatchListUnknownKind(t *testing.T) {
	d := newTestDispatcher()

	_, result := d.Dispatch(OpListRecords, map[string]any{"target": "Rows"}, 1)
	if !strings.Contains(result, "unknown target kind") {
		t.Errorf("expected unknown-kind message, got %q", result)
	}
}

func TestDispatchFilteredList(t *testing.T) {
	d := newTestDispatcher()

	d.Dispatch(OpCreateTable, map[string]any{"table_name": "groceries"}, 1)
	d.Dispatch(OpCreateTable, map[string]any{"table_name": "salary"}, 1)

	_, result := d.Dispatch(OpListRecordsWithFilters, map[string]any{
		"target":  "Tables",
		"filters": map[string]any{"table_name": map[string]any{"like": "grocer"}},
	}, 1)
	if !strings.Contains(result, "groceries") || strings.Contains(result, "salary") {
		t.Errorf("unexpected filtered result: %q", result)
	}
}

func TestDispatchCellLifecycle(t *testing.T) {
	d := newTestDispatcher()

	d.Dispatch(OpCreateTable, map[string]any{"table_name": "t"}, 1)
	d.Dispatch(OpCreateColumn, map[string]any{"table_id": float64(1), "column_name": "c", "type": "TEXT"}, 1)

	cont, result := d.Dispatch(OpCreateCell, map[string]any{
		"column_id": float64(1), "row_id": float64(1), "data": "v",
	}, 1)
	if !cont || !strings.Contains(result, "row 1") {
		t.Fatalf("unexpected cell create result: %q", result)
	}

	_, result = d.Dispatch(OpUpdateCell, map[string]any{
		"column_id": float64(1), "row_id": float64(1), "data": "w",
	}, 1)
	if result != msgUpdated {
		t.Errorf("expected %q, got %q", msgUpdated, result)
	}

	_, result = d.Dispatch(OpGetCell, map[string]any{"column_id": float64(1), "row_id": float64(1)}, 1)
	if !strings.Contains(result, `"data":"w"`) {
		t.Errorf("unexpected cell get result: %q", result)
	}

	_, result = d.Dispatch(OpDeleteCell, map[string]any{"column_id": float64(1), "row_id": float64(1)}, 1)
	if result != msgDeleted {
		t.Errorf("expected %q, got %q", msgDeleted, result)
	}
}
