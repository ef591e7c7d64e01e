package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/events"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/shopspring/decimal"
)

// lineQty 计划数量 -> 完成数量
func lineQty(t *testing.T, mo *entity.ManufacturingOrder) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, m := range mo.RawMoves {
		for _, l := range m.Lines {
			out[l.ProductUomQty.String()] = l.QtyDone.String()
		}
	}
	return out
}

func TestMarkDone_FillConsumed(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	mo := testutil.SeedProduction(t, env.db, "MO/0001", entity.MOStateToClose,
		testutil.LineSeed{Planned: "4", Done: "0"},
		testutil.LineSeed{Planned: "2.5", Done: "1"},
	)

	orders, err := env.svcs.Production.MarkDone(ctx, Session{UserID: "u1"}, []string{mo.ID}, MarkDoneContext{FillConsumed: true})
	if err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	got := orders[0]
	if got.State != entity.MOStateDone {
		t.Errorf("Expected state done, got %s", got.State)
	}
	if got.DateFinished == nil {
		t.Error("Expected date_finished to be set")
	}
	if got.QtyProducing != got.ProductQty {
		t.Errorf("Expected qty_producing %v, got %v", got.ProductQty, got.QtyProducing)
	}
	qty := lineQty(t, got)
	if len(qty) != 2 || qty["4"] != "4" || qty["2.5"] != "1" {
		t.Errorf("Expected zero line filled and non-zero line kept, got %v", qty)
	}
	for _, m := range got.RawMoves {
		if m.State != entity.MoveStateDone {
			t.Errorf("Expected move done, got %s", m.State)
		}
	}
	if types := env.notifier.types(); len(types) != 1 || types[0] != events.ProductionDone {
		t.Errorf("Expected one production.done event, got %v", types)
	}
}

func TestMarkDone_WithoutFlagKeepsZeroLines(t *testing.T) {
	env := setup(t)
	mo := testutil.SeedProduction(t, env.db, "MO/0002", entity.MOStateProgress,
		testutil.LineSeed{Planned: "4", Done: "0"},
	)

	orders, err := env.svcs.Production.MarkDone(context.Background(), Session{}, []string{mo.ID}, MarkDoneContext{})
	if err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if qty := lineQty(t, orders[0]); qty["4"] != "0" {
		t.Errorf("Expected done qty to stay 0, got %v", qty)
	}
}

func TestMarkDone_BaseFailureRollsBackFill(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	mo := testutil.SeedProduction(t, env.db, "MO/0003", entity.MOStateDraft,
		testutil.LineSeed{Planned: "4", Done: "0"},
	)

	_, err := env.svcs.Production.MarkDone(ctx, Session{}, []string{mo.ID}, MarkDoneContext{FillConsumed: true})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState, got %v", err)
	}
	reloaded, err := env.svcs.Production.Get(ctx, mo.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if qty := lineQty(t, reloaded); qty["4"] != "0" {
		t.Errorf("Expected fill to roll back, got %v", qty)
	}
	if reloaded.State != entity.MOStateDraft {
		t.Errorf("Expected state draft, got %s", reloaded.State)
	}
}

func TestMarkDone_FinishesOpenWorkOrders(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	emp := testutil.SeedEmployee(t, env.db, "Alice", "u1")
	mo := testutil.SeedProduction(t, env.db, "MO/0004", entity.MOStateProgress)
	wo := testutil.SeedWorkOrder(t, env.db, mo.ID, "Cut", emp.ID, entity.WOStateProgress)

	if _, err := env.svcs.Production.MarkDone(ctx, Session{}, []string{mo.ID}, MarkDoneContext{}); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	got, err := env.svcs.WorkOrder.Get(ctx, wo.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != entity.WOStateDone || got.DateFinished == nil {
		t.Errorf("Expected work order done with date_finished, got %s", got.State)
	}
}

func TestMarkDone_EmptySelection(t *testing.T) {
	env := setup(t)
	if _, err := env.svcs.Production.MarkDone(context.Background(), Session{}, nil, MarkDoneContext{}); !errors.Is(err, ErrNoRecords) {
		t.Errorf("Expected ErrNoRecords, got %v", err)
	}
}

func TestCreateProductionWithMoves(t *testing.T) {
	env := setup(t)
	mo, err := env.svcs.Production.Create(context.Background(), Session{UserID: "u1"}, &CreateProductionInput{
		Name:       "MO/0100",
		ProductQty: 5,
		Moves: []CreateMoveInput{{
			ProductName: "Screw",
			Lines:       []CreateLineInput{{ProductUomQty: decimal.NewFromInt(20)}},
		}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if mo.State != entity.MOStateConfirmed {
		t.Errorf("Expected default state confirmed, got %s", mo.State)
	}
	if len(mo.RawMoves) != 1 || len(mo.RawMoves[0].Lines) != 1 {
		t.Fatalf("Expected one move with one line, got %+v", mo.RawMoves)
	}
	if !mo.RawMoves[0].Lines[0].ProductUomQty.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected planned 20, got %s", mo.RawMoves[0].Lines[0].ProductUomQty)
	}
}

func TestSetLineQtyDone(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	mo := testutil.SeedProduction(t, env.db, "MO/0005", entity.MOStateConfirmed, testutil.LineSeed{Planned: "3", Done: "0"})
	lineID := mo.RawMoves[0].Lines[0].ID

	line, err := env.svcs.Production.SetLineQtyDone(ctx, mo.ID, lineID, decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("SetLineQtyDone failed: %v", err)
	}
	if !line.QtyDone.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected 2, got %s", line.QtyDone)
	}

	if _, err := env.svcs.Production.SetLineQtyDone(ctx, "other", lineID, decimal.NewFromInt(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign production, got %v", err)
	}

	if _, err := env.svcs.Production.MarkDone(ctx, Session{}, []string{mo.ID}, MarkDoneContext{}); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if _, err := env.svcs.Production.SetLineQtyDone(ctx, mo.ID, lineID, decimal.NewFromInt(1)); !errors.Is(err, ErrLineLocked) {
		t.Errorf("Expected ErrLineLocked after completion, got %v", err)
	}
}
