package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/events"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
)

func TestDefaultGet_OperatorFromSession(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	emp := testutil.SeedEmployee(t, env.db, "Alice", "u1")

	res, err := env.svcs.WorkOrder.DefaultGet(ctx, Session{UserID: "u1"}, []string{"state", "operator_id"})
	if err != nil {
		t.Fatalf("DefaultGet failed: %v", err)
	}
	if res["operator_id"] != emp.ID {
		t.Errorf("Expected operator_id %s, got %v", emp.ID, res["operator_id"])
	}
	if res["state"] != entity.WOStatePending {
		t.Errorf("Expected base default state, got %v", res["state"])
	}
	if _, ok := res["scrap_count"]; ok {
		t.Error("Expected unrequested fields to be left out")
	}

	res, err = env.svcs.WorkOrder.DefaultGet(ctx, Session{UserID: "nobody"}, nil)
	if err != nil {
		t.Fatalf("DefaultGet failed: %v", err)
	}
	if _, ok := res["operator_id"]; ok {
		t.Errorf("Expected no operator default without linked employee, got %v", res["operator_id"])
	}
	if res["scrap_count"] != 0 || res["work_progress"] != 0.0 {
		t.Errorf("Unexpected base defaults: %v", res)
	}
}

func TestCreate_RequiresOperator(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	mo := testutil.SeedProduction(t, env.db, "MO/0001", entity.MOStateConfirmed)

	_, err := env.svcs.WorkOrder.Create(ctx, Session{UserID: "nobody"}, &CreateWorkOrderInput{Name: "Cut", ProductionID: mo.ID})
	if !errors.Is(err, ErrOperatorRequired) {
		t.Fatalf("Expected ErrOperatorRequired, got %v", err)
	}

	emp := testutil.SeedEmployee(t, env.db, "Alice", "u1")
	wo, err := env.svcs.WorkOrder.Create(ctx, Session{UserID: "u1"}, &CreateWorkOrderInput{Name: "Cut", ProductionID: mo.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if wo.OperatorID != emp.ID {
		t.Errorf("Expected defaulted operator %s, got %s", emp.ID, wo.OperatorID)
	}
	if wo.ProductionName != "MO/0001" {
		t.Errorf("Expected production_name MO/0001, got %q", wo.ProductionName)
	}
}

func TestActionStartWorkOrder(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	alice := testutil.SeedEmployee(t, env.db, "Alice", "u1")
	testutil.SeedEmployee(t, env.db, "Bob", "u2")
	mo := testutil.SeedProduction(t, env.db, "MO/0001", entity.MOStateConfirmed)
	wo := testutil.SeedWorkOrder(t, env.db, mo.ID, "Cut", alice.ID, entity.WOStateReady)

	_, err := env.svcs.WorkOrder.ActionStartWorkOrder(ctx, Session{UserID: "u2"}, []string{wo.ID})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("Expected ErrAccessDenied, got %v", err)
	}
	got, _ := env.svcs.WorkOrder.Get(ctx, wo.ID)
	if got.State != entity.WOStateReady {
		t.Errorf("Expected state unchanged, got %s", got.State)
	}

	if _, err := env.svcs.WorkOrder.ActionStartWorkOrder(ctx, Session{UserID: "no-employee"}, []string{wo.ID}); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied without employee, got %v", err)
	}

	started, err := env.svcs.WorkOrder.ActionStartWorkOrder(ctx, Session{UserID: "u1"}, []string{wo.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if started.State != entity.WOStateProgress {
		t.Errorf("Expected progress, got %s", started.State)
	}
	if types := env.notifier.types(); len(types) != 1 || types[0] != events.WorkOrderStarted {
		t.Errorf("Expected only the successful start to be announced, got %v", types)
	}
}

func TestSingleRecordActions_RejectSelections(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sess := Session{UserID: "u1"}
	wo := env.svcs.WorkOrder

	selections := [][]string{nil, {"a", "b"}}
	for _, ids := range selections {
		calls := map[string]error{}
		_, calls["start"] = wo.ActionStartWorkOrder(ctx, sess, ids)
		_, calls["progress"] = wo.LogProgress(ctx, sess, ids, 10)
		_, calls["issue"] = wo.ReportIssue(ctx, sess, ids, "x")
		_, calls["scrap"] = wo.RecordScrap(ctx, sess, ids, 1)
		_, calls["material"] = wo.RecordMaterialUsage(ctx, sess, ids, 1)
		_, calls["worksheet"] = env.svcs.Worksheet.OpenWizard(ctx, sess, ids)
		for name, err := range calls {
			if !errors.Is(err, ErrExpectedSingleton) {
				t.Errorf("%s with %d ids: expected ErrExpectedSingleton, got %v", name, len(ids), err)
			}
		}
	}
}

func TestOverwriteActions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sess := Session{UserID: "u1"}
	emp := testutil.SeedEmployee(t, env.db, "Alice", "u1")
	mo := testutil.SeedProduction(t, env.db, "MO/0001", entity.MOStateProgress)
	wo := testutil.SeedWorkOrder(t, env.db, mo.ID, "Cut", emp.ID, entity.WOStateProgress)
	ids := []string{wo.ID}

	if _, err := env.svcs.WorkOrder.RecordScrap(ctx, sess, ids, 5); err != nil {
		t.Fatalf("RecordScrap failed: %v", err)
	}
	got, err := env.svcs.WorkOrder.RecordScrap(ctx, sess, ids, 3)
	if err != nil {
		t.Fatalf("RecordScrap failed: %v", err)
	}
	if got.ScrapCount != 3 {
		t.Errorf("Expected scrap_count 3, got %d", got.ScrapCount)
	}

	// 不做范围校验
	got, err = env.svcs.WorkOrder.LogProgress(ctx, sess, ids, 150)
	if err != nil {
		t.Fatalf("LogProgress failed: %v", err)
	}
	if got.WorkProgress != 150 {
		t.Errorf("Expected work_progress 150, got %v", got.WorkProgress)
	}

	got, err = env.svcs.WorkOrder.RecordMaterialUsage(ctx, sess, ids, -2.5)
	if err != nil {
		t.Fatalf("RecordMaterialUsage failed: %v", err)
	}
	if got.MaterialUsage != -2.5 {
		t.Errorf("Expected material_usage -2.5, got %v", got.MaterialUsage)
	}

	reloaded, _ := env.svcs.WorkOrder.Get(ctx, wo.ID)
	if reloaded.ScrapCount != 3 || reloaded.WorkProgress != 150 || reloaded.MaterialUsage != -2.5 {
		t.Errorf("Persisted values mismatch: %+v", reloaded)
	}
}

func TestReportIssue(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sess := Session{UserID: "u1"}
	emp := testutil.SeedEmployee(t, env.db, "Alice", "u1")
	mo := testutil.SeedProduction(t, env.db, "MO/0001", entity.MOStateProgress)
	wo := testutil.SeedWorkOrder(t, env.db, mo.ID, "Cut", emp.ID, entity.WOStateProgress)

	if _, err := env.svcs.WorkOrder.ReportIssue(ctx, sess, []string{wo.ID}, "belt torn"); err != nil {
		t.Fatalf("ReportIssue failed: %v", err)
	}
	got, err := env.svcs.WorkOrder.ReportIssue(ctx, sess, []string{wo.ID}, "motor <hot>")
	if err != nil {
		t.Fatalf("ReportIssue failed: %v", err)
	}
	if got.IssuesReported != "motor <hot>" {
		t.Errorf("Expected issue to be replaced, got %q", got.IssuesReported)
	}

	msgs, err := env.svcs.Production.ListMessages(ctx, mo.ID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected one note per report, got %d", len(msgs))
	}
	found := false
	for _, m := range msgs {
		if m.Body == "Issue reported from Cut. <br/> Reported issue: motor &lt;hot&gt;" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected escaped note for second report, got %+v", msgs)
	}
}

func TestTimerButtons(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sess := Session{UserID: "u1"}
	emp := testutil.SeedEmployee(t, env.db, "Alice", "u1")
	mo := testutil.SeedProduction(t, env.db, "MO/0001", entity.MOStateConfirmed)
	cut := testutil.SeedWorkOrder(t, env.db, mo.ID, "Cut", emp.ID, entity.WOStateReady)
	pack := testutil.SeedWorkOrder(t, env.db, mo.ID, "Pack", emp.ID, entity.WOStateReady)

	started, err := env.svcs.WorkOrder.ButtonStart(ctx, sess, []string{cut.ID})
	if err != nil {
		t.Fatalf("ButtonStart failed: %v", err)
	}
	if started.State != entity.WOStateProgress || started.DateStart == nil {
		t.Errorf("Expected progress with date_start, got %s", started.State)
	}
	parent, _ := env.svcs.Production.Get(ctx, mo.ID)
	if parent.State != entity.MOStateProgress {
		t.Errorf("Expected parent in progress, got %s", parent.State)
	}

	views, err := env.svcs.WorkOrder.List(ctx, sess, ListWorkOrdersInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	working := map[string]bool{}
	for _, v := range views {
		working[v.Name] = v.IsUserWorking
	}
	if !working["Cut"] || working["Pack"] {
		t.Errorf("Unexpected is_user_working flags: %v", working)
	}

	if _, err := env.svcs.WorkOrder.ButtonPending(ctx, sess, []string{cut.ID}); err != nil {
		t.Fatalf("ButtonPending failed: %v", err)
	}
	if open, _ := env.repos.WorkOrder.OpenTimeLogs(ctx, cut.ID); len(open) != 0 {
		t.Errorf("Expected no open time logs after pause, got %d", len(open))
	}

	if _, err := env.svcs.WorkOrder.ButtonFinish(ctx, sess, []string{cut.ID}); err != nil {
		t.Fatalf("ButtonFinish failed: %v", err)
	}
	parent, _ = env.svcs.Production.Get(ctx, mo.ID)
	if parent.State != entity.MOStateProgress {
		t.Errorf("Expected parent to stay in progress while Pack is open, got %s", parent.State)
	}

	finished, err := env.svcs.WorkOrder.ButtonFinish(ctx, sess, []string{pack.ID})
	if err != nil {
		t.Fatalf("ButtonFinish failed: %v", err)
	}
	if finished.State != entity.WOStateDone {
		t.Errorf("Expected done, got %s", finished.State)
	}
	parent, _ = env.svcs.Production.Get(ctx, mo.ID)
	if parent.State != entity.MOStateToClose {
		t.Errorf("Expected parent to_close, got %s", parent.State)
	}

	if _, err := env.svcs.WorkOrder.ButtonFinish(ctx, sess, []string{pack.ID}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState finishing twice, got %v", err)
	}
}

func TestListScopesAndSearch(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	sess := Session{UserID: "u1"}
	alice := testutil.SeedEmployee(t, env.db, "Alice", "u1")
	bob := testutil.SeedEmployee(t, env.db, "Bob", "u2")
	active := testutil.SeedProduction(t, env.db, "MO/0001", entity.MOStateProgress)
	closed := testutil.SeedProduction(t, env.db, "MO/0002", entity.MOStateDone)
	testutil.SeedWorkOrder(t, env.db, active.ID, "Cut", alice.ID, entity.WOStateReady)
	testutil.SeedWorkOrder(t, env.db, closed.ID, "Weld", alice.ID, entity.WOStateDone)
	testutil.SeedWorkOrder(t, env.db, active.ID, "Paint", bob.ID, entity.WOStateReady)

	views, err := env.svcs.WorkOrder.List(ctx, sess, ListWorkOrdersInput{Scope: repository.ScopeInProgress})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(views) != 1 || views[0].Name != "Cut" {
		t.Errorf("Expected only Cut in progress for Alice, got %d", len(views))
	}
	if views[0].FormattedDuration != "0:00" {
		t.Errorf("Expected formatted duration 0:00, got %s", views[0].FormattedDuration)
	}

	views, _ = env.svcs.WorkOrder.List(ctx, sess, ListWorkOrdersInput{Scope: repository.ScopeAll})
	if len(views) != 2 {
		t.Errorf("Expected 2 work orders in all scope, got %d", len(views))
	}

	views, _ = env.svcs.WorkOrder.List(ctx, sess, ListWorkOrdersInput{Scope: repository.ScopeAll, Query: "mo/0002-we"})
	if len(views) != 1 || !strings.EqualFold(views[0].Name, "weld") {
		t.Errorf("Expected search to match MO/0002-Weld, got %d results", len(views))
	}
}
