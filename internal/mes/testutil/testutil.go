package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "nimo-mes-test-secret"

var dbSeq atomic.Int64

// SetupTestDB 每个测试一个独立的内存 sqlite 库
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:mes_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// 内存库只在同一连接内可见
	sqlDB.SetMaxOpenConns(1)

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": userID + "@test.com",
		"roles": []string{},
		"perms": []string{"*"},
		"iss":   "nimo-plm",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON envelope
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedEmployee 创建员工，userID 为空表示未关联登录用户
func SeedEmployee(t *testing.T, db *gorm.DB, name, userID string) *entity.Employee {
	t.Helper()
	emp := &entity.Employee{Name: name, UserID: userID, Active: true}
	if err := db.Create(emp).Error; err != nil {
		t.Fatalf("Failed to seed employee: %v", err)
	}
	return emp
}

// LineSeed 消耗明细种子：计划数量 / 已完成数量
type LineSeed struct {
	Planned string
	Done    string
}

// SeedProduction 创建生产订单，每个 LineSeed 单独成一条移动
func SeedProduction(t *testing.T, db *gorm.DB, name, state string, lines ...LineSeed) *entity.ManufacturingOrder {
	t.Helper()
	mo := &entity.ManufacturingOrder{Name: name, ProductName: "Widget", ProductQty: 10, State: state}
	for _, l := range lines {
		mo.RawMoves = append(mo.RawMoves, entity.StockMove{
			ProductName: "Component",
			State:       entity.MoveStateAssigned,
			Lines: []entity.StockMoveLine{{
				ProductUomQty: decimal.RequireFromString(l.Planned),
				QtyDone:       decimal.RequireFromString(l.Done),
			}},
		})
	}
	if err := db.Create(mo).Error; err != nil {
		t.Fatalf("Failed to seed production: %v", err)
	}
	return mo
}

// SeedWorkOrder 创建工单
func SeedWorkOrder(t *testing.T, db *gorm.DB, productionID, name, operatorID, state string) *entity.WorkOrder {
	t.Helper()
	wo := &entity.WorkOrder{Name: name, ProductionID: productionID, OperatorID: operatorID, State: state}
	if err := db.Omit("Production", "Operator").Create(wo).Error; err != nil {
		t.Fatalf("Failed to seed work order: %v", err)
	}
	return wo
}

// SeedWorksheetAction 注册作业指导书动作
func SeedWorksheetAction(t *testing.T, db *gorm.DB, xmlID string) *entity.UIAction {
	t.Helper()
	a := &entity.UIAction{
		XMLID:    xmlID,
		Name:     "Worksheet",
		Type:     "ir.actions.act_window",
		ResModel: "mrp.workorder",
		ViewMode: "form",
		Target:   "new",
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("Failed to seed action: %v", err)
	}
	return a
}
