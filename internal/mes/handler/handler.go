package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Production *ProductionHandler
	WorkOrder  *WorkOrderHandler
	Employee   *EmployeeHandler
	SSE        *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Production: NewProductionHandler(svc.Production),
		WorkOrder:  NewWorkOrderHandler(svc.WorkOrder, svc.Worksheet, svc.Export),
		Employee:   NewEmployeeHandler(svc.Employee),
		SSE:        NewSSEHandler(hub),
	}
}

// RegisterRoutes 注册 /api/v1/mes 下的路由，api 需已挂载认证中间件
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	mes := api.Group("/mes")

	productions := mes.Group("/productions")
	{
		productions.POST("", h.Production.Create)
		productions.POST("/mark-done", h.Production.MarkDone)
		productions.GET("/:id", h.Production.Get)
		productions.GET("/:id/messages", h.Production.ListMessages)
		productions.PUT("/:id/move-lines/:lineId", h.Production.SetLineQtyDone)
	}

	workOrders := mes.Group("/work-orders")
	{
		workOrders.GET("", h.WorkOrder.List)
		workOrders.POST("", h.WorkOrder.Create)
		workOrders.GET("/defaults", h.WorkOrder.Defaults)
		workOrders.GET("/export", h.WorkOrder.Export)
		workOrders.GET("/:id", h.WorkOrder.Get)
		workOrders.PUT("/:id/worksheet", h.WorkOrder.UploadWorksheet)

		actions := workOrders.Group("/actions")
		actions.POST("/start", h.WorkOrder.Start)
		actions.POST("/log-progress", h.WorkOrder.LogProgress)
		actions.POST("/report-issue", h.WorkOrder.ReportIssue)
		actions.POST("/record-scrap", h.WorkOrder.RecordScrap)
		actions.POST("/record-material-usage", h.WorkOrder.RecordMaterialUsage)
		actions.POST("/open-worksheet", h.WorkOrder.OpenWorksheet)
		actions.POST("/button-start", h.WorkOrder.ButtonStart)
		actions.POST("/button-pending", h.WorkOrder.ButtonPending)
		actions.POST("/button-finish", h.WorkOrder.ButtonFinish)
	}

	employees := mes.Group("/employees")
	{
		employees.GET("", h.Employee.List)
		employees.POST("", middleware.RequirePermission("mes:employee:create"), h.Employee.Create)
		employees.GET("/me", h.Employee.Me)
	}

	mes.GET("/sse/events", h.SSE.Stream)
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应，HTTP 状态码取业务码前三位
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// respondError 把服务层错误映射为响应码
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		Error(c, 40300, err.Error())
	case errors.Is(err, service.ErrNotFound):
		Error(c, 40400, err.Error())
	case errors.Is(err, service.ErrExpectedSingleton),
		errors.Is(err, service.ErrNoRecords),
		errors.Is(err, service.ErrOperatorRequired):
		Error(c, 40000, err.Error())
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrLineLocked):
		Error(c, 40900, err.Error())
	case errors.Is(err, service.ErrStorageNotConfigured):
		Error(c, 50300, err.Error())
	default:
		c.Error(err)
		InternalError(c, err.Error())
	}
}

// GetSession 从上下文获取会话身份
func GetSession(c *gin.Context) service.Session {
	return service.Session{
		UserID: c.GetString(middleware.CtxUserID),
		Name:   c.GetString(middleware.CtxUserName),
	}
}
