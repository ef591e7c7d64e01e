package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ProductionHandler struct {
	svc *service.ProductionService
}

func NewProductionHandler(svc *service.ProductionService) *ProductionHandler {
	return &ProductionHandler{svc: svc}
}

// MarkDoneRequest 完成请求
type MarkDoneRequest struct {
	IDs     []string                `json:"ids"`
	Context service.MarkDoneContext `json:"context"`
}

// MarkDone POST /mes/productions/mark-done
func (h *ProductionHandler) MarkDone(c *gin.Context) {
	var req MarkDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	orders, err := h.svc.MarkDone(c.Request.Context(), GetSession(c), req.IDs, req.Context)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": orders})
}

// Create POST /mes/productions
func (h *ProductionHandler) Create(c *gin.Context) {
	var input service.CreateProductionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	mo, err := h.svc.Create(c.Request.Context(), GetSession(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, mo)
}

// Get GET /mes/productions/:id
func (h *ProductionHandler) Get(c *gin.Context) {
	mo, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, mo)
}

// ListMessages GET /mes/productions/:id/messages
func (h *ProductionHandler) ListMessages(c *gin.Context) {
	msgs, err := h.svc.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": msgs})
}

// SetLineQtyDone PUT /mes/productions/:id/move-lines/:lineId
func (h *ProductionHandler) SetLineQtyDone(c *gin.Context) {
	var req struct {
		QtyDone *decimal.Decimal `json:"qty_done"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if req.QtyDone == nil {
		BadRequest(c, "qty_done 不能为空")
		return
	}
	line, err := h.svc.SetLineQtyDone(c.Request.Context(), c.Param("id"), c.Param("lineId"), *req.QtyDone)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, line)
}
