package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

type EmployeeHandler struct {
	svc *service.EmployeeService
}

func NewEmployeeHandler(svc *service.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{svc: svc}
}

func (h *EmployeeHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": list})
}

func (h *EmployeeHandler) Create(c *gin.Context) {
	var input service.CreateEmployeeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	emp, err := h.svc.Create(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, emp)
}

// Me GET /mes/employees/me
func (h *EmployeeHandler) Me(c *gin.Context) {
	me, err := h.svc.Me(c.Request.Context(), GetSession(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, me)
}
