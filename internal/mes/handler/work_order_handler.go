package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

type WorkOrderHandler struct {
	svc       *service.WorkOrderService
	worksheet *service.WorksheetService
	export    *service.ExportService
}

func NewWorkOrderHandler(svc *service.WorkOrderService, worksheet *service.WorksheetService, export *service.ExportService) *WorkOrderHandler {
	return &WorkOrderHandler{svc: svc, worksheet: worksheet, export: export}
}

// ActionRequest 记录动作请求体，ids 为动作作用的工单
type ActionRequest struct {
	IDs           []string `json:"ids"`
	Progress      *float64 `json:"progress"`
	Issue         *string  `json:"issue"`
	ScrapCount    *int     `json:"scrap_count"`
	MaterialUnits *float64 `json:"material_units"`
}

func bindAction(c *gin.Context) (*ActionRequest, bool) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return nil, false
	}
	return &req, true
}

func listInput(c *gin.Context) service.ListWorkOrdersInput {
	return service.ListWorkOrdersInput{
		OperatorID: c.Query("operator_id"),
		Scope:      c.Query("scope"),
		Query:      c.Query("q"),
	}
}

// List GET /mes/work-orders?operator_id=&scope=in_progress|all&q=
func (h *WorkOrderHandler) List(c *gin.Context) {
	views, err := h.svc.List(c.Request.Context(), GetSession(c), listInput(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": views})
}

// Defaults GET /mes/work-orders/defaults?fields=a,b
func (h *WorkOrderHandler) Defaults(c *gin.Context) {
	var fields []string
	if f := c.Query("fields"); f != "" {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				fields = append(fields, name)
			}
		}
	}
	res, err := h.svc.DefaultGet(c.Request.Context(), GetSession(c), fields)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, res)
}

func (h *WorkOrderHandler) Create(c *gin.Context) {
	var input service.CreateWorkOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	wo, err := h.svc.Create(c.Request.Context(), GetSession(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, wo)
}

func (h *WorkOrderHandler) Get(c *gin.Context) {
	wo, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

// Start POST /mes/work-orders/actions/start
func (h *WorkOrderHandler) Start(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	wo, err := h.svc.ActionStartWorkOrder(c.Request.Context(), GetSession(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

// LogProgress POST /mes/work-orders/actions/log-progress
func (h *WorkOrderHandler) LogProgress(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	if req.Progress == nil {
		BadRequest(c, "progress 不能为空")
		return
	}
	wo, err := h.svc.LogProgress(c.Request.Context(), GetSession(c), req.IDs, *req.Progress)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

// ReportIssue POST /mes/work-orders/actions/report-issue
func (h *WorkOrderHandler) ReportIssue(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	if req.Issue == nil {
		BadRequest(c, "issue 不能为空")
		return
	}
	wo, err := h.svc.ReportIssue(c.Request.Context(), GetSession(c), req.IDs, *req.Issue)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

// RecordScrap POST /mes/work-orders/actions/record-scrap
func (h *WorkOrderHandler) RecordScrap(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	if req.ScrapCount == nil {
		BadRequest(c, "scrap_count 不能为空")
		return
	}
	wo, err := h.svc.RecordScrap(c.Request.Context(), GetSession(c), req.IDs, *req.ScrapCount)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

// RecordMaterialUsage POST /mes/work-orders/actions/record-material-usage
func (h *WorkOrderHandler) RecordMaterialUsage(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	if req.MaterialUnits == nil {
		BadRequest(c, "material_units 不能为空")
		return
	}
	wo, err := h.svc.RecordMaterialUsage(c.Request.Context(), GetSession(c), req.IDs, *req.MaterialUnits)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

// OpenWorksheet POST /mes/work-orders/actions/open-worksheet
func (h *WorkOrderHandler) OpenWorksheet(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	desc, err := h.worksheet.OpenWizard(c.Request.Context(), GetSession(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, desc)
}

func (h *WorkOrderHandler) ButtonStart(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	wo, err := h.svc.ButtonStart(c.Request.Context(), GetSession(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

func (h *WorkOrderHandler) ButtonPending(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	wo, err := h.svc.ButtonPending(c.Request.Context(), GetSession(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

func (h *WorkOrderHandler) ButtonFinish(c *gin.Context) {
	req, ok := bindAction(c)
	if !ok {
		return
	}
	wo, err := h.svc.ButtonFinish(c.Request.Context(), GetSession(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

// UploadWorksheet PUT /mes/work-orders/:id/worksheet (multipart, 字段 file)
func (h *WorkOrderHandler) UploadWorksheet(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传作业指导书文件")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	wo, err := h.worksheet.UploadWorksheet(c.Request.Context(), c.Param("id"), header.Filename, file, header.Size, contentType)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, wo)
}

// Export GET /mes/work-orders/export?format=xlsx|csv&encoding=gbk
func (h *WorkOrderHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	sess := GetSession(c)
	input := listInput(c)

	switch c.DefaultQuery("format", "xlsx") {
	case "csv":
		gbk := strings.EqualFold(c.Query("encoding"), "gbk")
		charset := "utf-8"
		if gbk {
			charset = "gbk"
		}
		// 先写入缓冲区，出错时还能返回正常的错误响应
		var buf bytes.Buffer
		if err := h.export.ExportCSV(ctx, sess, input, &buf, gbk); err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=\"workorders.csv\"")
		c.Data(http.StatusOK, "text/csv; charset="+charset, buf.Bytes())
	case "xlsx":
		f, filename, err := h.export.ExportXLSX(ctx, sess, input)
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
		c.Header("Content-Transfer-Encoding", "binary")
		if err := f.Write(c.Writer); err != nil {
			InternalError(c, "write excel: "+err.Error())
		}
	default:
		BadRequest(c, "不支持的导出格式")
	}
}
