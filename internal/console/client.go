package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// WorkOrder 终端展示用的工单
type WorkOrder struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	ProductionID      string  `json:"production_id"`
	ProductionName    string  `json:"production_name"`
	ProductionState   string  `json:"production_state"`
	State             string  `json:"state"`
	WorkProgress      float64 `json:"work_progress"`
	IssuesReported    string  `json:"issues_reported"`
	ScrapCount        int     `json:"scrap_count"`
	MaterialUsage     float64 `json:"material_usage"`
	FormattedDuration string  `json:"formatted_duration"`
	IsUserWorking     bool    `json:"is_user_working"`
}

// Employee 操作工
type Employee struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

// ListQuery 工单列表条件；OperatorID 为空时服务端取当前登录员工
type ListQuery struct {
	OperatorID string
	Scope      string
	Query      string
}

// Worksheet 作业指导书动作
type Worksheet struct {
	Name         string `json:"name"`
	ResID        string `json:"res_id"`
	WorksheetURL string `json:"worksheet_url"`
}

// API 终端依赖的服务端接口
type API interface {
	ListWorkOrders(ctx context.Context, q ListQuery) ([]WorkOrder, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	WorkOrderAction(ctx context.Context, action, id string, fields map[string]interface{}) (*WorkOrder, error)
	OpenWorksheet(ctx context.Context, id string) (*Worksheet, error)
	MarkDone(ctx context.Context, productionID string) error
}

// APIError 服务端返回的业务错误
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client nimo-mes HTTP 客户端
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) ListWorkOrders(ctx context.Context, lq ListQuery) ([]WorkOrder, error) {
	q := url.Values{}
	q.Set("scope", lq.Scope)
	if lq.OperatorID != "" {
		q.Set("operator_id", lq.OperatorID)
	}
	if lq.Query != "" {
		q.Set("q", lq.Query)
	}
	var out struct {
		Items []WorkOrder `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/mes/work-orders?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ListEmployees 可选的操作工
func (c *Client) ListEmployees(ctx context.Context) ([]Employee, error) {
	var out struct {
		Items []Employee `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/mes/employees", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// WorkOrderAction 调用 /work-orders/actions/{action}
func (c *Client) WorkOrderAction(ctx context.Context, action, id string, fields map[string]interface{}) (*WorkOrder, error) {
	body := map[string]interface{}{"ids": []string{id}}
	for k, v := range fields {
		body[k] = v
	}
	var wo WorkOrder
	if err := c.do(ctx, http.MethodPost, "/api/v1/mes/work-orders/actions/"+action, body, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

func (c *Client) OpenWorksheet(ctx context.Context, id string) (*Worksheet, error) {
	var ws Worksheet
	body := map[string]interface{}{"ids": []string{id}}
	if err := c.do(ctx, http.MethodPost, "/api/v1/mes/work-orders/actions/open-worksheet", body, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// MarkDone 关闭生产订单，未填写的消耗按计划数量补齐
func (c *Client) MarkDone(ctx context.Context, productionID string) error {
	body := map[string]interface{}{
		"ids":     []string{productionID},
		"context": map[string]interface{}{"fill_consumed": true},
	}
	return c.do(ctx, http.MethodPost, "/api/v1/mes/productions/mark-done", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if result != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, result)
	}
	return nil
}
