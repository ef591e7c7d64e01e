package console

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	scopeInProgress = "in_progress"
	scopeAll        = "all"

	requestTimeout = 15 * time.Second
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modePrompt
)

var (
	numericPattern = regexp.MustCompile(`^-?\d*(\.\d+)?$`)
	integerPattern = regexp.MustCompile(`^-?\d+$`)
)

// prompt 记录类动作的输入定义
type prompt struct {
	action  string
	label   string
	field   string
	numeric bool
	integer bool
}

var prompts = map[string]prompt{
	"l": {action: "log-progress", label: "Progress (%)", field: "progress", numeric: true},
	"i": {action: "report-issue", label: "Issue", field: "issue"},
	"x": {action: "record-scrap", label: "Scrap count", field: "scrap_count", numeric: true, integer: true},
	"m": {action: "record-material-usage", label: "Material units", field: "material_units", numeric: true},
}

// 单键动作
var buttons = map[string]struct {
	action string
	done   string
}{
	"s": {"start", "started"},
	"p": {"button-start", "timer running"},
	"z": {"button-pending", "paused"},
	"f": {"button-finish", "finished"},
}

type loadedMsg struct {
	orders []WorkOrder
	err    error
}

type employeesMsg struct {
	employees []Employee
	err       error
}

type actionMsg struct {
	status string
	err    error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#5A4FCF"))
	workingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// Model 车间终端
type Model struct {
	api    API
	orders []WorkOrder
	cursor int
	scope  string
	query  string

	// operator 为 -1 时查看自己的工单
	employees []Employee
	operator  int

	mode   mode
	input  textinput.Model
	active prompt

	status  string
	err     error
	loading bool
}

func NewModel(api API) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	return Model{api: api, scope: scopeInProgress, operator: -1, input: ti, loading: true}
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	api := m.api
	q := ListQuery{OperatorID: m.operatorID(), Scope: m.scope, Query: m.query}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		orders, err := api.ListWorkOrders(ctx, q)
		return loadedMsg{orders: orders, err: err}
	}
}

func (m Model) operatorID() string {
	if m.operator < 0 || m.operator >= len(m.employees) {
		return ""
	}
	return m.employees[m.operator].ID
}

func (m Model) loadEmployees() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		list, err := api.ListEmployees(ctx)
		return employeesMsg{employees: list, err: err}
	}
}

// nextOperator 依次切换：自己 -> 每个操作工 -> 自己
func (m Model) nextOperator() (tea.Model, tea.Cmd) {
	if len(m.employees) == 0 {
		m.status = "no operators"
		return m, nil
	}
	m.operator++
	if m.operator >= len(m.employees) {
		m.operator = -1
	}
	m.cursor = 0
	m.loading = true
	return m, m.load()
}

func (m Model) run(status string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return actionMsg{status: status, err: fn(ctx)}
	}
}

func (m Model) selected() (WorkOrder, bool) {
	if m.cursor < 0 || m.cursor >= len(m.orders) {
		return WorkOrder{}, false
	}
	return m.orders[m.cursor], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.orders = msg.orders
		if m.cursor >= len(m.orders) {
			m.cursor = max(0, len(m.orders)-1)
		}
		return m, nil

	case employeesMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.employees = msg.employees
		if m.employees == nil {
			m.employees = []Employee{}
		}
		return m.nextOperator()

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = msg.status
		m.loading = true
		return m, m.load()

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch, modePrompt:
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.orders)-1 {
			m.cursor++
		}
		return m, nil
	case "tab":
		if m.scope == scopeInProgress {
			m.scope = scopeAll
		} else {
			m.scope = scopeInProgress
		}
		m.cursor = 0
		m.loading = true
		return m, m.load()
	case "r":
		m.loading = true
		return m, m.load()
	case "o":
		if m.employees == nil {
			return m, m.loadEmployees()
		}
		return m.nextOperator()
	case "/":
		m.mode = modeSearch
		m.input.Placeholder = "MO/0001-Cut"
		m.input.SetValue(m.query)
		m.input.Focus()
		return m, textinput.Blink
	}

	wo, ok := m.selected()
	if !ok {
		return m, nil
	}
	api := m.api

	if b, found := buttons[key]; found {
		return m, m.run(fmt.Sprintf("%s-%s %s", wo.ProductionName, wo.Name, b.done), func(ctx context.Context) error {
			_, err := api.WorkOrderAction(ctx, b.action, wo.ID, nil)
			return err
		})
	}
	if p, found := prompts[key]; found {
		m.mode = modePrompt
		m.active = p
		m.input.Placeholder = p.label
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	}

	switch key {
	case "w":
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			ws, err := api.OpenWorksheet(ctx, wo.ID)
			if err != nil {
				return actionMsg{err: err}
			}
			if ws.WorksheetURL == "" {
				return actionMsg{status: ws.Name + ": no worksheet uploaded"}
			}
			return actionMsg{status: ws.Name + ": " + ws.WorksheetURL}
		}
	case "c":
		if wo.ProductionState != "to_close" {
			m.err = fmt.Errorf("%s cannot be closed yet (state %s)", wo.ProductionName, wo.ProductionState)
			return m, nil
		}
		return m, m.run(wo.ProductionName+" closed", func(ctx context.Context) error {
			return api.MarkDone(ctx, wo.ProductionID)
		})
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.input.Blur()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if m.mode == modeSearch {
			m.mode = modeList
			m.input.Blur()
			m.query = value
			m.cursor = 0
			m.loading = true
			return m, m.load()
		}
		return m.submitPrompt(value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// parsePromptValue 按提示类型校验并转换输入
func parsePromptValue(p prompt, value string) (interface{}, error) {
	if !p.numeric {
		return value, nil
	}
	if value == "" || !numericPattern.MatchString(value) {
		return nil, fmt.Errorf("%s must be a number", p.label)
	}
	if p.integer {
		if !integerPattern.MatchString(value) {
			return nil, fmt.Errorf("%s must be a whole number", p.label)
		}
		return strconv.Atoi(value)
	}
	return strconv.ParseFloat(value, 64)
}

func (m Model) submitPrompt(value string) (tea.Model, tea.Cmd) {
	wo, ok := m.selected()
	p := m.active
	m.mode = modeList
	m.input.Blur()
	if !ok {
		return m, nil
	}

	parsed, err := parsePromptValue(p, value)
	if err != nil {
		m.err = err
		return m, nil
	}
	api := m.api
	return m, m.run(fmt.Sprintf("%s recorded for %s", p.label, wo.Name), func(ctx context.Context) error {
		_, err := api.WorkOrderAction(ctx, p.action, wo.ID, map[string]interface{}{p.field: parsed})
		return err
	})
}

func (m Model) View() string {
	var b strings.Builder

	scopeLabel := "In progress"
	if m.scope == scopeAll {
		scopeLabel = "All"
	}
	operatorLabel := "me"
	if m.operator >= 0 && m.operator < len(m.employees) {
		operatorLabel = m.employees[m.operator].Name
	}
	b.WriteString(titleStyle.Render("Shop floor · "+scopeLabel+" · "+operatorLabel) + "\n")
	if m.query != "" {
		b.WriteString(hintStyle.Render("search: "+m.query) + "\n")
	}
	b.WriteString("\n")

	if m.loading && len(m.orders) == 0 {
		b.WriteString("Loading...\n")
	} else if len(m.orders) == 0 {
		b.WriteString(hintStyle.Render("No work orders.") + "\n")
	}
	for i, wo := range m.orders {
		line := fmt.Sprintf("%-22s %-10s %6.1f%%  scrap %-4d mat %-8g %s",
			wo.ProductionName+"-"+wo.Name, wo.State, wo.WorkProgress, wo.ScrapCount, wo.MaterialUsage, wo.FormattedDuration)
		if wo.IsUserWorking {
			line += " " + workingStyle.Render("●")
		}
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	if wo, ok := m.selected(); ok && wo.IssuesReported != "" {
		b.WriteString("\n" + errorStyle.Render("issue: ") + wo.IssuesReported + "\n")
	}

	b.WriteString("\n")
	switch m.mode {
	case modeSearch:
		b.WriteString("Search: " + m.input.View() + "\n")
	case modePrompt:
		b.WriteString(m.active.label + ": " + m.input.View() + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(workingStyle.Render(m.status) + "\n")
	}
	b.WriteString(hintStyle.Render("tab scope · o operator · / search · s start · p play · z pause · f finish · l progress · i issue · x scrap · m material · w worksheet · c close MO · r refresh · q quit"))
	return b.String()
}
