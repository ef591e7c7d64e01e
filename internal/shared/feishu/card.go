package feishu

import (
	"context"
	"encoding/json"
	"fmt"
)

// SendCard 向群聊发送消息卡片
func (c *FeishuClient) SendCard(ctx context.Context, chatID string, card InteractiveCard) error {
	cardBytes, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("序列化卡片内容失败: %w", err)
	}

	reqBody := map[string]interface{}{
		"receive_id": chatID,
		"msg_type":   "interactive",
		"content":    string(cardBytes),
	}

	var resp SendMessageResponse
	if err := c.doRequest(ctx, "POST", "/open-apis/im/v1/messages?receive_id_type=chat_id", reqBody, &resp); err != nil {
		return fmt.Errorf("发送消息卡片失败: %w", err)
	}
	return nil
}

// NewIssueReportedCard 车间异常上报卡片
func NewIssueReportedCard(productionName, workOrderName, operatorName, issue string) InteractiveCard {
	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "⚠️ 车间异常上报"},
			Template: "orange",
		},
		Elements: []CardElement{
			{
				Tag: "div",
				Fields: []CardField{
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**生产订单**\n%s", productionName)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**工单**\n%s", workOrderName)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**操作工**\n%s", operatorName)}},
				},
			},
			{Tag: "hr"},
			{Tag: "markdown", Content: issue},
		},
	}
}
