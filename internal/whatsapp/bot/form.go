package bot

import (
	"fmt"
	"strings"

	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/models"
)

// FormPrompt 表单提示消息（正文 + 按钮）
type FormPrompt struct {
	Text    string
	Buttons []gateway.Button
}

// BuildFormPrompt 根据字段列表生成编号的表单提示，必填字段带 " *"
func BuildFormPrompt(formMessage string, fields []models.FormField) FormPrompt {
	if len(fields) == 0 {
		return FormPrompt{Text: formMessage, Buttons: []gateway.Button{}}
	}

	var sb strings.Builder
	sb.WriteString(formMessage)
	sb.WriteString("\n\n")

	buttons := make([]gateway.Button, 0, len(fields))
	for i, field := range fields {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, field.Label)
		if field.Required {
			sb.WriteString(" *")
		}

		buttons = append(buttons, gateway.Button{
			ID:   "field_" + field.ID,
			Text: fmt.Sprintf("%d. %s", i+1, field.Label),
		})
	}

	return FormPrompt{Text: sb.String(), Buttons: buttons}
}

// ParseStructuredForm 解析 "字段: 值" 格式的多行消息
// 键为冒号前的内容（去空白、小写），值为冒号后的剩余部分
// 任一必填字段（按字段 ID 匹配）缺失时返回 ok=false
func ParseStructuredForm(body string, fields []models.FormField) (models.FormData, bool) {
	data := models.FormData{}
	for _, line := range nonEmptyLines(body) {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if key == "" || value == "" {
			continue
		}
		data = data.Set(key, value)
	}

	for _, field := range fields {
		if !field.Required {
			continue
		}
		if value, ok := data.Get(field.ID); !ok || value == "" {
			return nil, false
		}
	}
	return data, true
}
