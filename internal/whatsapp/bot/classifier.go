package bot

import "strings"

// Intent 入站消息的分类结果
type Intent int

const (
	IntentDirect Intent = iota
	IntentGreeting
	IntentStructuredForm
)

func (i Intent) String() string {
	switch i {
	case IntentGreeting:
		return "greeting"
	case IntentStructuredForm:
		return "structured_form"
	default:
		return "direct"
	}
}

// greetingLexicon 问候语词表（子串匹配）
var greetingLexicon = []string{
	"oi", "olá", "hey", "hi", "hello",
	"bom dia", "boa tarde", "boa noite",
	"tudo bem", "como vai", "e aí",
}

// Classify 对消息正文分类
// 顺序：问候 > 结构化表单 > 直接消息
func Classify(body string) Intent {
	switch {
	case IsGreeting(body):
		return IntentGreeting
	case IsStructuredForm(body):
		return IntentStructuredForm
	default:
		return IntentDirect
	}
}

// IsGreeting 小写去空白后包含任一问候语
func IsGreeting(body string) bool {
	text := strings.ToLower(strings.TrimSpace(body))
	if text == "" {
		return false
	}
	for _, greeting := range greetingLexicon {
		if strings.Contains(text, greeting) {
			return true
		}
	}
	return false
}

// IsStructuredForm 包含 ":" 且至少有两行非空内容
func IsStructuredForm(body string) bool {
	if !strings.Contains(body, ":") {
		return false
	}
	return len(nonEmptyLines(body)) >= 2
}

func nonEmptyLines(body string) []string {
	raw := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
