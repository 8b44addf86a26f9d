package models

import "time"

// FormFieldType 表单字段类型
type FormFieldType string

const (
	FieldTypeText     FormFieldType = "text"
	FieldTypeEmail    FormFieldType = "email"
	FieldTypePhone    FormFieldType = "phone"
	FieldTypeNumber   FormFieldType = "number"
	FieldTypeSelect   FormFieldType = "select"
	FieldTypeTextarea FormFieldType = "textarea"
)

// FieldValidation 字段校验规则（数值范围或正则）
type FieldValidation struct {
	Min     *float64 `bson:"min,omitempty" json:"min,omitempty"`
	Max     *float64 `bson:"max,omitempty" json:"max,omitempty"`
	Pattern string   `bson:"pattern,omitempty" json:"pattern,omitempty"`
}

// FormField 表单字段定义
type FormField struct {
	ID          string           `bson:"id" json:"id"`
	Type        FormFieldType    `bson:"type" json:"type"`
	Label       string           `bson:"label" json:"label"`
	Placeholder string           `bson:"placeholder,omitempty" json:"placeholder,omitempty"`
	Required    bool             `bson:"required" json:"required"`
	Options     []string         `bson:"options,omitempty" json:"options,omitempty"` // select 类型的可选项
	Validation  *FieldValidation `bson:"validation,omitempty" json:"validation,omitempty"`
}

// BotConfig 机器人配置
// 同一时间只有一条记录处于激活状态
type BotConfig struct {
	ID              string      `bson:"_id" json:"id"`
	Name            string      `bson:"name" json:"name"`
	GreetingMessage string      `bson:"greeting_message" json:"greetingMessage"`
	FormMessage     string      `bson:"form_message" json:"formMessage"`
	FormFields      []FormField `bson:"form_fields" json:"formFields"`
	TargetGroupID   string      `bson:"target_group_id" json:"targetGroupId"`
	TargetGroupName string      `bson:"target_group_name,omitempty" json:"targetGroupName,omitempty"`
	IsActive        bool        `bson:"is_active" json:"isActive"`
	CreatedAt       time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `bson:"updated_at" json:"updatedAt"`
}

// FieldByID 根据字段 ID 查找字段定义
func (c *BotConfig) FieldByID(id string) (FormField, bool) {
	if c == nil {
		return FormField{}, false
	}
	for _, field := range c.FormFields {
		if field.ID == id {
			return field, true
		}
	}
	return FormField{}, false
}

// RequiredFields 返回所有必填字段
func (c *BotConfig) RequiredFields() []FormField {
	if c == nil {
		return nil
	}
	required := make([]FormField, 0, len(c.FormFields))
	for _, field := range c.FormFields {
		if field.Required {
			required = append(required, field)
		}
	}
	return required
}

// HasTargetGroup 是否配置了转发目标群组
func (c *BotConfig) HasTargetGroup() bool {
	return c != nil && c.TargetGroupID != ""
}

// Clone 返回深拷贝，避免调用方修改共享的配置
func (c *BotConfig) Clone() *BotConfig {
	if c == nil {
		return nil
	}
	cp := *c
	cp.FormFields = make([]FormField, len(c.FormFields))
	for i, field := range c.FormFields {
		f := field
		if field.Options != nil {
			f.Options = append([]string(nil), field.Options...)
		}
		if field.Validation != nil {
			v := *field.Validation
			f.Validation = &v
		}
		cp.FormFields[i] = f
	}
	return &cp
}

// DefaultFormFields 默认表单字段
func DefaultFormFields() []FormField {
	return []FormField{
		{ID: "name", Type: FieldTypeText, Label: "Nome Completo", Placeholder: "Digite seu nome completo", Required: true},
		{ID: "email", Type: FieldTypeEmail, Label: "E-mail", Placeholder: "Digite seu e-mail", Required: true},
		{ID: "phone", Type: FieldTypePhone, Label: "Telefone", Placeholder: "Digite seu telefone", Required: true},
		{ID: "message", Type: FieldTypeTextarea, Label: "Mensagem", Placeholder: "Digite sua mensagem", Required: false},
	}
}
