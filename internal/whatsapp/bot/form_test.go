package bot

import (
	"testing"
	"time"

	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFormPrompt(t *testing.T) {
	prompt := BuildFormPrompt("Por favor, preencha o formulário abaixo:", models.DefaultFormFields())

	want := "Por favor, preencha o formulário abaixo:\n\n" +
		"1. Nome Completo *\n" +
		"2. E-mail *\n" +
		"3. Telefone *\n" +
		"4. Mensagem"
	assert.Equal(t, want, prompt.Text)
	require.Len(t, prompt.Buttons, 4)
	assert.Equal(t, gateway.Button{ID: "field_name", Text: "1. Nome Completo"}, prompt.Buttons[0])
	assert.Equal(t, gateway.Button{ID: "field_message", Text: "4. Mensagem"}, prompt.Buttons[3])
}

func TestParseStructuredForm(t *testing.T) {
	fields := models.DefaultFormFields()

	data, ok := ParseStructuredForm("Name: Ana\r\nEMAIL : ana@x.com\n\nphone: 1199\nsem separador\nmessage:", fields)
	require.True(t, ok)
	assert.Equal(t, models.FormData{
		{Key: "name", Value: "Ana"},
		{Key: "email", Value: "ana@x.com"},
		{Key: "phone", Value: "1199"},
	}, data)

	_, ok = ParseStructuredForm("Nome: Ana\nEmail: ana@x.com", fields)
	assert.False(t, ok)

	data, ok = ParseStructuredForm("a: 1\nb: 2", nil)
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestBuildFormPromptWithoutFields(t *testing.T) {
	prompt := BuildFormPrompt("Por favor, preencha o formulário abaixo:", nil)
	assert.Equal(t, "Por favor, preencha o formulário abaixo:", prompt.Text)
	assert.Empty(t, prompt.Buttons)
}

func TestRenderGroupMessageDirect(t *testing.T) {
	submission := &models.Submission{
		From:        "551199999999@c.us",
		Source:      models.SourceDirect,
		FormData:    models.FormData{{Key: models.DirectMessageKey, Value: "Quero mais informações"}},
		SubmittedAt: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
	}

	got := RenderGroupMessage(submission, &models.BotConfig{}, time.UTC)
	want := "📋 *Nova Mensagem Recebida*\n\n" +
		"👤 *De:* 551199999999\n" +
		"⏰ *Data:* 05/03/2024, 14:07:09\n\n" +
		"💬 *Mensagem:*\n" +
		"Quero mais informações"
	assert.Equal(t, want, got)
}

func TestRenderGroupMessageFormUsesCurrentLabels(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	submission := &models.Submission{
		From:   "551188888888@c.us",
		Source: models.SourceForm,
		FormData: models.FormData{
			{Key: "name", Value: "Ana"},
			{Key: "cidade", Value: "Recife"},
		},
		SubmittedAt: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
	}
	cfg := &models.BotConfig{FormFields: models.DefaultFormFields()}

	got := RenderGroupMessage(submission, cfg, loc)
	want := "📋 *Nova Mensagem Recebida*\n\n" +
		"👤 *De:* 551188888888\n" +
		"⏰ *Data:* 05/03/2024, 11:07:09\n\n" +
		"📝 *Dados do Formulário:*\n" +
		"• *Nome Completo:* Ana\n" +
		"• *cidade:* Recife\n"
	assert.Equal(t, want, got)
}
