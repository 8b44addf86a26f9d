package bot

// 回复给发送者的固定文案
const (
	AckText           = "Obrigado! Sua mensagem foi recebida e encaminhada para nossa equipe."
	ApologyText       = "Ocorreu um erro ao processar sua mensagem. Tente novamente."
	InvalidFormatText = "Formato inválido. Por favor, use o formato: Campo: Valor"
)

// 转发到群组的消息模板
const (
	groupHeader      = "📋 *Nova Mensagem Recebida*\n\n"
	groupFromLine    = "👤 *De:* %s\n"
	groupDateLine    = "⏰ *Data:* %s\n\n"
	groupMessageHead = "💬 *Mensagem:*\n"
	groupFormHead    = "📝 *Dados do Formulário:*\n"
	groupFormLine    = "• *%s:* %s\n"

	timestampLayout = "02/01/2006, 15:04:05"
)
