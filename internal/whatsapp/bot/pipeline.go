package bot

import (
	"context"
	"strings"
	"time"

	"go_wabot/internal/logger"
	"go_wabot/internal/whatsapp/gateway"
	"go_wabot/internal/whatsapp/models"
	"go_wabot/internal/whatsapp/repository"

	"github.com/google/uuid"
)

// statusBroadcast 状态更新使用的伪聊天 ID
const statusBroadcast = "status@broadcast"

// Gateway 处理流程需要的网关能力
type Gateway interface {
	TextSender
	SendButtons(ctx context.Context, chatID, text string, buttons []gateway.Button) error
	StartTyping(ctx context.Context, chatID string) error
	StopTyping(ctx context.Context, chatID string) error
}

// Options 处理流程的可调参数
type Options struct {
	GreetingMessage string // 配置未设置问候语时使用
	FormMessage     string // 配置未设置表单提示时使用
	TypingDelay     time.Duration
	FormDelay       time.Duration
	Location        *time.Location
}

// Pipeline 入站消息处理流程
// Handle 可以被并发调用，配置每次都重新读取
type Pipeline struct {
	gateway   Gateway
	configs   repository.ConfigProvider
	store     repository.SubmissionRepository
	scheduler Scheduler
	forwarder *Forwarder

	greetingMessage string
	formMessage     string
	typingDelay     time.Duration
	formDelay       time.Duration

	nowFunc func() time.Time
	idFunc  func() string
}

// NewPipeline 创建处理流程
func NewPipeline(
	gw Gateway,
	configs repository.ConfigProvider,
	store repository.SubmissionRepository,
	scheduler Scheduler,
	opts Options,
) *Pipeline {
	return &Pipeline{
		gateway:         gw,
		configs:         configs,
		store:           store,
		scheduler:       scheduler,
		forwarder:       NewForwarder(gw, store, opts.Location),
		greetingMessage: opts.GreetingMessage,
		formMessage:     opts.FormMessage,
		typingDelay:     opts.TypingDelay,
		formDelay:       opts.FormDelay,
		nowFunc:         time.Now,
		idFunc:          uuid.NewString,
	}
}

// Handle 处理一条入站消息，不向调用方返回错误
func (p *Pipeline) Handle(ctx context.Context, msg *models.InboundMessage) {
	if msg == nil || msg.FromMe {
		return
	}
	if msg.From == "" || msg.From == statusBroadcast {
		return
	}
	// 只处理私聊，群聊消息（包括目标群组本身）不触发流程
	if gateway.IsGroupChat(msg.From) {
		logger.L().Debugf("Group message ignored: id=%s, chat=%s", msg.ID, msg.From)
		return
	}
	if strings.TrimSpace(msg.Body) == "" {
		logger.L().Debugf("Message without text body ignored: id=%s, from=%s, type=%s", msg.ID, msg.From, msg.Type)
		return
	}

	cfg, err := p.configs.GetActiveConfig(ctx)
	if err != nil {
		logger.L().Errorf("Failed to load active bot config, message ignored: id=%s, error=%v", msg.ID, err)
		return
	}
	if cfg == nil {
		logger.L().Warnf("No active bot config, message ignored: id=%s, from=%s", msg.ID, msg.From)
		return
	}
	if cfg.HasTargetGroup() && msg.From == cfg.TargetGroupID {
		return
	}

	intent := Classify(msg.Body)
	logger.L().Infof("Inbound message: id=%s, from=%s, intent=%s, config=%s", msg.ID, msg.From, intent, cfg.ID)

	switch intent {
	case IntentGreeting:
		p.handleGreeting(ctx, msg, cfg)
	default:
		p.handleSubmission(ctx, msg, cfg, intent)
	}
}

// handleGreeting 输入提示 -> 问候语 -> 表单提示，两次等待通过调度器完成
// 不产生提交记录
func (p *Pipeline) handleGreeting(ctx context.Context, msg *models.InboundMessage, cfg *models.BotConfig) {
	chatID := msg.From
	greeting := firstNonEmpty(cfg.GreetingMessage, p.greetingMessage)
	prompt := BuildFormPrompt(firstNonEmpty(cfg.FormMessage, p.formMessage), cfg.FormFields)
	sendPrompt := strings.TrimSpace(prompt.Text) != ""

	ctx = context.WithoutCancel(ctx)

	if err := p.gateway.StartTyping(ctx, chatID); err != nil {
		logger.L().Warnf("Start typing failed: chat=%s, error=%v", chatID, err)
	}

	p.scheduler.After(ctx, p.typingDelay, "greeting:"+msg.ID, func(ctx context.Context) {
		if err := p.gateway.StopTyping(ctx, chatID); err != nil {
			logger.L().Warnf("Stop typing failed: chat=%s, error=%v", chatID, err)
		}

		if greeting != "" {
			if err := p.gateway.SendText(ctx, chatID, greeting); err != nil {
				logger.L().Errorf("Send greeting failed: chat=%s, error=%v", chatID, err)
			}
		}

		if !sendPrompt {
			return
		}
		p.scheduler.After(ctx, p.formDelay, "form-prompt:"+msg.ID, func(ctx context.Context) {
			var err error
			if len(prompt.Buttons) == 0 {
				// 没有字段时只发送表单提示语
				err = p.gateway.SendText(ctx, chatID, prompt.Text)
			} else {
				err = p.gateway.SendButtons(ctx, chatID, prompt.Text, prompt.Buttons)
			}
			if err != nil {
				logger.L().Errorf("Send form prompt failed: chat=%s, error=%v", chatID, err)
			}
		})
	})
}

// handleSubmission 保存、转发并确认
// 存储失败只记日志，仍然转发和确认；panic 以致歉文案回复发送者
func (p *Pipeline) handleSubmission(ctx context.Context, msg *models.InboundMessage, cfg *models.BotConfig, intent Intent) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Errorf("Panic while handling message %s: %v", msg.ID, r)
			p.apologize(ctx, msg.From)
		}
	}()

	p.capture(ctx, msg, cfg, intent)
}

func (p *Pipeline) capture(ctx context.Context, msg *models.InboundMessage, cfg *models.BotConfig, intent Intent) {
	source := models.SourceDirect
	data := models.FormData{}.Set(models.DirectMessageKey, msg.Body)

	if intent == IntentStructuredForm {
		parsed, ok := ParseStructuredForm(msg.Body, cfg.FormFields)
		if !ok {
			if err := p.gateway.SendText(ctx, msg.From, InvalidFormatText); err != nil {
				logger.L().Errorf("Send format rejection failed: chat=%s, error=%v", msg.From, err)
			}
			return
		}
		source = models.SourceForm
		data = parsed
	}

	submission := &models.Submission{
		ID:          p.idFunc(),
		ConfigID:    cfg.ID,
		From:        msg.From,
		FromName:    msg.NotifyName,
		Source:      source,
		FormData:    data,
		SubmittedAt: p.nowFunc(),
	}
	if err := p.store.Create(ctx, submission); err != nil {
		logger.L().Errorf("Failed to store submission, continuing without persistence: id=%s, from=%s, error=%v",
			submission.ID, submission.From, err)
	}

	if cfg.HasTargetGroup() {
		p.forwarder.Forward(ctx, submission, cfg)
	}

	if err := p.gateway.SendText(ctx, msg.From, AckText); err != nil {
		logger.L().Errorf("Send acknowledgement failed: chat=%s, error=%v", msg.From, err)
	}
}

func (p *Pipeline) apologize(ctx context.Context, chatID string) {
	if err := p.gateway.SendText(ctx, chatID, ApologyText); err != nil {
		logger.L().Errorf("Send apology failed: chat=%s, error=%v", chatID, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
