package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"jobook/internal/config"
	"jobook/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Notifier 管理员通知
type Notifier interface {
	CompanyRegistered(ctx context.Context, msg storage.CompanyRegisteredMessage) error
}

// WebhookExecutor 由 *discordgo.Session 实现
type WebhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ WebhookExecutor = (*discordgo.Session)(nil)

const pendingColor = 0xF5A623

// DiscordNotifier 通过 Discord webhook 推送待审核公司
type DiscordNotifier struct {
	exec      WebhookExecutor
	webhookID string
	token     string
	username  string
	logger    zerolog.Logger
}

// New 未配置 webhook 时返回 Nop
func New(cfg config.NotifyConfig, logger zerolog.Logger) (Notifier, error) {
	if cfg.DiscordWebhookID == "" || cfg.DiscordWebhookToken == "" {
		logger.Info().Msg("Discord webhook 未配置，管理员通知关闭")
		return Nop{}, nil
	}
	// webhook 调用不需要 bot token
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	return NewDiscordNotifier(session, cfg.DiscordWebhookID, cfg.DiscordWebhookToken, logger), nil
}

// NewDiscordNotifier 使用给定的执行器
func NewDiscordNotifier(exec WebhookExecutor, webhookID, token string, logger zerolog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		exec:      exec,
		webhookID: webhookID,
		token:     token,
		username:  "jobook",
		logger:    logger.With().Str("component", "discord_notifier").Logger(),
	}
}

// CompanyRegistered 发送一条嵌入消息
func (n *DiscordNotifier) CompanyRegistered(ctx context.Context, msg storage.CompanyRegisteredMessage) error {
	params := &discordgo.WebhookParams{
		Username: n.username,
		Content:  "New company awaiting review",
		Embeds:   []*discordgo.MessageEmbed{companyEmbed(msg)},
	}
	_, err := n.exec.WebhookExecute(n.webhookID, n.token, false, params, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	n.logger.Info().Uint64("company_id", msg.CompanyID).Msg("已通知管理员审核公司")
	return nil
}

func companyEmbed(msg storage.CompanyRegisteredMessage) *discordgo.MessageEmbed {
	registered := msg.RegisteredAt
	if registered.IsZero() {
		registered = time.Now()
	}
	return &discordgo.MessageEmbed{
		Title:     msg.Name,
		Color:     pendingColor,
		Timestamp: registered.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Company ID", Value: strconv.FormatUint(msg.CompanyID, 10), Inline: true},
			{Name: "Owner", Value: fallback(msg.OwnerEmail, strconv.FormatUint(msg.OwnerID, 10)), Inline: true},
		},
	}
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Nop 丢弃所有通知
type Nop struct{}

// CompanyRegistered 什么也不做
func (Nop) CompanyRegistered(context.Context, storage.CompanyRegisteredMessage) error { return nil }

// CompanyRegisteredHandler 解码 company.registered 消息并通知，可直接交给 RabbitMQ 消费者
func CompanyRegisteredHandler(n Notifier, logger zerolog.Logger) func(ctx context.Context, body []byte) error {
	log := logger.With().Str("component", "company_registered_consumer").Logger()
	return func(ctx context.Context, body []byte) error {
		var msg storage.CompanyRegisteredMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			log.Error().Err(err).Msg("无法解析 company.registered 消息，丢弃")
			return nil
		}
		if msg.CompanyID == 0 {
			log.Warn().Msg("company.registered 消息缺少 company_id，丢弃")
			return nil
		}
		return n.CompanyRegistered(ctx, msg)
	}
}
