// Package bot runs the operator Telegram bot.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

const (
	pollTimeout    = 60
	commandTimeout = 30 * time.Second
	maxInFlight    = 8
)

// AdminBot answers operator commands sent by allow-listed Telegram users.
type AdminBot struct {
	api      *tgbotapi.BotAPI
	commands *Commands
	admins   map[int64]struct{}
	done     chan struct{}
	log      *slog.Logger
}

func NewAdminBot(token string, commands *Commands, adminIDs []int64) (*AdminBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	b := &AdminBot{
		api:      api,
		commands: commands,
		admins:   admins,
		done:     make(chan struct{}),
		log:      logger.With("component", "admin_bot", "bot", api.Self.UserName),
	}
	b.log.Info("admin bot authorized", "admins", len(admins))
	return b, nil
}

// Run long-polls Telegram until ctx is cancelled, then waits for the
// commands still executing.
func (b *AdminBot) Run(ctx context.Context) {
	defer close(b.done)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(cfg)

	var g errgroup.Group
	g.SetLimit(maxInFlight)

poll:
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			break poll
		case upd, ok := <-updates:
			if !ok {
				break poll
			}
			msg := b.accept(upd)
			if msg == nil {
				continue
			}
			g.Go(func() error {
				b.reply(msg)
				return nil
			})
		}
	}
	_ = g.Wait()
	b.log.Info("admin bot stopped")
}

// Wait blocks until Run has returned or the timeout passes.
func (b *AdminBot) Wait(timeout time.Duration) {
	select {
	case <-b.done:
	case <-time.After(timeout):
		b.log.Warn("admin bot did not stop in time", "timeout", timeout)
	}
}

// accept filters an update down to a command from an operator.
func (b *AdminBot) accept(upd tgbotapi.Update) *tgbotapi.Message {
	msg := upd.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return nil
	}
	if _, ok := b.admins[msg.From.ID]; !ok {
		b.log.Warn("command from non-admin", "tg_id", msg.From.ID, "command", msg.Command())
		return nil
	}
	return msg
}

func (b *AdminBot) reply(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	started := time.Now()
	text := b.commands.Execute(ctx, msg.From.ID, msg.Command(), msg.CommandArguments())
	b.log.Info("admin command", "tg_id", msg.From.ID, "command", msg.Command(), "took", time.Since(started))

	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}
