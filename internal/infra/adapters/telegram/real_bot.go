package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/application"
	"telegram-subscription-checkout/internal/config"
	"telegram-subscription-checkout/internal/domain/ports/adapter"
	"telegram-subscription-checkout/internal/infra/logging"
	"telegram-subscription-checkout/internal/usecase"
)

var _ adapter.ChatAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter polls updates with tgbotapi and delegates to BotFacade.
// Updates for one chat are processed strictly in arrival order by a dedicated
// per-chat worker; chats never block each other.
type RealTelegramBotAdapter struct {
	bot       *tgbotapi.BotAPI
	cfg       *config.BotConfig
	facade    *application.BotFacade
	channelID int64
	log       *zerolog.Logger

	mu         sync.Mutex
	chatQueues map[int64]chan tgbotapi.Update

	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, channelID int64, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:        bot,
		cfg:        cfg,
		facade:     facade,
		channelID:  channelID,
		log:        &l,
		chatQueues: make(map[int64]chan tgbotapi.Update),
	}, nil
}

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-updates:
			r.dispatch(ctx, up)
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// dispatch routes an update to its chat's worker, spawning one if needed. The
// send happens under the lock so an idle worker cannot retire mid-enqueue.
func (r *RealTelegramBotAdapter) dispatch(ctx context.Context, up tgbotapi.Update) {
	chatID := updateChatID(up)
	if chatID == 0 {
		return
	}

	r.mu.Lock()
	ch, ok := r.chatQueues[chatID]
	if !ok {
		ch = make(chan tgbotapi.Update, 32)
		r.chatQueues[chatID] = ch
		go r.chatWorker(ctx, chatID, ch)
	}
	select {
	case ch <- up:
	default:
		r.log.Warn().Int64("chat_id", chatID).Msg("chat queue full, update dropped")
	}
	r.mu.Unlock()
}

// chatWorker drains one chat's queue sequentially and retires after idling.
func (r *RealTelegramBotAdapter) chatWorker(ctx context.Context, chatID int64, ch chan tgbotapi.Update) {
	idle := time.NewTimer(5 * time.Minute)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case up := <-ch:
			if err := r.handleUpdate(ctx, up); err != nil {
				r.log.Error().Err(err).Int64("chat_id", chatID).Msg("update handling failed")
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(5 * time.Minute)
		case <-idle.C:
			r.mu.Lock()
			if len(ch) == 0 {
				delete(r.chatQueues, chatID)
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
			idle.Reset(5 * time.Minute)
		}
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, up tgbotapi.Update) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var (
		replies []usecase.Reply
		chatID  int64
		err     error
	)
	switch {
	case up.CallbackQuery != nil:
		cb := up.CallbackQuery
		chatID = cb.Message.Chat.ID
		ctx = logging.WithChatID(ctx, chatID)
		// Stop the client-side spinner regardless of the outcome.
		if _, ackErr := r.bot.Request(tgbotapi.NewCallback(cb.ID, "")); ackErr != nil {
			logging.With(ctx, r.log).Debug().Err(ackErr).Msg("callback ack failed")
		}
		replies, err = r.facade.HandleCallback(ctx, chatID, userHandle(cb.From), cb.Data)
	case up.Message != nil:
		chatID = up.Message.Chat.ID
		ctx = logging.WithChatID(ctx, chatID)
		replies, err = r.facade.HandleText(ctx, chatID, userHandle(up.Message.From), up.Message.Text)
	default:
		return nil
	}

	if err != nil {
		_ = r.SendMessage(ctx, chatID, "Something went wrong. Please try again later.")
		return err
	}
	for _, reply := range replies {
		if reply.ImageURL != "" {
			if err := r.SendImage(ctx, chatID, reply.ImageURL, reply.Text); err != nil {
				return err
			}
			continue
		}
		if len(reply.Rows) > 0 {
			if err := r.SendButtons(ctx, chatID, reply.Text, reply.Rows); err != nil {
				return err
			}
			continue
		}
		if err := r.SendMessage(ctx, chatID, reply.Text); err != nil {
			return err
		}
	}
	return nil
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendButtons sends a message with inline buttons.
// - If btn.URL is set, the button opens a link
// - Else the button sends its callback data
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var line []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			switch {
			case b.URL != "":
				line = append(line, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			case b.Data != "":
				line = append(line, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			default:
				line = append(line, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Text))
			}
		}
		kb = append(kb, line)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kb...)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) SendImage(ctx context.Context, chatID int64, url, caption string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = caption
	_, err := r.bot.Send(photo)
	return err
}

// CreateInviteLink issues a single-use invite to the paid channel.
func (r *RealTelegramBotAdapter) CreateInviteLink(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: r.channelID},
		MemberLimit: 1,
	}
	resp, err := r.bot.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("create invite link: %w", err)
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	return link.InviteLink, nil
}

// userHandle prefers the username and falls back to the numeric id, which is
// stable either way for upsert-by-handle.
func userHandle(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strconv.FormatInt(u.ID, 10)
}

func updateChatID(up tgbotapi.Update) int64 {
	switch {
	case up.Message != nil:
		return up.Message.Chat.ID
	case up.CallbackQuery != nil && up.CallbackQuery.Message != nil:
		return up.CallbackQuery.Message.Chat.ID
	}
	return 0
}
