package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// ChatAdapter is the outbound chat transport. Keyboards are label -> opaque
// callback token pairs; the adapter never interprets the tokens.
type ChatAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	SendImage(ctx context.Context, chatID int64, url, caption string) error
	// CreateInviteLink issues a fresh single-use invite to the paid channel.
	CreateInviteLink(ctx context.Context) (string, error)
}
