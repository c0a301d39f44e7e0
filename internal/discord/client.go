package discord

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"photo-review-backend/internal/notifier"
	"photo-review-backend/internal/storage"
	"photo-review-backend/internal/verdict"
)

// MessageSender is the part of *discordgo.Session the client needs.
type MessageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Client posts review requests to the reviewers' channel.
type Client struct {
	session   MessageSender
	channelID string
	vocab     verdict.Vocabulary
}

func NewClient(botToken, channelID string, vocab verdict.Vocabulary) (*Client, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return NewClientWithSession(session, channelID, vocab), nil
}

func NewClientWithSession(session MessageSender, channelID string, vocab verdict.Vocabulary) *Client {
	return &Client{
		session:   session,
		channelID: channelID,
		vocab:     vocab,
	}
}

// Send implements notifier.Sender.
func (c *Client) Send(ctx context.Context, n notifier.Notification) error {
	msg, err := c.session.ChannelMessageSendComplex(c.channelID, BuildReviewMessage(n, c.vocab), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send review request %s: %w", n.ID, err)
	}
	if msg == nil {
		return fmt.Errorf("failed to send review request %s: empty response", n.ID)
	}
	return nil
}

// BuildReviewMessage renders the photo, the client's metadata and one button
// per verdict label. Each button carries the action token for that verdict.
func BuildReviewMessage(n notifier.Notification, vocab verdict.Vocabulary) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title:       "Rating request",
		Description: fmt.Sprintf("Request `%s`", n.ID),
	}
	for _, f := range []struct{ name, value string }{
		{"Score", n.Score},
		{"Percent", n.Percent},
		{"Feedback", n.Feedback},
	} {
		if f.value == "" {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.name,
			Value:  f.value,
			Inline: true,
		})
	}

	msg := &discordgo.MessageSend{
		Content: fmt.Sprintf("New photo to judge: `%s` (or reply `%s %s <verdict>`)", n.ID, verdict.CommandPrefix, n.ID),
		Embeds:  []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: ReviewButtons(n.ID, vocab)},
		},
	}

	switch {
	case len(n.Image) > 0:
		// Attachment names must be URL-safe for attachment:// to resolve.
		name := storage.ObjectKey(n.ID, n.Filename, n.ContentType)
		msg.Files = []*discordgo.File{{
			Name:        name,
			ContentType: n.ContentType,
			Reader:      bytes.NewReader(n.Image),
		}}
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + name}
	case strings.HasPrefix(n.ImageURL, "http://") || strings.HasPrefix(n.ImageURL, "https://"):
		embed.Image = &discordgo.MessageEmbedImage{URL: n.ImageURL}
	}

	return msg
}

func ReviewButtons(id string, vocab verdict.Vocabulary) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(vocab.Labels))
	for _, label := range vocab.Labels {
		style := discordgo.PrimaryButton
		if vocab.IsDestructive(label) {
			style = discordgo.DangerButton
		}
		buttons = append(buttons, discordgo.Button{
			Label:    label,
			Style:    style,
			CustomID: verdict.FormatToken(id, label),
		})
	}
	return buttons
}
