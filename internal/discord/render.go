package discord

import (
	"github.com/bwmarrin/discordgo"

	"game-buddy/internal/result"
)

const EmbedColor = 0x4f91ff

// respond answers an interaction with a rendered result.
func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, r result.CommandResult) {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{renderEmbed(r)},
	}
	if r.Ephemeral || !r.OK {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("failed to respond to interaction")
	}
}

// deliverFollowup sends an asynchronously-completed result as a followup on
// the original interaction. Used when a command resumed after a pending
// authentication.
func (b *Bot) deliverFollowup(s *discordgo.Session, i *discordgo.InteractionCreate, r result.CommandResult) {
	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{renderEmbed(r)},
	}
	if r.Ephemeral || !r.OK {
		params.Flags = discordgo.MessageFlagsEphemeral
	}

	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		b.log.Error().Err(err).Msg("failed to deliver followup result")
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// renderEmbed maps the channel-agnostic component sequence to a Discord
// embed. Sections become fields, plain text joins the description,
// attachments are referenced by name.
func renderEmbed(r result.CommandResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Color: EmbedColor}

	if !r.OK {
		embed.Description = r.Message
		embed.Color = 0xcc3344
		return embed
	}

	var description string
	for _, c := range r.Components {
		switch v := c.(type) {
		case result.Text:
			if description != "" {
				description += "\n"
			}
			description += v.Content
		case result.Attachment:
			if description != "" {
				description += "\n"
			}
			description += "📎 " + v.FileName
		case result.Section:
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  v.Title,
				Value: result.CommandResult{OK: true, Components: v.Components}.PlainText(),
			})
		}
	}
	embed.Description = description
	return embed
}
