package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"game-buddy/internal/auth"
	"game-buddy/internal/executor"
	"game-buddy/internal/result"
)

const authModalPrefix = "auth_modal:"

// handleCommand builds a CommandContext from a slash-command interaction and
// runs the pipeline. Synchronous results answer the interaction directly;
// pending invocations are answered later via followup once the credential
// submission resolves them.
func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	cc := executor.NewContext(interactionUserID(i), data.Name)
	cc.Data = i
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			cc.SetParam(opt.Name, opt.StringValue())
		case discordgo.ApplicationCommandOptionInteger, discordgo.ApplicationCommandOptionNumber:
			cc.SetParam(opt.Name, opt.FloatValue())
		}
	}

	cc.OnDeliver(func(r result.CommandResult) {
		b.deliverFollowup(s, i, r)
	})

	outcome := b.exec.Execute(context.Background(), cc)
	if outcome.Pending {
		// The credential modal was already sent as the interaction
		// response; nothing more to say until the submission arrives.
		return
	}
	b.respond(s, i, outcome.Result)
}

// PromptCredential opens the credential modal as the response to the
// originating interaction. Implements executor.PromptSender.
func (b *Bot) PromptCredential(cc *executor.CommandContext, requestID string) error {
	i, ok := cc.Data.(*discordgo.InteractionCreate)
	if !ok {
		return errNotDiscordInvocation
	}

	return b.dg.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: authModalPrefix + requestID,
			Title:    "Authenticate with HoYoLAB",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    "uid",
						Label:       "HoYoLAB UID (ltuid)",
						Style:       discordgo.TextInputShort,
						Required:    true,
						Placeholder: "e.g. 123456789",
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "token",
						Label:    "HoYoLAB token (ltoken)",
						Style:    discordgo.TextInputShort,
						Required: true,
					},
				}},
			},
		},
	})
}

// handleAuthModal feeds a submitted credential into the correlator. The
// submission may resume a command suspended by this or any other event.
func (b *Bot) handleAuthModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	if !strings.HasPrefix(data.CustomID, authModalPrefix) {
		return
	}

	cred := auth.Credential{}
	for _, row := range data.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			input, ok := c.(*discordgo.TextInput)
			if !ok {
				continue
			}
			switch input.CustomID {
			case "uid":
				cred.UID = strings.TrimSpace(input.Value)
			case "token":
				cred.Token = strings.TrimSpace(input.Value)
			}
		}
	}

	userID := interactionUserID(i)

	if !cred.Valid() {
		respondEphemeral(s, i, "Both UID and token are required.")
		return
	}

	err := b.corr.Resolve(userID, cred)
	if err != nil {
		respondEphemeral(s, i, "No pending authentication request was found. Run a command first.")
		return
	}
	respondEphemeral(s, i, "Credentials received. Your command is running…")
}

var errNotDiscordInvocation = discordError("invocation did not originate from Discord")

type discordError string

func (e discordError) Error() string { return string(e) }

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
