package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"photo-review-backend/internal/ledger"
	"photo-review-backend/internal/verdict"
)

var ErrMalformedEvent = errors.New("malformed interaction event")

// Outcome of applying one verdict to the ledger.
type Outcome int

const (
	OutcomeResolved Outcome = iota
	OutcomeAlreadyResolved
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeAlreadyResolved:
		return "already_resolved"
	default:
		return "invalid"
	}
}

const (
	msgInvalid     = "Invalid or unknown request."
	msgAlready     = "This request has already been judged (%s)."
	msgResolved    = "Verdict recorded: %s"
	msgUnsupported = "Unsupported interaction."
)

// Resolver is the ledger transition the dispatcher drives.
type Resolver interface {
	Resolve(id, result string) (ledger.Record, error)
}

// Dispatcher turns verified callback events into ledger transitions.
type Dispatcher struct {
	ledger Resolver
}

func New(l Resolver) *Dispatcher {
	return &Dispatcher{ledger: l}
}

// HandleInteraction decodes a verified interaction body and returns the
// response to send back. Only decode failures are errors; every decodable
// event gets a response.
func (d *Dispatcher) HandleInteraction(rawBody []byte) (*discordgo.InteractionResponse, error) {
	var i discordgo.Interaction
	if err := json.Unmarshal(rawBody, &i); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch i.Type {
	case discordgo.InteractionPing:
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}, nil

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		tok, err := verdict.ParseToken(customID)
		if err != nil {
			log.Debug().Err(err).Str("custom_id", customID).Str("reviewer", reviewer(&i)).Msg("ignoring malformed action token")
			return ephemeral(msgInvalid), nil
		}
		outcome, rec := d.apply(tok, reviewer(&i))
		switch outcome {
		case OutcomeResolved:
			return ephemeral(fmt.Sprintf(msgResolved, rec.Result)), nil
		case OutcomeAlreadyResolved:
			return ephemeral(fmt.Sprintf(msgAlready, rec.Result)), nil
		default:
			return ephemeral(msgInvalid), nil
		}

	default:
		log.Debug().Int("type", int(i.Type)).Msg("unsupported interaction type")
		return ephemeral(msgUnsupported), nil
	}
}

// HandleCommand applies a "!rate <id> <verdict...>" text command. Malformed
// content, unknown ids and already-judged ids are no-ops.
func (d *Dispatcher) HandleCommand(content, author string) Outcome {
	tok, ok := verdict.ParseCommand(content)
	if !ok {
		log.Debug().Str("author", author).Msg("ignoring malformed rate command")
		return OutcomeInvalid
	}
	outcome, _ := d.apply(tok, author)
	return outcome
}

func (d *Dispatcher) apply(tok verdict.Token, by string) (Outcome, ledger.Record) {
	rec, err := d.ledger.Resolve(tok.ID, tok.Verdict)
	switch {
	case err == nil:
		log.Info().Str("id", tok.ID).Str("verdict", tok.Verdict).Str("reviewer", by).Msg("request judged")
		return OutcomeResolved, rec
	case errors.Is(err, ledger.ErrAlreadyResolved):
		log.Debug().Str("id", tok.ID).Str("verdict", tok.Verdict).Str("reviewer", by).Msg("request already judged")
		return OutcomeAlreadyResolved, rec
	default:
		log.Debug().Err(err).Str("id", tok.ID).Str("reviewer", by).Msg("verdict rejected")
		return OutcomeInvalid, rec
	}
}

func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

func reviewer(i *discordgo.Interaction) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.Username
	case i.User != nil:
		return i.User.Username
	default:
		return ""
	}
}
