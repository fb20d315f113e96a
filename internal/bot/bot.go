package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reelbot/reelbot/internal/config"
	"github.com/reelbot/reelbot/internal/media"
	"github.com/reelbot/reelbot/internal/picker"
	"github.com/reelbot/reelbot/internal/telegram"
)

const (
	noMoreResultsText = "No more results to show"
	wentWrongText     = "Something went wrong"
)

// Bot wires the Telegram transport to the picker service and enforces the
// admin allowlist.
type Bot struct {
	tg             *telegram.Client
	picker         *picker.Service
	admins         map[int64]bool
	operatorChatID int64
	logger         zerolog.Logger
}

// New creates the bot front end.
func New(tg *telegram.Client, svc *picker.Service, cfg config.TelegramConfig, logger zerolog.Logger) *Bot {
	admins := make(map[int64]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}
	return &Bot{
		tg:             tg,
		picker:         svc,
		admins:         admins,
		operatorChatID: cfg.OperatorChatID,
		logger:         logger.With().Str("component", "bot").Logger(),
	}
}

// NotifyStarted tells the operator chat the bot is up.
func (b *Bot) NotifyStarted(ctx context.Context) {
	if b.operatorChatID == 0 {
		return
	}
	if err := b.tg.SendMessage(ctx, b.operatorChatID, "Bot started!", nil); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to send startup notice")
	}
}

// HandleMessage processes one inbound command message.
func (b *Bot) HandleMessage(ctx context.Context, msg *telegram.Message) {
	if !b.allowed(msg.From) {
		return
	}

	command, args := splitCommand(msg.Text)
	chatID := msg.Chat.ID

	switch command {
	case "search":
		b.handleSearch(ctx, chatID, args, media.KindMovie)
	case "serie":
		b.handleSearch(ctx, chatID, args, media.KindSeries)
	case "movie":
		b.handleLookup(ctx, chatID, args)
	case "help", "start":
		b.handleHelp(ctx, chatID)
	case "":
		// plain text, nothing to do
	default:
		b.logger.Debug().Str("command", command).Msg("Unknown command")
	}
}

// HandleCallback processes one button press. The callback query is always
// answered, even when the payload turns out to be useless, so the client
// stops showing its progress indicator.
func (b *Bot) HandleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if !b.allowed(&cb.From) {
		return
	}

	if err := b.tg.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		b.logger.Warn().Err(err).Str("callbackID", cb.ID).Msg("Failed to answer callback query")
	}

	if cb.Message == nil {
		b.reportOperator(ctx, fmt.Sprintf("callback %s arrived without a message", cb.ID))
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	b.typing(ctx, chatID)
	b.logger.Info().Str("data", cb.Data).Int64("chatID", chatID).Msg("Callback received")

	envelope, err := Decode(cb.Data)
	if err != nil {
		// The user interaction stays unresolved; the silent callback
		// answer above is all they get.
		b.reportOperator(ctx, fmt.Sprintf("malformed callback payload %q: %v", cb.Data, err))
		return
	}

	switch envelope.Kind() {
	case EnvelopeAcceptMovie:
		b.edit(ctx, chatID, messageID, b.picker.AcceptMovie(ctx, envelope.ID()))
	case EnvelopeAcceptSeries:
		b.edit(ctx, chatID, messageID, b.picker.AcceptSeries(ctx, envelope.ID()))
	case EnvelopeAdvance:
		page := b.picker.Advance(ctx, chatID, envelope.Idx())
		if page == nil {
			b.edit(ctx, chatID, messageID, noMoreResultsText)
			return
		}
		b.edit(ctx, chatID, messageID, "Loading...")
		b.sendCandidate(ctx, chatID, page.Candidate, page.NextIdx)
	}
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, query string, kind media.Kind) {
	b.typing(ctx, chatID)

	subject := "movie"
	if kind == media.KindSeries {
		subject = "serie"
	}

	if query == "" {
		b.send(ctx, chatID, fmt.Sprintf("Please write the name of the %s you want to search", subject))
		return
	}

	page, err := b.picker.StartSearch(ctx, chatID, query, kind)
	if err != nil {
		if errors.Is(err, picker.ErrNoResults) {
			b.send(ctx, chatID, fmt.Sprintf("No %s found", subject))
			return
		}
		b.logger.Error().Err(err).Str("query", query).Str("kind", string(kind)).Msg("Search failed")
		b.send(ctx, chatID, wentWrongText)
		return
	}

	b.sendCandidate(ctx, chatID, page.Candidate, page.NextIdx)
}

func (b *Bot) handleLookup(ctx context.Context, chatID int64, args string) {
	b.typing(ctx, chatID)

	if args == "" {
		b.send(ctx, chatID, "missing movie id")
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		b.send(ctx, chatID, "missing movie id")
		return
	}

	candidate, err := b.picker.Lookup(ctx, id)
	if err != nil {
		b.logger.Error().Err(err).Int64("id", id).Msg("Lookup failed")
		b.send(ctx, chatID, wentWrongText)
		return
	}

	b.sendPoster(ctx, chatID, candidate)
	b.sendChoices(ctx, chatID, candidate, -1)
}

func (b *Bot) handleHelp(ctx context.Context, chatID int64) {
	help := "Hello, I'm Reelbot. I have the following commands:\n" +
		"- /search <name of the movie>: search for a movie\n" +
		"- /serie <name of the serie>: search for a serie\n" +
		"- /movie <id of the movie>: look up a movie by its id\n\n" +
		"If you don't know the id, use /search and page through the " +
		"results with the Next button. Ids can also be found in " +
		"https://www.themoviedb.org/ URLs, e.g. 603 in " +
		"https://www.themoviedb.org/movie/603-the-matrix"
	b.send(ctx, chatID, help)
}

// sendCandidate displays one candidate: poster with caption, then the
// Confirm / Next choices. nextIdx seeds the Next button's envelope.
func (b *Bot) sendCandidate(ctx context.Context, chatID int64, candidate *media.Candidate, nextIdx int) {
	b.sendPoster(ctx, chatID, candidate)
	b.sendChoices(ctx, chatID, candidate, nextIdx)
}

// sendPoster sends the photo+caption, falling back to a plain text caption
// when the photo is rejected (broken poster URLs are common enough).
func (b *Bot) sendPoster(ctx context.Context, chatID int64, candidate *media.Candidate) {
	if err := b.tg.SendPhoto(ctx, chatID, candidate.PosterURL, candidate.Caption()); err != nil {
		b.logger.Warn().Err(err).Str("poster", candidate.PosterURL).Msg("Failed to send photo, falling back to text")
		b.send(ctx, chatID, candidate.Caption())
	}
}

// sendChoices renders the Confirm button, plus Next when nextIdx >= 0.
func (b *Bot) sendChoices(ctx context.Context, chatID int64, candidate *media.Candidate, nextIdx int) {
	var confirm Envelope
	prompt := "Is this the movie?"
	if candidate.Kind == media.KindSeries {
		confirm = AcceptSeries(strconv.FormatInt(candidate.TmdbID, 10))
		prompt = "Is this the serie?"
	} else {
		confirm = AcceptMovie(strconv.FormatInt(candidate.TmdbID, 10))
	}

	confirmData, err := confirm.Encode()
	if err != nil {
		b.reportOperator(ctx, fmt.Sprintf("failed to encode confirm envelope: %v", err))
		return
	}

	row := []telegram.InlineKeyboardButton{
		{Text: "Confirm", CallbackData: confirmData},
	}

	if nextIdx >= 0 {
		nextData, err := Advance(nextIdx).Encode()
		if err != nil {
			b.reportOperator(ctx, fmt.Sprintf("failed to encode advance envelope: %v", err))
			return
		}
		row = append(row, telegram.InlineKeyboardButton{Text: "Next", CallbackData: nextData})
	}

	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{row}}
	if err := b.tg.SendMessage(ctx, chatID, prompt, markup); err != nil {
		b.logger.Error().Err(err).Int64("chatID", chatID).Msg("Failed to send choices")
	}
}

// allowed checks the admin allowlist. Everyone else is logged and ignored.
func (b *Bot) allowed(user *telegram.User) bool {
	if user == nil || !b.admins[user.ID] {
		if user != nil {
			b.logger.Warn().Int64("userID", user.ID).Str("username", user.Username).Msg("Access denied")
		}
		return false
	}
	b.logger.Debug().Int64("userID", user.ID).Msg("Access granted")
	return true
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if err := b.tg.SendMessage(ctx, chatID, text, nil); err != nil {
		b.logger.Error().Err(err).Int64("chatID", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) edit(ctx context.Context, chatID, messageID int64, text string) {
	if err := b.tg.EditMessageText(ctx, chatID, messageID, text); err != nil {
		b.logger.Error().Err(err).Int64("chatID", chatID).Msg("Failed to edit message")
		b.reportOperator(ctx, fmt.Sprintf("failed to edit message in chat %d: %v", chatID, err))
	}
}

func (b *Bot) typing(ctx context.Context, chatID int64) {
	if err := b.tg.SendChatAction(ctx, chatID, telegram.ActionTyping); err != nil {
		b.logger.Debug().Err(err).Int64("chatID", chatID).Msg("Failed to send chat action")
	}
}

// reportOperator sends fault reports to the fixed operator chat, never to
// the end user.
func (b *Bot) reportOperator(ctx context.Context, text string) {
	b.logger.Error().Str("report", text).Msg("Operator report")
	if b.operatorChatID == 0 {
		return
	}
	if err := b.tg.SendMessage(ctx, b.operatorChatID, text, nil); err != nil {
		b.logger.Error().Err(err).Msg("Failed to reach operator chat")
	}
}

// splitCommand splits "/search@reelbot the matrix" into ("search", "the matrix").
// Non-command text yields ("", "").
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return command, strings.Join(fields[1:], " ")
}
