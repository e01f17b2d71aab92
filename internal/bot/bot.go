package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mkwab/internal/logic"
	"mkwab/internal/messages"
	"mkwab/internal/roster"
	"mkwab/internal/teams"
)

// Sender is the part of *tgbotapi.BotAPI the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Store interface {
	UpsertChat(chatID int64, title string) error
	ResetParticipation(ctx context.Context) (int64, error)
	ExpireResults(ctx context.Context, before time.Time) ([]int64, error)
}

type Bot struct {
	API   Sender
	Store Store
	Teams *teams.Service
	Log   *zap.Logger
	// Limiter throttles outgoing API calls.
	Limiter *rate.Limiter

	queues *xsync.Map[int64, chan tgbotapi.Update]
	wg     sync.WaitGroup
}

// queueSize is how many updates of one chat may wait for its worker.
const queueSize = 64

func New(api Sender, store Store, svc *teams.Service, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		API:     api,
		Store:   store,
		Teams:   svc,
		Log:     log,
		Limiter: rate.NewLimiter(25, 5),
		queues:  xsync.NewMap[int64, chan tgbotapi.Update](),
	}
}

// Start handles updates until ctx is done or the channel closes, then waits
// for the chat workers to drain. Each chat has its own worker, so updates of
// one chat are handled in order and a slow chat does not hold up the others.
func (b *Bot) Start(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer b.wg.Wait()
	defer b.closeQueues()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			chatID, ok := updateChat(upd)
			if !ok {
				continue
			}
			select {
			case b.queue(ctx, chatID) <- upd:
			case <-ctx.Done():
				return
			}
		}
	}
}

// queue returns the chat's update queue, starting its worker on first use.
// Only the Start loop calls it.
func (b *Bot) queue(ctx context.Context, chatID int64) chan<- tgbotapi.Update {
	q, loaded := b.queues.LoadOrStore(chatID, make(chan tgbotapi.Update, queueSize))
	if !loaded {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for upd := range q {
				if ctx.Err() != nil {
					continue
				}
				b.handleUpdate(ctx, upd)
			}
		}()
	}
	return q
}

func (b *Bot) closeQueues() {
	b.queues.Range(func(_ int64, q chan tgbotapi.Update) bool {
		close(q)
		return true
	})
	b.queues.Clear()
}

func updateChat(upd tgbotapi.Update) (int64, bool) {
	switch {
	case upd.MyChatMember != nil:
		return upd.MyChatMember.Chat.ID, true
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		return upd.CallbackQuery.Message.Chat.ID, true
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID, true
	}
	return 0, false
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.MyChatMember != nil {
		b.onMyChatMember(ctx, *upd.MyChatMember)
		return
	}
	if cb := upd.CallbackQuery; cb != nil {
		b.onCallback(ctx, cb)
		return
	}
	if m := upd.Message; m != nil && m.IsCommand() {
		b.onCommand(ctx, m)
	}
}

func (b *Bot) onMyChatMember(ctx context.Context, m tgbotapi.ChatMemberUpdated) {
	status := m.NewChatMember.Status
	if status == "member" || status == "administrator" || status == "creator" {
		if err := b.Store.UpsertChat(m.Chat.ID, m.Chat.Title); err != nil {
			b.Log.Error("upsert chat", zap.Int64("chat_id", m.Chat.ID), zap.Error(err))
		}
		b.reply(ctx, m.Chat.ID, messages.IntroMessage)
	}
}

func (b *Bot) onCommand(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID
	args := strings.TrimSpace(m.CommandArguments())
	log := b.Log.With(zap.Int64("chat_id", chatID), zap.String("command", m.Command()))
	if err := b.Store.UpsertChat(chatID, m.Chat.Title); err != nil {
		log.Error("upsert chat", zap.Error(err))
	}

	var err error
	switch m.Command() {
	case "start":
		b.reply(ctx, chatID, messages.IntroMessage)
	case "help":
		b.reply(ctx, chatID, messages.HelpMessage)
	case "add":
		err = b.cmdAdd(ctx, chatID, args)
	case "append":
		err = b.cmdAppend(ctx, chatID, args)
	case "set":
		err = b.cmdSet(ctx, chatID, args)
	case "clear":
		err = b.cmdClear(ctx, chatID, args)
	case "list":
		err = b.cmdList(ctx, chatID)
	case "toggle":
		err = b.cmdToggle(ctx, chatID, args)
	case "teams":
		err = b.cmdTeams(ctx, chatID, args)
	case "mult":
		err = b.cmdMult(ctx, chatID, args)
	case "random":
		err = b.cmdRandom(ctx, chatID)
	case "split":
		err = b.cmdSplit(ctx, chatID)
	case "reset":
		if err = b.Teams.Reset(ctx, chatID); err == nil {
			b.reply(ctx, chatID, messages.ResetDone)
		}
	default:
		b.reply(ctx, chatID, messages.UnknownCommand)
	}
	if err != nil {
		log.Error("command failed", zap.Error(err))
		b.reply(ctx, chatID, messages.InternalError)
	}
}

func (b *Bot) cmdAdd(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		b.reply(ctx, chatID, messages.AddUsage)
		return nil
	}
	applied, problems, err := b.Teams.ApplyBulk(ctx, chatID, args)
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, messages.ParseReport(applied, problems))
	return nil
}

func (b *Bot) cmdAppend(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		b.reply(ctx, chatID, messages.AppendUsage)
		return nil
	}
	applied, problems, err := b.Teams.AppendBulk(ctx, chatID, args)
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, messages.ParseReport(applied, problems))
	return nil
}

// cmdSet handles "/set 3 name:rating".
func (b *Bot) cmdSet(ctx context.Context, chatID int64, args string) error {
	num, text := args, ""
	if i := strings.IndexFunc(args, unicode.IsSpace); i >= 0 {
		num, text = args[:i], args[i:]
	}
	slot, err := strconv.Atoi(num)
	if err != nil || strings.TrimSpace(text) == "" {
		b.reply(ctx, chatID, messages.SetUsage)
		return nil
	}
	s, err := b.Teams.SetSlot(ctx, chatID, slot, text)
	var entryErr roster.EntryError
	switch {
	case errors.Is(err, roster.ErrBadSlot):
		b.reply(ctx, chatID, messages.BadSlot())
	case errors.As(err, &entryErr):
		b.reply(ctx, chatID, messages.ParseReport(0, []roster.EntryError{entryErr}))
	case errors.Is(err, teams.ErrOneEntry):
		b.reply(ctx, chatID, messages.SetUsage)
	case err != nil:
		return err
	default:
		b.reply(ctx, chatID, messages.SlotSet(slot-1, s))
	}
	return nil
}

func (b *Bot) cmdClear(ctx context.Context, chatID int64, args string) error {
	slot, err := strconv.Atoi(args)
	if err != nil {
		b.reply(ctx, chatID, messages.ClearUsage)
		return nil
	}
	err = b.Teams.ClearSlot(ctx, chatID, slot)
	switch {
	case errors.Is(err, roster.ErrBadSlot):
		b.reply(ctx, chatID, messages.BadSlot())
	case err != nil:
		return err
	default:
		b.reply(ctx, chatID, messages.SlotCleared(slot-1))
	}
	return nil
}

func (b *Bot) cmdList(ctx context.Context, chatID int64) error {
	r, err := b.Teams.Roster(chatID)
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, messages.Roster(r))
	return nil
}

func (b *Bot) cmdToggle(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		b.reply(ctx, chatID, messages.ToggleUsage)
		return nil
	}
	slot, err := b.Teams.Toggle(ctx, chatID, args)
	if errors.Is(err, roster.ErrNoMatch) {
		b.reply(ctx, chatID, messages.NoMatch(args))
		return nil
	}
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, messages.Toggled(slot))
	return nil
}

func (b *Bot) cmdTeams(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		ks, err := b.Teams.TeamCounts(chatID)
		if err != nil {
			return err
		}
		b.reply(ctx, chatID, messages.TeamCounts(ks)+"\n"+messages.TeamsUsage)
		return nil
	}
	ks, ok := parseTeamCounts(args)
	if !ok {
		b.reply(ctx, chatID, messages.TeamsUsage)
		return nil
	}
	ks, err := b.Teams.SetTeamCounts(ctx, chatID, ks)
	if errors.Is(err, teams.ErrBadTeamCount) {
		b.reply(ctx, chatID, messages.TeamsUsage)
		return nil
	}
	if err != nil {
		return err
	}
	b.reply(ctx, chatID, messages.TeamCounts(ks))
	return nil
}

// parseTeamCounts accepts "2 3 4" and "2,3,4".
func parseTeamCounts(s string) ([]int, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '、' || r == '\n' || r == '\t'
	})
	ks := make([]int, 0, len(fields))
	for _, f := range fields {
		k, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		ks = append(ks, k)
	}
	return ks, len(ks) > 0
}

func (b *Bot) cmdMult(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		m, err := b.Teams.Multiplier(chatID)
		if err != nil {
			return err
		}
		b.reply(ctx, chatID, messages.Multiplier(m.String())+"\n"+messages.MultUsage)
		return nil
	}
	m, err := b.Teams.SetMultiplier(ctx, chatID, args)
	if err != nil {
		b.reply(ctx, chatID, messages.MultUsage)
		return nil
	}
	b.reply(ctx, chatID, messages.Multiplier(m.String()))
	return nil
}

func (b *Bot) cmdRandom(ctx context.Context, chatID int64) error {
	r, err := b.Teams.Randomize(ctx, chatID)
	if err != nil {
		return err
	}
	opts := b.Teams.Options()
	b.reply(ctx, chatID, messages.Randomized(opts.RandomMin, opts.RandomMax)+"\n"+messages.Roster(r))
	return nil
}

func (b *Bot) cmdSplit(ctx context.Context, chatID int64) error {
	a, err := b.Teams.Assign(ctx, chatID)
	return b.publish(ctx, chatID, a, err)
}

// publish sends the outcome of an Assign call: a summary and one message per
// team count carrying the winner buttons. Expected assignment failures are
// reported to the chat and not returned.
func (b *Bot) publish(ctx context.Context, chatID int64, a teams.Assignment, err error) error {
	switch {
	case errors.Is(err, teams.ErrTooFewPlayers):
		b.reply(ctx, chatID, messages.TooFewPlayers)
		return nil
	case errors.Is(err, teams.ErrTooManyPlayers):
		b.reply(ctx, chatID, messages.TooManyPlayers(b.Teams.Options().MaxPlayers))
		return nil
	case errors.Is(err, teams.ErrNoTeamCount):
		lines := make([]string, 0, len(a.Skipped)+1)
		for _, k := range a.Skipped {
			lines = append(lines, messages.NotEnoughForTeams(k, a.Players))
		}
		b.reply(ctx, chatID, strings.Join(append(lines, messages.NoTeamCount), "\n"))
		return nil
	case err != nil:
		return err
	}

	b.reply(ctx, chatID, messages.Summary(a.Players, a.TeamCounts(), a.Skipped))
	for _, k := range a.TeamCounts() {
		res := a.Results[k]
		msg := tgbotapi.NewMessage(chatID, messages.Result(k, res))
		msg.ReplyMarkup = winKeyboard(k, res, a.Seq)
		b.send(ctx, msg)
	}
	return nil
}

func winKeyboard(k int, res logic.Result, seq int64) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(res.Teams))
	for i := range res.Teams {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			messages.WinButtonPrefix+messages.TeamLabel(i),
			winData(k, i, seq)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// winData encodes a winner button as "win:<teams>:<winner>:<seq>".
func winData(k, winner int, seq int64) string {
	return fmt.Sprintf("win:%d:%d:%d", k, winner, seq)
}

func parseWinData(data string) (k, winner int, seq int64, ok bool) {
	rest, found := strings.CutPrefix(data, "win:")
	if !found {
		return 0, 0, 0, false
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var err1, err2, err3 error
	k, err1 = strconv.Atoi(parts[0])
	winner, err2 = strconv.Atoi(parts[1])
	seq, err3 = strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return k, winner, seq, true
}

func (b *Bot) onCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	k, winner, seq, ok := parseWinData(cb.Data)
	if !ok || cb.Message == nil || cb.Message.Chat == nil {
		b.answer(ctx, cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID
	log := b.Log.With(zap.Int64("chat_id", chatID), zap.Int("teams", k), zap.Int("winner", winner))

	w, err := b.Teams.RecordWin(ctx, chatID, k, winner, seq)
	if w.Members == nil {
		switch {
		case errors.Is(err, teams.ErrNoResult):
			b.answer(ctx, cb.ID, messages.ResultExpired)
		case errors.Is(err, teams.ErrStaleResult):
			b.answer(ctx, cb.ID, messages.ResultStale)
		case errors.Is(err, teams.ErrBadWinner):
			b.answer(ctx, cb.ID, messages.BadWinner)
		default:
			log.Error("record win", zap.Error(err))
			b.answer(ctx, cb.ID, messages.InternalError)
		}
		return
	}

	b.answer(ctx, cb.ID, "")
	// the old buttons no longer point at a stored result
	b.request(ctx, tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}))
	b.reply(ctx, chatID, messages.Win(k, winner, w.Multiplier.String(), w.Members))
	if err := b.publish(ctx, chatID, w.Next, err); err != nil {
		log.Error("reassign after win", zap.Error(err))
		b.reply(ctx, chatID, messages.InternalError)
	}
}

// DailyReset clears every participation flag.
func (b *Bot) DailyReset(ctx context.Context) {
	n, err := b.Store.ResetParticipation(ctx)
	if err != nil {
		b.Log.Error("daily reset", zap.Error(err))
		return
	}
	b.Log.Info("daily reset done", zap.Int64("slots", n))
}

// ExpireResults drops stored results created before the cutoff.
func (b *Bot) ExpireResults(ctx context.Context, before time.Time) {
	chats, err := b.Store.ExpireResults(ctx, before)
	if err != nil {
		b.Log.Error("expire results", zap.Error(err))
		return
	}
	if len(chats) > 0 {
		b.Log.Info("results expired", zap.Int64s("chats", chats), zap.Time("before", before))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if err := b.Limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.API.Send(c); err != nil {
		b.Log.Warn("send", zap.Error(err))
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	b.request(ctx, tgbotapi.NewCallback(callbackID, text))
}

func (b *Bot) request(ctx context.Context, c tgbotapi.Chattable) {
	if err := b.Limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.API.Request(c); err != nil {
		b.Log.Warn("request", zap.Error(err))
	}
}
