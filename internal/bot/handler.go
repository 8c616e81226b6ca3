package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"

	"github.com/eliseohh/channelstatbot/internal/chart"
	"github.com/eliseohh/channelstatbot/internal/stats"
)

const (
	topLimit   = 20
	recentDays = 7
)

// Sender is the slice of *tele.Bot used to post into the channel.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Channel addresses a chat by @username or numeric ID.
type Channel string

func (ch Channel) Recipient() string { return string(ch) }

type Bot struct {
	api     *tele.Bot
	sender  Sender
	store   stats.Store
	channel tele.Recipient
	admins  map[int64]bool
	now     func() time.Time

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

type Config struct {
	Token       string
	ChannelID   string
	AdminIDs    []int64
	PollTimeout time.Duration
}

func New(cfg Config, store stats.Store) (*Bot, error) {
	bot := &Bot{
		store:   store,
		channel: Channel(cfg.ChannelID),
		admins:  make(map[int64]bool, len(cfg.AdminIDs)),
		now:     time.Now,
	}
	for _, id := range cfg.AdminIDs {
		bot.admins[id] = true
	}

	pref := tele.Settings{
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: bot.onError,
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot.api = b
	bot.sender = b
	bot.register()
	return bot, nil
}

func (b *Bot) Start() {
	log.Info().Str("username", b.api.Me.Username).Msg("bot started")
	b.api.Start()
}

// Stop ends polling and returns once every running handler has finished,
// so the store can be closed safely afterwards.
func (b *Bot) Stop() {
	b.api.Stop()
	b.drain()
}

func (b *Bot) register() {
	b.api.Use(b.track, middleware.Recover(), b.logRequests, b.adminOnly)

	b.api.Handle("/start", b.handleHelp)
	b.api.Handle("/help", b.handleHelp)
	b.api.Handle("/send", b.handleSend)
	b.api.Handle("/count", b.handleCount)
	b.api.Handle("/top20", b.handleTop20)
	b.api.Handle("/chart", b.handleChart)
	b.api.Handle("/top7days", b.handleTop7Days)
}

const helpText = `Commands:
/send <keyword> <text...> - post to the channel
/count - total messages sent
/top20 - most used keywords
/chart - daily volume chart
/top7days - messages per day, last 7 days`

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(helpText)
}

// /send <keyword> <text...>
func (b *Bot) handleSend(c tele.Context) error {
	text := commandArgs(c.Message())
	if text == "" {
		return c.Send("Usage: /send <keyword> <text...>")
	}
	keyword := strings.Fields(text)[0]

	if _, err := b.sender.Send(b.channel, text); err != nil {
		log.Error().Err(err).Str("channel", b.channel.Recipient()).Msg("channel send failed")
		return c.Send("❌ Failed to post to the channel.")
	}

	r, err := b.store.Increment(context.Background(), keyword)
	if err != nil {
		return fmt.Errorf("record send: %w", err)
	}

	return c.Send(fmt.Sprintf("✅ Sent.\nTotal: %d\nKeyword \"%s\": %d", r.Count, keyword, r.Keywords[keyword]))
}

// commandArgs returns everything after the command token. Payload is not
// used because telebot stops it at the first newline.
func commandArgs(msg *tele.Message) string {
	if msg == nil {
		return ""
	}
	text := strings.TrimSpace(msg.Text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

func (b *Bot) handleCount(c tele.Context) error {
	r, err := b.store.Load(context.Background())
	if err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("📊 Total messages sent: %d", r.Count))
}

func (b *Bot) handleTop20(c tele.Context) error {
	r, err := b.store.Load(context.Background())
	if err != nil {
		return err
	}
	if len(r.Keywords) == 0 {
		return c.Send("❗ No keyword data yet.")
	}

	var sb strings.Builder
	sb.WriteString("🏆 Top 20 keywords\n")
	for i, kc := range stats.TopKeywords(r.Keywords, topLimit) {
		fmt.Fprintf(&sb, "%d. %s - %d\n", i+1, kc.Keyword, kc.Count)
	}
	return c.Send(sb.String())
}

func (b *Bot) handleChart(c tele.Context) error {
	r, err := b.store.Load(context.Background())
	if err != nil {
		return err
	}
	days := stats.Days(r.Daily)
	if len(days) == 0 {
		return c.Send("📉 No chart data.")
	}

	path, cleanup, err := chart.RenderFile(days)
	if err != nil {
		return err
	}
	defer cleanup()

	return c.Send(&tele.Photo{File: tele.FromDisk(path), Caption: chart.Title})
}

func (b *Bot) handleTop7Days(c tele.Context) error {
	r, err := b.store.Load(context.Background())
	if err != nil {
		return err
	}

	days := stats.RecentDays(r.Daily, b.now(), recentDays)
	if len(days) == 0 {
		return c.Send("📅 No data for the last 7 days.")
	}

	var sb strings.Builder
	sb.WriteString("📆 Messages per day, last 7 days:\n")
	for _, d := range days {
		fmt.Fprintf(&sb, "%s - %d\n", d.Day, d.Count)
	}
	return c.Send(sb.String())
}
