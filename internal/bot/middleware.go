package bot

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// track counts running handlers for drain. Updates that arrive after
// drain has started are dropped.
func (b *Bot) track(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		b.mu.Lock()
		if b.closing {
			b.mu.Unlock()
			return nil
		}
		b.inflight.Add(1)
		b.mu.Unlock()
		defer b.inflight.Done()

		return next(c)
	}
}

func (b *Bot) drain() {
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()
	b.inflight.Wait()
}

// adminOnly drops updates from users outside the allowlist. An empty
// allowlist lets everyone through.
func (b *Bot) adminOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if len(b.admins) == 0 {
			return next(c)
		}
		user := c.Sender()
		if user == nil || !b.admins[user.ID] {
			var id int64
			if user != nil {
				id = user.ID
			}
			log.Warn().Int64("user", id).Msg("rejected update from non-admin")
			return c.Send("⛔ Not allowed.")
		}
		return next(c)
	}
}

func (b *Bot) logRequests(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		err := next(c)

		ev := log.Debug()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		if user := c.Sender(); user != nil {
			ev = ev.Int64("user", user.ID)
		}
		ev.Str("command", commandOf(c)).Dur("took", time.Since(start)).Msg("handled update")
		return err
	}
}

// onError receives handler errors: storage failures end up here.
func (b *Bot) onError(err error, c tele.Context) {
	if c == nil {
		log.Error().Err(err).Msg("bot error")
		return
	}
	log.Error().Err(err).Str("command", commandOf(c)).Msg("command failed")
	if sendErr := c.Send("⚠️ Something went wrong, the error has been logged."); sendErr != nil {
		log.Error().Err(sendErr).Msg("error reply failed")
	}
}

func commandOf(c tele.Context) string {
	msg := c.Message()
	if msg == nil {
		return ""
	}
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}
