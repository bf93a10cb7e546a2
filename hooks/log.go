package hooks

import "github.com/rs/zerolog"

// LogSubscriber registers debug-level logging for every notification hook
// and returns one Deregister that removes all of them.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func LogSubscriber(b *Bus, logger zerolog.Logger, priority int) Deregister {
	log := func(ev Event) error {
		e := logger.Debug().
			Str("hook", ev.Hook.String()).
			Str("key", ev.Key).
			Time("at", ev.At)
		if ev.Hook == OnEvict {
			e = e.Str("reason", ev.Reason.String())
		}
		e.Msg("cache event")
		return nil
	}

	undo := []Deregister{
		b.RegisterNotification(OnHit, log, priority),
		b.RegisterNotification(OnMiss, log, priority),
		b.RegisterNotification(OnEvict, log, priority),
	}
	return func() {
		for _, d := range undo {
			d()
		}
	}
}
