package reporting

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Christopher-Hayes/worktime-tracker/activity"
	"github.com/Christopher-Hayes/worktime-tracker/collector"
)

// Collector is the subset of the collector API the tracker uses.
type Collector interface {
	Login(ctx context.Context, email, password string) (*collector.LoginResponse, error)
	SetToken(token string)
	SessionCount(ctx context.Context) (int, error)
	LastLifetimeTotals(ctx context.Context) (*collector.LifetimeTotals, error)
	Status(ctx context.Context) (*collector.Status, error)
	SubmitActivity(ctx context.Context, report *activity.Report) error
}

// Credentials identify the employee at startup. A Token skips login.
type Credentials struct {
	Token    string
	Email    string
	Password string
}

// Session is what the collector knows about the session being started.
type Session struct {
	Email    string
	Number   int
	Lifetime activity.LifetimeCounters
}

// Bootstrap authenticates and loads the session number and same-day
// lifetime totals. Only an authentication failure is returned as an error;
// the other calls fall back to session 1 and zero lifetime.
func Bootstrap(ctx context.Context, c Collector, creds Credentials, now time.Time, logger zerolog.Logger) (*Session, error) {
	logger = logger.With().Str("component", "bootstrap").Logger()
	session := &Session{Email: creds.Email, Number: 1}

	if creds.Token != "" {
		c.SetToken(creds.Token)
		logger.Info().Str("email", creds.Email).Msg("Using token from supervisor")
	} else {
		resp, err := c.Login(ctx, creds.Email, creds.Password)
		if err != nil {
			return nil, errors.Wrap(err, "login failed")
		}
		if resp.User.Email != "" {
			session.Email = resp.User.Email
		}
	}

	count, err := c.SessionCount(ctx)
	switch {
	case err == nil:
		session.Number = count + 1
	case errors.Is(err, collector.ErrAuth) && creds.Token != "":
		return nil, errors.Wrap(err, "token rejected")
	default:
		logger.Warn().Err(err).Msg("Session count unavailable, assuming first session")
	}

	totals, err := c.LastLifetimeTotals(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Lifetime totals unavailable, starting from zero")
	} else {
		session.Lifetime = totals.SeedFor(now)
		if totals.Found && session.Lifetime == (activity.LifetimeCounters{}) {
			logger.Info().Str("last_session_date", totals.LastSessionDate).Msg("Last session was on another day, lifetime totals reset")
		}
	}

	logger.Info().
		Str("email", session.Email).
		Int("session_number", session.Number).
		Int64("lifetime_mouse", session.Lifetime.Mouse).
		Int64("lifetime_keys", session.Lifetime.Keys).
		Dur("lifetime_active", session.Lifetime.Active).
		Msg("Session bootstrapped")

	return session, nil
}
