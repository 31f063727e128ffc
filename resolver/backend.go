package resolver

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Backend kinds accepted by Open.
const (
	KindAuto  = "auto"
	KindX11   = "x11"
	KindGnome = "gnome"
)

// Session describes the desktop session the tracker runs in.
type Session struct {
	Type    string // XDG_SESSION_TYPE
	Desktop string // XDG_CURRENT_DESKTOP
}

// CurrentSession reads the session from the environment.
func CurrentSession() Session {
	return Session{
		Type:    os.Getenv("XDG_SESSION_TYPE"),
		Desktop: os.Getenv("XDG_CURRENT_DESKTOP"),
	}
}

// Choose picks the backend kind to try first for a requested kind.
func Choose(kind string, session Session) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindAuto:
		desktop := strings.ToLower(session.Desktop)
		if session.Type == "wayland" && (strings.Contains(desktop, "gnome") || strings.Contains(desktop, "ubuntu")) {
			return KindGnome, nil
		}
		return KindX11, nil
	case KindX11:
		return KindX11, nil
	case KindGnome:
		return KindGnome, nil
	default:
		return "", errors.Errorf("unknown window backend %q (valid: auto, x11, gnome)", kind)
	}
}

// Open connects the backend for kind. In auto mode a GNOME session whose
// extension is unavailable falls back to X11 (XWayland).
func Open(kind string, logger zerolog.Logger) (Backend, error) {
	chosen, err := Choose(kind, CurrentSession())
	if err != nil {
		return nil, err
	}

	if chosen == KindGnome {
		backend, err := NewGnomeBackend()
		if err == nil {
			return backend, nil
		}
		if kind == KindGnome {
			return nil, err
		}
		logger.Warn().Err(err).Msg("GNOME FocusedWindow extension unavailable, falling back to X11")
	}

	return NewX11Backend()
}
