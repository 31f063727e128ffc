package resolver

import (
	"encoding/json"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"github.com/Christopher-Hayes/worktime-tracker/internal/common"
)

// GnomeBackend asks the GNOME Shell FocusedWindow extension over the session
// bus. It works on Wayland, where X11 clients cannot see other windows.
type GnomeBackend struct {
	mu   sync.Mutex
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewGnomeBackend connects to the session bus and checks that the
// extension answers.
func NewGnomeBackend() (*GnomeBackend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}

	b := &GnomeBackend{
		conn: conn,
		obj:  conn.Object(common.DbusDestination, dbus.ObjectPath(common.DbusObjectPath)),
	}
	if _, err := b.Focused(); err != nil && !errors.Is(err, ErrResolve) {
		conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *GnomeBackend) Name() string { return "gnome" }

// Focused calls FocusedWindow.Get and decodes the JSON reply.
func (b *GnomeBackend) Focused() (*Raw, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	call := b.obj.Call(common.DbusMethod, 0)
	if call.Err != nil {
		return nil, errors.Wrapf(call.Err, "failed to call FocusedWindow.Get\n\n%s", common.FocusedWindowTroubleshooting)
	}

	// The response is a tuple with a JSON string
	var jsonStr string
	if err := call.Store(&jsonStr); err != nil {
		return nil, errors.Wrap(err, "failed to parse D-Bus response")
	}

	return decodeMutterWindow(jsonStr)
}

// Close closes the bus connection.
func (b *GnomeBackend) Close() error {
	return b.conn.Close()
}

func decodeMutterWindow(jsonStr string) (*Raw, error) {
	// The extension returns an empty object when nothing has focus.
	if jsonStr == "" || jsonStr == "{}" || jsonStr == "null" {
		return nil, ErrResolve
	}

	var window common.MutterWindow
	if err := json.Unmarshal([]byte(jsonStr), &window); err != nil {
		return nil, errors.Wrap(err, "failed to parse window JSON")
	}
	if window.Title == "" && window.WmClass == "" {
		return nil, ErrResolve
	}

	raw := &Raw{
		Title:    window.Title,
		Class:    window.WmClass,
		Instance: window.WmClassInstance,
	}
	if window.Pid > 0 {
		raw.PID = uint32(window.Pid)
	}
	return raw, nil
}
