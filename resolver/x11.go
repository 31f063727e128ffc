package resolver

import (
	"encoding/binary"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

var x11Atoms = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// X11Backend reads the focused window from EWMH root properties.
type X11Backend struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

// NewX11Backend connects to the display named by $DISPLAY.
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	setup := xproto.Setup(conn)
	b := &X11Backend{
		conn:  conn,
		root:  setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom, len(x11Atoms)),
	}

	for _, name := range x11Atoms {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to intern atom %s", name)
		}
		b.atoms[name] = reply.Atom
	}

	return b, nil
}

func (b *X11Backend) Name() string { return "x11" }

// Focused returns the title, class and PID of the active top-level window.
func (b *X11Backend) Focused() (*Raw, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	window, err := b.activeWindow()
	if err != nil {
		return nil, err
	}

	instance, class := b.windowClass(window)
	return &Raw{
		Title:    b.windowName(window),
		Class:    class,
		Instance: instance,
		PID:      b.windowPID(window),
	}, nil
}

// Close closes the X connection.
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

func (b *X11Backend) property(window xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(b.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (b *X11Backend) activeWindow() (xproto.Window, error) {
	data, err := b.property(b.root, b.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err == nil && len(data) >= 4 {
		if window := xproto.Window(binary.LittleEndian.Uint32(data)); window != 0 && b.hasName(window) {
			return window, nil
		}
	}

	// Window managers without EWMH: walk up from the input focus.
	focus, err := xproto.GetInputFocus(b.conn).Reply()
	if err != nil {
		return 0, errors.Wrap(err, "failed to query input focus")
	}
	if focus.Focus == 0 || focus.Focus == b.root {
		return 0, ErrResolve
	}
	top := b.topLevel(focus.Focus)
	if !b.hasName(top) {
		return 0, ErrResolve
	}
	return top, nil
}

func (b *X11Backend) topLevel(window xproto.Window) xproto.Window {
	for {
		reply, err := xproto.QueryTree(b.conn, window).Reply()
		if err != nil || reply.Parent == b.root || reply.Parent == 0 {
			return window
		}
		window = reply.Parent
	}
}

func (b *X11Backend) hasName(window xproto.Window) bool {
	if data, _ := b.property(window, b.atoms["_NET_WM_NAME"], b.atoms["UTF8_STRING"], 1); len(data) > 0 {
		return true
	}
	data, _ := b.property(window, b.atoms["WM_NAME"], xproto.AtomString, 1)
	return len(data) > 0
}

func (b *X11Backend) windowName(window xproto.Window) string {
	if data, err := b.property(window, b.atoms["_NET_WM_NAME"], b.atoms["UTF8_STRING"], 256); err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	if data, err := b.property(window, b.atoms["WM_NAME"], xproto.AtomString, 256); err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	return ""
}

func (b *X11Backend) windowClass(window xproto.Window) (instance, class string) {
	data, err := b.property(window, b.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil || len(data) == 0 {
		return "", ""
	}
	return splitClass(data)
}

func (b *X11Backend) windowPID(window xproto.Window) uint32 {
	data, err := b.property(window, b.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

// splitClass parses a WM_CLASS value: two NUL-terminated strings.
func splitClass(data []byte) (instance, class string) {
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}
