package input

import (
	"context"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

// Poll periods of the X11 hooks.
const (
	pointerPollInterval = 50 * time.Millisecond
	keymapPollInterval  = 15 * time.Millisecond
)

// x11Hook holds a dedicated X connection for one input channel.
type x11Hook struct {
	conn *xgb.Conn
	root xproto.Window
}

func openX11() (*x11Hook, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}
	setup := xproto.Setup(conn)
	return &x11Hook{conn: conn, root: setup.DefaultScreen(conn).Root}, nil
}

func (h *x11Hook) Close() error {
	h.conn.Close()
	return nil
}

// X11PointerHook reports pointer motion by sampling the pointer position
// on the root window.
type X11PointerHook struct {
	*x11Hook
}

// NewX11PointerHook connects to the X server and checks the pointer can be
// queried.
func NewX11PointerHook() (Hook, error) {
	h, err := openX11()
	if err != nil {
		return nil, err
	}
	if _, err := xproto.QueryPointer(h.conn, h.root).Reply(); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "failed to query pointer")
	}
	return &X11PointerHook{h}, nil
}

func (h *X11PointerHook) Name() string { return "x11-pointer" }

// Run calls OnPointerMove whenever the sampled position changes.
func (h *X11PointerHook) Run(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(pointerPollInterval)
	defer ticker.Stop()

	tracker := &motionTracker{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			reply, err := xproto.QueryPointer(h.conn, h.root).Reply()
			if err != nil {
				return errors.Wrap(err, "failed to query pointer")
			}
			x, y := int(reply.RootX), int(reply.RootY)
			if tracker.moved(x, y) {
				handler.OnPointerMove(x, y)
			}
		}
	}
}

// X11KeyboardHook reports key presses by diffing the keymap bitmap.
type X11KeyboardHook struct {
	*x11Hook
}

// NewX11KeyboardHook connects to the X server and checks the keymap can be
// read.
func NewX11KeyboardHook() (Hook, error) {
	h, err := openX11()
	if err != nil {
		return nil, err
	}
	if _, err := xproto.QueryKeymap(h.conn).Reply(); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "failed to query keymap")
	}
	return &X11KeyboardHook{h}, nil
}

func (h *X11KeyboardHook) Name() string { return "x11-keyboard" }

// Run calls OnKeyPress once for each key that goes down.
func (h *X11KeyboardHook) Run(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(keymapPollInterval)
	defer ticker.Stop()

	var previous [32]byte
	primed := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			reply, err := xproto.QueryKeymap(h.conn).Reply()
			if err != nil {
				return errors.Wrap(err, "failed to query keymap")
			}
			var current [32]byte
			copy(current[:], reply.Keys)
			if primed {
				for _, code := range pressedKeys(previous, current) {
					handler.OnKeyPress(code)
				}
			}
			previous, primed = current, true
		}
	}
}

// motionTracker remembers the last pointer sample.
type motionTracker struct {
	x, y   int
	primed bool
}

func (m *motionTracker) moved(x, y int) bool {
	if !m.primed {
		m.x, m.y, m.primed = x, y, true
		return false
	}
	if x == m.x && y == m.y {
		return false
	}
	m.x, m.y = x, y
	return true
}

// pressedKeys returns the keycodes whose bit is set in current but not in
// previous.
func pressedKeys(previous, current [32]byte) []uint8 {
	var codes []uint8
	for i := range current {
		down := current[i] &^ previous[i]
		if down == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if down&(1<<bit) != 0 {
				codes = append(codes, uint8(i*8+bit))
			}
		}
	}
	return codes
}
