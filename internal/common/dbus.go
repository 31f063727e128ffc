package common

// D-Bus addresses of the GNOME Shell FocusedWindow extension
const (
	DbusDestination = "org.gnome.Shell"
	DbusObjectPath  = "/org/gnome/shell/extensions/FocusedWindow"
	DbusInterface   = "org.gnome.shell.extensions.FocusedWindow"
	DbusMethod      = DbusInterface + ".Get"
)

// FocusedWindowTroubleshooting is appended to FocusedWindow call failures
const FocusedWindowTroubleshooting = `Troubleshooting:
  1. Verify extension is installed: gnome-extensions list | grep focused
  2. Enable if needed: gnome-extensions enable focused-window-dbus@nichijou.github.io
  3. Test D-Bus manually: gdbus call --session --dest org.gnome.Shell --object-path /org/gnome/shell/extensions/FocusedWindow --method org.gnome.shell.extensions.FocusedWindow.Get`

// MutterWindow is the subset of the FocusedWindow extension's JSON reply
// the tracker reads
type MutterWindow struct {
	Title           string `json:"title"`
	WmClass         string `json:"wm_class"`
	WmClassInstance string `json:"wm_class_instance"`
	Pid             int32  `json:"pid"`
	Id              uint64 `json:"id"`
	Focus           bool   `json:"focus"`
}
