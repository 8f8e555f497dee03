// Package logind announces the lock state to systemd-logind and honors the
// session Unlock signal, so `loginctl unlock-session` can end the session
// administratively.
//
// Everything here is best-effort from the session's point of view: a
// missing system bus degrades the integration, never the lock itself.
package logind

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	busName      = "org.freedesktop.login1"
	managerPath  = "/org/freedesktop/login1"
	managerIface = "org.freedesktop.login1.Manager"
	sessionIface = "org.freedesktop.login1.Session"
)

// Notifier talks to the caller's login1 session object.
type Notifier struct {
	conn    *dbus.Conn
	session dbus.BusObject

	mu         sync.Mutex
	signals    chan *dbus.Signal
	done       chan struct{}
	subscribed bool
	log        *slog.Logger
}

// New connects to the system bus and resolves the invoking session:
// XDG_SESSION_ID when set, otherwise the session owning this PID.
func New(log *slog.Logger) (*Notifier, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("logind: connect to system bus: %w", err)
	}

	manager := conn.Object(busName, managerPath)

	var sessionPath dbus.ObjectPath
	if id := os.Getenv("XDG_SESSION_ID"); id != "" {
		err = manager.Call(managerIface+".GetSession", 0, id).Store(&sessionPath)
	} else {
		err = manager.Call(managerIface+".GetSessionByPID", 0, uint32(os.Getpid())).Store(&sessionPath)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("logind: resolve session: %w", err)
	}

	return &Notifier{
		conn:    conn,
		session: conn.Object(busName, sessionPath),
		done:    make(chan struct{}),
		log:     log.With("component", "logind"),
	}, nil
}

// SetLocked sets the session's LockedHint.
func (n *Notifier) SetLocked(locked bool) error {
	err := n.session.Call(sessionIface+".SetLockedHint", 0, locked).Err
	if err != nil {
		return fmt.Errorf("logind: set locked hint: %w", err)
	}
	return nil
}

// SubscribeUnlock registers c to be notified when the session receives the
// Unlock signal. Writing to c does not block; use a buffered channel.
func (n *Notifier) SubscribeUnlock(c chan<- struct{}) error {
	if c == nil {
		return errors.New("logind: channel cannot be nil")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subscribed {
		return errors.New("logind: already subscribed")
	}

	if err := n.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(n.session.Path()),
		dbus.WithMatchInterface(sessionIface),
		dbus.WithMatchSender(busName),
		dbus.WithMatchMember("Unlock"),
	); err != nil {
		return fmt.Errorf("logind: register Unlock signal: %w", err)
	}
	n.subscribed = true

	n.signals = make(chan *dbus.Signal, 8)
	n.conn.Signal(n.signals)

	go func() {
		for {
			select {
			case <-n.done:
				return
			case s := <-n.signals:
				if s == nil {
					// Seems to happen on close
					return
				}
				if s.Path != n.session.Path() || s.Name != sessionIface+".Unlock" {
					continue
				}
				n.log.Info("unlock signal received from logind")
				select {
				case c <- struct{}{}:
				default:
				}
			}
		}
	}()

	return nil
}

// Close unregisters the signal match and closes the bus connection.
// Individual failures do not stop the remaining steps.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var err error
	if n.subscribed {
		if rerr := n.conn.RemoveMatchSignal(
			dbus.WithMatchObjectPath(n.session.Path()),
			dbus.WithMatchInterface(sessionIface),
			dbus.WithMatchSender(busName),
			dbus.WithMatchMember("Unlock"),
		); rerr != nil {
			err = errors.Join(err, fmt.Errorf("logind: remove Unlock signal: %w", rerr))
		}
		n.conn.RemoveSignal(n.signals)
		n.subscribed = false
	}

	close(n.done)
	err = errors.Join(err, n.conn.Close())
	return err
}
