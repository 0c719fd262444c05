package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fyne.io/systray"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/vpn"
)

// TrayIndicator manages the notification area icon and menu.
// It connects and disconnects phonebook entries with their remembered
// profile and stored password.
type TrayIndicator struct {
	app *Application

	mu             sync.Mutex
	statusItem     *systray.MenuItem
	ipItem         *systray.MenuItem
	uptimeItem     *systray.MenuItem
	disconnectItem *systray.MenuItem
	publicIPItem   *systray.MenuItem
	entryItems     map[string]*systray.MenuItem
	connectedAt    time.Time
	uptimeStop     chan struct{}
	unsubscribe    func()
	icons          map[IconState][]byte
}

// NewTrayIndicator creates a new tray indicator for app.
func NewTrayIndicator(app *Application) *TrayIndicator {
	icons := make(map[IconState][]byte)
	for _, s := range []IconState{IconDisconnected, IconConnecting, IconConnected, IconError} {
		icons[s] = TrayIcon(s)
	}
	return &TrayIndicator{
		app:        app,
		entryItems: make(map[string]*systray.MenuItem),
		icons:      icons,
	}
}

// Run shows the indicator and blocks until Quit is chosen.
func (t *TrayIndicator) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the indicator, making Run return.
func (t *TrayIndicator) Quit() {
	systray.Quit()
}

func (t *TrayIndicator) onReady() {
	systray.SetIcon(t.icons[IconDisconnected])
	systray.SetTitle(common.AppName)
	systray.SetTooltip(common.AppName + " - Disconnected")

	t.statusItem = systray.AddMenuItem("Not connected", "Current VPN status")
	t.statusItem.Disable()
	t.ipItem = systray.AddMenuItem("", "Client address")
	t.ipItem.Disable()
	t.ipItem.Hide()
	t.uptimeItem = systray.AddMenuItem("", "Connection duration")
	t.uptimeItem.Disable()
	t.uptimeItem.Hide()

	systray.AddSeparator()

	t.disconnectItem = systray.AddMenuItem("Disconnect", "Disconnect from VPN")
	t.disconnectItem.Hide()
	go func() {
		for range t.disconnectItem.ClickedCh {
			t.disconnectCurrent()
		}
	}()

	t.publicIPItem = systray.AddMenuItem("Check public IP", "Look up the public address")
	go func() {
		for range t.publicIPItem.ClickedCh {
			t.checkPublicIP()
		}
	}()

	systray.AddSeparator()
	header := systray.AddMenuItem("Connections", "")
	header.Disable()
	t.refreshEntries()

	systray.AddSeparator()
	refreshItem := systray.AddMenuItem("Refresh", "Reload the phonebook")
	go func() {
		for range refreshItem.ClickedCh {
			t.refreshEntries()
		}
	}()

	quitItem := systray.AddMenuItem("Quit", "Close "+common.AppName)
	go func() {
		<-quitItem.ClickedCh
		systray.Quit()
	}()

	t.app.AddNotifier(NotifierFunc(t.showNotification))
	t.unsubscribe = t.app.Client().Subscribe(func(vpn.Event) {
		t.update(t.app.Client().Status())
	})
	t.update(t.app.Client().Status())
}

// onExit leaves an established connection up; it is owned by the phonebook.
func (t *TrayIndicator) onExit() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	t.stopUptimeCounter()
	common.LogInfo("Tray indicator closed")
}

// refreshEntries adds menu items for new phonebook entries and hides
// items of removed ones.
func (t *TrayIndicator) refreshEntries() {
	names, err := t.app.Client().ListEntries()
	if err != nil {
		t.showNotification(NotifyError("Phonebook", err.Error()))
		return
	}

	present := make(map[string]bool, len(names))
	t.mu.Lock()
	for _, name := range names {
		present[name] = true
		if item, ok := t.entryItems[name]; ok {
			item.Show()
			continue
		}
		item := systray.AddMenuItem(name, "Connect to "+name)
		t.entryItems[name] = item
		go func(name string, item *systray.MenuItem) {
			for range item.ClickedCh {
				t.toggle(name)
			}
		}(name, item)
	}
	for name, item := range t.entryItems {
		if !present[name] {
			item.Hide()
		}
	}
	t.mu.Unlock()

	t.update(t.app.Client().Status())
}

// toggle connects or disconnects entry.
func (t *TrayIndicator) toggle(name string) {
	conn := t.app.Client().Status()
	if conn.EntryName == name && (conn.Status == vpn.StatusConnected || conn.Status == vpn.StatusConnecting) {
		go func() {
			if err := t.app.Client().DisconnectEntry(context.Background(), name); err != nil {
				t.showNotification(NotifyError(name, err.Error()))
			}
		}()
		return
	}

	go func() {
		err := t.app.Connect(context.Background(), ConnectRequest{EntryName: name})
		if err != nil {
			common.LogWarn("Tray: connect to %s failed: %v", name, err)
			t.showNotification(NotifyError(name, err.Error()))
		}
	}()
}

func (t *TrayIndicator) disconnectCurrent() {
	go func() {
		if err := t.app.Client().Disconnect(context.Background()); err != nil {
			t.showNotification(NotifyError(t.app.Client().Status().EntryName, err.Error()))
		}
	}()
}

func (t *TrayIndicator) checkPublicIP() {
	t.publicIPItem.SetTitle("Checking public IP...")
	go func() {
		res, err := t.app.PublicIP(context.Background())
		if err != nil {
			t.publicIPItem.SetTitle("Check public IP")
			t.showNotification(NotifyError("Public IP", err.Error()))
			return
		}
		t.publicIPItem.SetTitle("Public IP: " + res.IP.String())
	}()
}

// showNotification surfaces n in the tooltip.
func (t *TrayIndicator) showNotification(n Notification) {
	systray.SetTooltip(common.AppName + " - " + n.Message)
}

// update renders conn.
func (t *TrayIndicator) update(conn vpn.Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := iconStateFor(conn.Status)
	systray.SetIcon(t.icons[state])
	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle(statusLine(conn))

	for name, item := range t.entryItems {
		item.SetTitle(entryTitle(name, conn))
	}

	if conn.Status == vpn.StatusConnected {
		if conn.IPAddress != "" {
			t.ipItem.SetTitle("IP: " + conn.IPAddress)
			t.ipItem.Show()
		}
		t.disconnectItem.Show()
		if !t.connectedAt.Equal(conn.ConnectedAt) {
			t.connectedAt = conn.ConnectedAt
			t.startUptimeCounterLocked()
		}
		return
	}

	if conn.Status == vpn.StatusConnecting {
		t.disconnectItem.Show()
	} else {
		t.disconnectItem.Hide()
	}
	t.ipItem.Hide()
	t.uptimeItem.Hide()
	t.connectedAt = time.Time{}
	t.stopUptimeCounterLocked()
}

func (t *TrayIndicator) startUptimeCounterLocked() {
	t.stopUptimeCounterLocked()

	since := t.connectedAt
	stop := make(chan struct{})
	t.uptimeStop = stop
	t.uptimeItem.SetTitle("Uptime: " + formatUptime(time.Since(since)))
	t.uptimeItem.Show()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.uptimeItem.SetTitle("Uptime: " + formatUptime(time.Since(since)))
			case <-stop:
				return
			}
		}
	}()
}

func (t *TrayIndicator) stopUptimeCounter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopUptimeCounterLocked()
}

func (t *TrayIndicator) stopUptimeCounterLocked() {
	if t.uptimeStop != nil {
		close(t.uptimeStop)
		t.uptimeStop = nil
	}
}

func iconStateFor(status vpn.ConnectionStatus) IconState {
	switch status {
	case vpn.StatusConnected:
		return IconConnected
	case vpn.StatusConnecting, vpn.StatusDisconnecting:
		return IconConnecting
	case vpn.StatusError:
		return IconError
	default:
		return IconDisconnected
	}
}

func statusLine(conn vpn.Connection) string {
	switch conn.Status {
	case vpn.StatusConnected:
		return "Connected: " + conn.EntryName
	case vpn.StatusConnecting:
		return fmt.Sprintf("Connecting: %s (%s)", conn.EntryName, conn.State)
	case vpn.StatusDisconnecting:
		return "Disconnecting: " + conn.EntryName
	case vpn.StatusError:
		if conn.LastError != "" {
			return "Error: " + conn.LastError
		}
		return "Error: " + conn.EntryName
	default:
		return "Not connected"
	}
}

func entryTitle(name string, conn vpn.Connection) string {
	if conn.EntryName != name {
		return name
	}
	switch conn.Status {
	case vpn.StatusConnected:
		return "● " + name
	case vpn.StatusConnecting:
		return "◌ " + name
	default:
		return name
	}
}

// formatUptime formats d as hh:mm:ss.
func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
