// Package cli provides command-line interface functionality for the IPsec
// client. It manages phonebook entries and connections from the terminal
// without starting the interactive menu or the tray indicator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/ras"
	"github.com/BojanKomazec/IpSec/ui"
	"github.com/BojanKomazec/IpSec/vpn"
)

// CLI represents the command-line interface.
type CLI struct {
	app *ui.Application
	out io.Writer
}

// New creates a CLI that prints to stdout.
func New(app *ui.Application) *CLI {
	return &CLI{app: app, out: os.Stdout}
}

// SetOutput redirects the output.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// ListEntries lists the phonebook entries with their remembered server
// and connection status.
func (c *CLI) ListEntries() error {
	names, err := c.app.ListEntries()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(c.out, "No VPN connections in the phonebook.")
		fmt.Fprintln(c.out, "Create one with: ipsec-client --create NAME --psk KEY")
		return nil
	}

	active := c.activeEntries()

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSERVER\tUSERNAME\tSTATUS\tAUTO-CONNECT")
	fmt.Fprintln(w, "----\t------\t--------\t------\t------------")

	for _, name := range names {
		server, username, autoConnect := "-", "-", "No"
		if p, err := c.app.Profiles().Get(name); err == nil {
			server = p.Server
			if p.Username != "" {
				username = p.Username
			}
			if p.AutoConnect {
				autoConnect = "Yes"
			}
		}

		status := vpn.StatusDisconnected.String()
		if active[name] {
			status = vpn.StatusConnected.String()
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, server, username, status, autoConnect)
	}

	return w.Flush()
}

// activeEntries returns the names of the connected entries of the
// client's phonebook.
func (c *CLI) activeEntries() map[string]bool {
	client := c.app.Client()
	conns, err := client.API().ActiveConnections()
	if err != nil {
		common.LogWarn("Failed to enumerate active connections: %v", err)
		return nil
	}
	out := make(map[string]bool, len(conns))
	for _, conn := range conns {
		if ras.SamePhonebook(conn.Phonebook, client.Phonebook()) {
			out[conn.EntryName] = true
		}
	}
	return out
}

// Create creates an L2TP/IPsec entry.
func (c *CLI) Create(name, presharedKey string) error {
	if err := c.app.CreateEntry(name, presharedKey); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ VPN connection %s created\n", name)
	return nil
}

// Remove removes an entry and its profile.
func (c *CLI) Remove(name string) error {
	if err := c.app.RemoveEntry(name); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ VPN connection %s removed\n", name)
	return nil
}

// Connect dials req and reports the assigned and public addresses.
// A missing password is read from the terminal.
func (c *CLI) Connect(ctx context.Context, req ui.ConnectRequest) error {
	if req.Prompt == nil {
		req.Prompt = c.promptPassword
	}
	name := req.EntryName
	if name == "" {
		name = c.app.Config().DefaultEntry
	}

	fmt.Fprintf(c.out, "Connecting to %s...\n", name)
	if err := c.app.Connect(ctx, req); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	conn := c.app.Client().Status()
	fmt.Fprintf(c.out, "✓ Connected to %s\n", conn.EntryName)
	if conn.IPAddress != "" {
		fmt.Fprintf(c.out, "  Client IP: %s\n", conn.IPAddress)
	}
	if conn.ServerIPAddress != "" {
		fmt.Fprintf(c.out, "  Server IP: %s\n", conn.ServerIPAddress)
	}
	c.printPublicIP(ctx)
	return nil
}

func (c *CLI) promptPassword(entryName, username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w for %s: stdin is not a terminal", ui.ErrPasswordRequired, entryName)
	}
	if username != "" {
		fmt.Fprintf(c.out, "Password for %s@%s: ", username, entryName)
	} else {
		fmt.Fprintf(c.out, "Password for %s: ", entryName)
	}
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// Disconnect hangs up the connection of name, or of every entry of the
// phonebook when name is "all".
func (c *CLI) Disconnect(ctx context.Context, name string) error {
	if name != "all" {
		fmt.Fprintf(c.out, "Disconnecting from %s...\n", name)
		if err := c.app.Client().DisconnectEntry(ctx, name); err != nil {
			return fmt.Errorf("failed to disconnect: %w", err)
		}
		fmt.Fprintf(c.out, "✓ Disconnected from %s\n", name)
		return nil
	}

	active := c.activeEntries()
	if len(active) == 0 {
		fmt.Fprintln(c.out, "No active connections.")
		return nil
	}
	var errs []error
	for entry := range active {
		fmt.Fprintf(c.out, "Disconnecting from %s...\n", entry)
		if err := c.app.Client().DisconnectEntry(ctx, entry); err != nil {
			fmt.Fprintf(c.out, "  Warning: %v\n", err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintln(c.out, "  ✓ Disconnected")
	}
	return errors.Join(errs...)
}

// Status shows the active connections of the phonebook.
func (c *CLI) Status() error {
	client := c.app.Client()
	api := client.API()
	conns, err := api.ActiveConnections()
	if err != nil {
		return fmt.Errorf("failed to enumerate connections: %w", err)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tSTATE\tDEVICE\tCLIENT IP\tSERVER IP")
	fmt.Fprintln(w, "-----\t-----\t------\t---------\t---------")

	shown := 0
	for _, conn := range conns {
		if !ras.SamePhonebook(conn.Phonebook, client.Phonebook()) {
			continue
		}
		state := "-"
		if st, err := api.Status(conn.Handle); err == nil {
			state = st.String()
		}
		clientIP, serverIP := "-", "-"
		if info, err := api.IPProjection(conn.Handle); err == nil {
			clientIP, serverIP = ipString(info.IPAddress), ipString(info.ServerIPAddress)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", conn.EntryName, state, conn.DeviceName, clientIP, serverIP)
		shown++
	}

	if shown == 0 {
		fmt.Fprintln(c.out, "No active VPN connections.")
		return nil
	}
	return w.Flush()
}

func ipString(ip net.IP) string {
	if ip == nil {
		return "-"
	}
	return ip.String()
}

// Watch prints the client's events until ctx is done.
func (c *CLI) Watch(ctx context.Context) error {
	events := make(chan vpn.Event, 16)
	unsubscribe := c.app.Client().Subscribe(func(ev vpn.Event) {
		select {
		case events <- ev:
		default:
			common.LogWarn("Dropping event of %s: watcher is behind", ev.EntryName)
		}
	})
	defer unsubscribe()

	fmt.Fprintln(c.out, "Watching connection events, press Ctrl+C to stop.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			fmt.Fprintln(c.out, formatEvent(ev))
		}
	}
}

func formatEvent(ev vpn.Event) string {
	line := fmt.Sprintf("%s  %-12s %-16s %s", ev.Time.Format("15:04:05"), ev.EntryName, ev.Status, ev.State)
	if ev.Err != nil {
		line += "  error: " + ev.Err.Error()
	}
	return line
}

// History prints the most recent sessions.
func (c *CLI) History(ctx context.Context, limit int) error {
	store := c.app.History()
	if store == nil {
		return fmt.Errorf("%w: connection history is disabled", common.ErrInvalidArgument)
	}
	sessions, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tENTRY\tSERVER\tRESULT\tDURATION\tCLIENT IP\tERROR")
	fmt.Fprintln(w, "-------\t-----\t------\t------\t--------\t---------\t-----")
	for _, s := range sessions {
		duration := "-"
		if !s.EndedAt.IsZero() {
			duration = formatDuration(s.Duration())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.EntryName,
			orDash(s.Server),
			s.Result,
			duration,
			orDash(s.ClientIP),
			orDash(s.Error))
	}
	return w.Flush()
}

// PublicIP prints the public address of this host.
func (c *CLI) PublicIP(ctx context.Context) error {
	res, err := c.app.PublicIP(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Public IP: %s (via %s, %s)\n", res.IP, res.Server, res.RTT.Round(time.Millisecond))
	return nil
}

func (c *CLI) printPublicIP(ctx context.Context) {
	ip, err := c.app.PublicIPString(ctx)
	if err != nil {
		common.LogDebug("Public IP lookup failed: %v", err)
		return
	}
	fmt.Fprintf(c.out, "  Public IP: %s\n", ip)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// PrintHelp prints CLI usage help.
func PrintHelp(w io.Writer) {
	fmt.Fprintln(w, `IPsec Client - L2TP/IPsec connections through the Windows phonebook

Usage:
  ipsec-client [OPTIONS]

Options:
  --list                    List the phonebook entries
  --create NAME --psk KEY   Create an L2TP/IPsec entry
  --remove NAME             Remove an entry and its profile
  --connect NAME            Connect an entry
      --server ADDR         Server host name or IP address
      --username USER       Dial user name
      --password PASS       Dial password (prompted when missing)
      --save                Store the password in the system keyring
  --disconnect NAME|all     Disconnect an entry or every entry
  --status                  Show the active connections
  --watch                   Print connection events until interrupted
  --history N               Show the last N sessions
  --public-ip               Show the public IP address
  --menu                    Start the interactive menu (default)
  --tray                    Start the notification area indicator
  --scope user|all-users    Phonebook to use
  --config FILE             Configuration file
  --verbose                 Enable verbose logging
  --version                 Show version and exit
  --help                    Show this help message

Examples:
  ipsec-client --create Office --psk s3cret
  ipsec-client --connect Office --server vpn.example.com --username alice --save
  ipsec-client --disconnect all
  ipsec-client --history 10`)
}
