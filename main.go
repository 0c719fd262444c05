// Package main provides the entry point for the IPsec client.
// The IPsec client creates, dials and removes L2TP/IPsec connections
// of the Windows remote access phonebook.
//
// Features:
//   - Phonebook entry management with preshared keys
//   - Dialing with progress reporting and cancellation
//   - Secure password storage using the system keyring
//   - Connection health checks with optional reconnects
//   - Session history, Prometheus metrics and MQTT state publishing
//   - Interactive terminal menu and notification area indicator
//
// Usage:
//
//	ipsec-client [options]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BojanKomazec/IpSec/cli"
	"github.com/BojanKomazec/IpSec/common"
	"github.com/BojanKomazec/IpSec/config"
	"github.com/BojanKomazec/IpSec/ui"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp    = flag.Bool("help", false, "Show help message")
	configFile  = flag.String("config", "", "Configuration file")
	scope       = flag.String("scope", "", "Phonebook scope: user or all-users")

	// Front-ends
	runMenu = flag.Bool("menu", false, "Start the interactive menu")
	runTray = flag.Bool("tray", false, "Start the notification area indicator")

	// CLI flags
	listEntries   = flag.Bool("list", false, "List the phonebook entries")
	createEntry   = flag.String("create", "", "Create an L2TP/IPsec entry")
	presharedKey  = flag.String("psk", "", "Preshared key of the created entry")
	removeEntry   = flag.String("remove", "", "Remove an entry")
	connectEntry  = flag.String("connect", "", "Connect an entry")
	server        = flag.String("server", "", "Server host name or IP address")
	username      = flag.String("username", "", "Dial user name")
	password      = flag.String("password", "", "Dial password")
	savePassword  = flag.Bool("save", false, "Store the password in the system keyring")
	disconnectVPN = flag.String("disconnect", "", "Disconnect an entry (use 'all' for every entry)")
	showStatus    = flag.Bool("status", false, "Show the active connections")
	watchEvents   = flag.Bool("watch", false, "Print connection events until interrupted")
	showHistory   = flag.Int("history", 0, "Show the last N sessions")
	showPublicIP  = flag.Bool("public-ip", false, "Show the public IP address")
)

func main() {
	flag.Usage = func() { cli.PrintHelp(os.Stderr) }
	flag.Parse()

	if *showHelp {
		cli.PrintHelp(os.Stdout)
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if *scope != "" {
		cfg.PhonebookScope = *scope
	}

	logLevel := common.ParseLogLevel(cfg.Logging.Level)
	if *verbose {
		logLevel = common.LevelDebug
	}
	menuMode := !*runTray && (*runMenu || !cliRequested())
	if err := common.InitLogger(common.LogConfig{
		Level:        logLevel,
		EnableFile:   cfg.Logging.FileOutput || *runTray || menuMode,
		Dir:          cfg.Logging.Dir,
		QuietConsole: menuMode,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	app, err := ui.NewApplication(ui.AppOptions{Config: cfg, Version: appVersion})
	if err != nil {
		common.LogError("Failed to start: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	exitCode := run(ctx, app)
	if err := app.Close(); err != nil {
		common.LogWarn("Shutdown: %v", err)
	}
	os.Exit(exitCode)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg, err
}

func cliRequested() bool {
	return *listEntries || *createEntry != "" || *removeEntry != "" ||
		*connectEntry != "" || *disconnectVPN != "" || *showStatus ||
		*watchEvents || *showHistory > 0 || *showPublicIP
}

// run starts the requested front-end and returns the exit code.
func run(ctx context.Context, app *ui.Application) int {
	switch {
	case *runTray:
		common.LogInfo("Starting %s v%s tray indicator", common.AppName, app.Version())
		go func() {
			if err := app.AutoConnect(ctx); err != nil {
				common.LogWarn("Auto-connect failed: %v", err)
			}
		}()
		tray := ui.NewTrayIndicator(app)
		go func() {
			<-ctx.Done()
			tray.Quit()
		}()
		tray.Run()
		return 0

	case cliRequested() && !*runMenu:
		if err := runCLI(ctx, cli.New(app)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0

	default:
		common.LogInfo("Starting %s v%s menu", common.AppName, app.Version())
		if err := ui.RunMenu(app); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
}

// runCLI runs the requested command-line operations in order. With
// --watch it keeps printing events until interrupted.
func runCLI(ctx context.Context, c *cli.CLI) error {
	select {
	case <-ctx.Done():
		common.LogInfo("Operation cancelled before execution")
		return nil
	default:
	}

	watchDone := make(chan error, 1)
	if *watchEvents {
		go func() { watchDone <- c.Watch(ctx) }()
	}

	steps := []struct {
		enabled bool
		run     func() error
	}{
		{*createEntry != "", func() error { return c.Create(*createEntry, *presharedKey) }},
		{*connectEntry != "", func() error {
			return c.Connect(ctx, ui.ConnectRequest{
				EntryName:    *connectEntry,
				Server:       *server,
				Username:     *username,
				Password:     *password,
				SavePassword: *savePassword,
			})
		}},
		{*listEntries, c.ListEntries},
		{*showStatus, c.Status},
		{*showPublicIP, func() error { return c.PublicIP(ctx) }},
		{*showHistory > 0, func() error { return c.History(ctx, *showHistory) }},
		{*disconnectVPN != "", func() error { return c.Disconnect(ctx, *disconnectVPN) }},
		{*removeEntry != "", func() error { return c.Remove(*removeEntry) }},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := step.run(); err != nil {
			return err
		}
	}

	if *watchEvents {
		return <-watchDone
	}
	return nil
}

// setupSignalHandler configures graceful shutdown on SIGINT/SIGTERM.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()
}
