package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/timfallmk/disk-alert-daemon/internal/config"
	"github.com/timfallmk/disk-alert-daemon/internal/logging"
	"github.com/timfallmk/disk-alert-daemon/internal/monitor"
	"github.com/timfallmk/disk-alert-daemon/internal/notify"
	"github.com/timfallmk/disk-alert-daemon/internal/observability"
)

const (
	name = "disk-alert-daemon"
)

var (
	// These are set by the build system via -ldflags.
	version   = "dev"     // Set via -X main.version=...
	buildTime = "unknown" // Set via -X main.buildTime=...
)

var (
	configPath     = flag.String("config", "", "Path to configuration file")
	showVersion    = flag.Bool("version", false, "Show version information")
	showHelp       = flag.Bool("help", false, "Show help information")
	logLevel       = flag.String("log-level", "", "Set log level (debug, info, warn, error)")
	threshold      = flag.String("threshold", "", "Free space threshold, e.g. 1000GB or 500GiB")
	channel        = flag.String("channel", "", "Slack channel to deliver alerts to")
	token          = flag.String("token", "", "Slack bot token (overrides config and environment)")
	hostname       = flag.String("hostname", "", "Hostname to attribute alerts to")
	includeVirtual = flag.Bool("include-virtual", false, "Also scan virtual filesystems (tmpfs, proc, ...)")
)

func main() {
	flag.Parse()

	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("%s version %s\n", name, version)
		fmt.Printf("Build time: %s\n", buildTime)
		os.Exit(0)
	}

	cfg, configFile, err := loadConfiguration()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	applyCommandLineOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Without a command, perform a one-shot check. That keeps a bare
	// invocation from cron or a shell doing the obvious thing.
	command := "check"
	if flag.NArg() > 0 {
		command = flag.Args()[0]
	}

	switch command {
	case "check":
		if err := runCheck(cfg); err != nil {
			log.Fatalf("Check failed: %v", err)
		}
	case "config":
		showConfiguration(cfg)
	case "test":
		if err := runSelfTest(cfg); err != nil {
			log.Fatalf("Self-test failed: %v", err)
		}

		fmt.Println("Self-test successful!")
	case "run", "install", "remove", "uninstall", "start", "stop", "status":
		runServiceCommand(cfg, configFile, command)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		showUsage()
		os.Exit(1)
	}
}

func runServiceCommand(cfg *config.Config, configFile, command string) {
	service, err := monitor.NewService(cfg, configFile)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	switch command {
	case "run":
		if err := service.Run(); err != nil {
			log.Fatalf("Failed to run service: %v", err)
		}
	case "install":
		status, err := service.Install()
		if err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}

		fmt.Println(status)
	case "remove", "uninstall":
		status, err := service.Remove()
		if err != nil {
			log.Fatalf("Failed to remove service: %v", err)
		}

		fmt.Println(status)
	case "start":
		status, err := service.StartService()
		if err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}

		fmt.Println(status)
	case "stop":
		status, err := service.StopService()
		if err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}

		fmt.Println(status)
	case "status":
		status, err := service.Status()
		if err != nil {
			log.Fatalf("Failed to get service status: %v", err)
		}

		fmt.Println(status)
	}
}

func loadConfiguration() (*config.Config, string, error) {
	if *configPath != "" {
		cfg, err := config.LoadConfig(*configPath)

		return cfg, *configPath, err
	}

	configFile, err := config.FindConfig()
	if err != nil {
		log.Printf("No configuration file found, using defaults")

		return config.DefaultConfig(), "", nil //nolint:nilerr
	}

	cfg, err := config.LoadConfig(configFile)

	return cfg, configFile, err
}

func applyCommandLineOverrides(cfg *config.Config) {
	if *threshold != "" {
		cfg.Alert.Threshold = *threshold
	}

	if *channel != "" {
		cfg.Slack.Channel = *channel
	}

	if *token != "" {
		cfg.Slack.Token = *token
	}

	if *hostname != "" {
		cfg.Alert.Hostname = *hostname
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	// Boolean overrides only apply when the flag was actually given, so a
	// config file setting survives a bare invocation.
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "include-virtual" {
			cfg.Scan.IncludeVirtual = *includeVirtual
		}
	})
}

func setupLogging(cfg *config.Config) {
	logger, err := logging.NewLogger(logging.Config{
		Level:     logging.LogLevel(cfg.Logging.Level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		log.Printf("Warning: failed to set up logging: %v", err)

		return
	}

	logging.SetGlobalLogger(logger)
}

func newNotifier(cfg *config.Config) (*notify.SlackNotifier, error) {
	resolvedToken, err := cfg.ResolveToken()
	if err != nil {
		return nil, err
	}

	return notify.NewSlackNotifier(notify.Settings{
		Token:     resolvedToken,
		APIURL:    cfg.Slack.APIURL,
		Username:  cfg.Slack.Username,
		IconEmoji: cfg.Slack.IconEmoji,
	}), nil
}

func runCheck(cfg *config.Config) error {
	setupLogging(cfg)

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	m, err := monitor.New(cfg, notifier)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	// Closing the collector flushes the run's metrics through the logger.
	collector := observability.NewMetricsCollector(logging.GetGlobalLogger(), time.Minute)
	defer collector.Close()

	m.SetMetrics(observability.NewApplicationMetrics(collector))

	summary, err := m.RunOnce()
	if err != nil {
		return err
	}

	if summary.Failed > 0 {
		log.Printf("Warning: %d of %d alerts failed to deliver", summary.Failed, summary.Breaches)
	}

	return nil
}

func runSelfTest(cfg *config.Config) error {
	setupLogging(cfg)

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	m, err := monitor.New(cfg, notifier)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	checkers := []observability.HealthChecker{
		observability.NewScanHealthChecker("partition enumeration", func(ctx context.Context) error {
			return m.Probe()
		}),
		observability.NewDiskSpaceHealthChecker("root filesystem", "/", 1),
		observability.NewNotifierHealthChecker("Slack credential", func(ctx context.Context) error {
			return notifier.CheckAuth()
		}),
	}

	for _, checker := range checkers {
		log.Printf("Testing %s...", checker.Name())

		ctx, cancel := context.WithTimeout(context.Background(), checker.Timeout())
		err := checker.Check(ctx)

		cancel()

		if err != nil {
			return fmt.Errorf("%s check failed: %w", checker.Name(), err)
		}

		log.Printf("%s OK", checker.Name())
	}

	return nil
}

func showUsage() {
	fmt.Printf(`%s - Disk Free Space Alert Daemon

USAGE:
    %s [OPTIONS] [COMMAND]

COMMANDS:
    check               Scan partitions once and alert on low space (default)
    run                 Run the daemon in foreground mode
    install             Install the daemon as a system service
    remove, uninstall   Remove the daemon service
    start               Start the installed daemon service
    stop                Stop the running daemon service
    status              Show the daemon service status
    config              Show current configuration
    test                Test partition enumeration and the Slack credential

OPTIONS:
    -config string      Path to configuration file
    -threshold string   Free space threshold, e.g. 1000GB or 500GiB
    -channel string     Slack channel to deliver alerts to
    -token string       Slack bot token (overrides config and environment)
    -hostname string    Hostname to attribute alerts to
    -include-virtual    Also scan virtual filesystems (tmpfs, proc, ...)
    -log-level string   Set log level (debug, info, warn, error)
    -version           Show version information
    -help              Show this help message

ENVIRONMENT:
    SLACK_BOT_TOKEN     Slack bot token, used when neither the config file
                        nor the -token flag provides one

EXAMPLES:
    %s                                       # One-shot check with defaults
    %s -threshold 500GB -channel "#ops"      # One-shot check with overrides
    %s -config /etc/alert.yaml run           # Run resident with custom config
    %s install                               # Install as system service
    %s start                                 # Start system service
    %s test                                  # Verify enumeration and credential

CONFIGURATION:
    The daemon looks for configuration files in the following order:
    1. Path specified by -config flag
    2. $XDG_CONFIG_HOME/disk-alert-daemon/config.yaml
    3. $HOME/.config/disk-alert-daemon/config.yaml
    4. /etc/disk-alert-daemon/config.yaml
    5. ./configs/config.yaml

`, name, name, name, name, name, name, name, name)
}

func showConfiguration(cfg *config.Config) {
	fmt.Printf("Current Configuration:\n")
	fmt.Printf("  Scan:\n")
	fmt.Printf("    Interval: %s\n", cfg.Scan.Interval)
	fmt.Printf("    Include Virtual: %t\n", cfg.Scan.IncludeVirtual)
	fmt.Printf("    On Stat Error: %s\n", cfg.Scan.OnStatError)

	if len(cfg.Scan.ExcludeMountPrefixes) > 0 {
		fmt.Printf("    Extra Excluded Prefixes: %s\n", strings.Join(cfg.Scan.ExcludeMountPrefixes, ", "))
	}

	fmt.Printf("  Alert:\n")
	fmt.Printf("    Threshold: %s", cfg.Alert.Threshold)

	if parsed, err := cfg.ParseThreshold(); err == nil {
		fmt.Printf(" (%d bytes)", parsed.Bytes())
	}

	fmt.Printf("\n")

	if cfg.Alert.Hostname != "" {
		fmt.Printf("    Hostname: %s\n", cfg.Alert.Hostname)
	} else {
		fmt.Printf("    Hostname: (detected from system)\n")
	}

	fmt.Printf("  Slack:\n")
	fmt.Printf("    Channel: %s\n", cfg.Slack.Channel)
	fmt.Printf("    Username: %s\n", cfg.Slack.Username)
	fmt.Printf("    Icon: %s\n", cfg.Slack.IconEmoji)

	tokenState := "not set"
	if _, err := cfg.ResolveToken(); err == nil {
		tokenState = "set"
	}

	fmt.Printf("    Token: %s\n", tokenState)
	fmt.Printf("  Logging:\n")
	fmt.Printf("    Level: %s\n", cfg.Logging.Level)
	fmt.Printf("    Format: %s\n", cfg.Logging.Format)
	fmt.Printf("    Output: %s\n", cfg.Logging.Output)
	fmt.Printf("  Daemon:\n")
	fmt.Printf("    Name: %s\n", cfg.Daemon.Name)
}
