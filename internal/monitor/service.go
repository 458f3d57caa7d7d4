package monitor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/takama/daemon"

	"github.com/timfallmk/disk-alert-daemon/internal/config"
	"github.com/timfallmk/disk-alert-daemon/internal/logging"
	"github.com/timfallmk/disk-alert-daemon/internal/notify"
	"github.com/timfallmk/disk-alert-daemon/internal/observability"
)

const (
	metricsFlushInterval = time.Minute
	healthCheckInterval  = time.Minute
	runtimeMetricsPeriod = 30 * time.Second

	// Minimum free space required on the log volume before the daemon
	// reports itself unhealthy.
	minLogSpaceBytes = 100 * 1024 * 1024
)

// Service wraps a Monitor in a long-running daemon: a periodic scan loop,
// configuration hot reload on SIGHUP or file change, OS service
// management, and runtime metrics.
type Service struct {
	daemon.Daemon

	config     *config.Config
	configPath string

	monitor  *Monitor
	notifier *notify.SlackNotifier

	collector  *observability.MetricsCollector
	appMetrics *observability.ApplicationMetrics
	health     *observability.HealthMonitor
	events     *logging.EventLogger
	watcher    *fsnotify.Watcher
	scanTicker *time.Ticker

	mu       sync.Mutex // guards config, monitor, and notifier across reloads
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	started  time.Time
}

// NewService builds a Service around the configuration. configPath is the
// file the configuration was loaded from; it drives hot reload and may be
// empty when running on defaults.
func NewService(cfg *config.Config, configPath string) (*Service, error) {
	d, err := daemon.New(cfg.Daemon.Name, cfg.Daemon.Description, daemon.SystemDaemon)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	service := &Service{
		Daemon:     d,
		config:     cfg,
		configPath: configPath,
		ctx:        ctx,
		cancel:     cancel,
		stopCh:     make(chan struct{}),
	}

	return service, nil
}

func (s *Service) Initialize() error {
	log.Printf("Initializing disk alert daemon...")

	logger, err := logging.NewLogger(logging.Config{
		Level:     logging.LogLevel(s.config.Logging.Level),
		Format:    logging.LogFormat(s.config.Logging.Format),
		Output:    s.config.Logging.Output,
		AddSource: s.config.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logging.SetGlobalLogger(logger)

	token, err := s.config.ResolveToken()
	if err != nil {
		return err
	}

	s.notifier = notify.NewSlackNotifier(notify.Settings{
		Token:     token,
		APIURL:    s.config.Slack.APIURL,
		Username:  s.config.Slack.Username,
		IconEmoji: s.config.Slack.IconEmoji,
	})

	monitor, err := New(s.config, s.notifier)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	s.monitor = monitor

	s.collector = observability.NewMetricsCollector(logger, metricsFlushInterval)
	s.appMetrics = observability.NewApplicationMetrics(s.collector)
	s.monitor.SetMetrics(s.appMetrics)
	s.events = logging.NewEventLogger(logger)

	s.health = observability.NewHealthMonitor(logger, s.appMetrics, healthCheckInterval)
	s.registerHealthCheckers()

	if err := s.startConfigWatcher(); err != nil {
		log.Printf("Warning: config hot reload disabled: %v", err)
	}

	log.Printf("Daemon initialized successfully")
	return nil
}

func (s *Service) registerHealthCheckers() {
	s.health.RegisterChecker(observability.NewScanHealthChecker("scan", func(ctx context.Context) error {
		return s.currentMonitor().Probe()
	}))

	s.health.RegisterChecker(observability.NewNotifierHealthChecker("notifier", func(ctx context.Context) error {
		return s.currentNotifier().CheckAuth()
	}))

	if s.configPath != "" {
		s.health.RegisterChecker(observability.NewConfigHealthChecker("config", func(ctx context.Context) error {
			_, err := config.LoadConfig(s.configPath)
			return err
		}))
	}

	if s.config.Daemon.LogFile != "" {
		logDir := filepath.Dir(s.config.Daemon.LogFile)
		s.health.RegisterChecker(observability.NewDiskSpaceHealthChecker("log_space", logDir, minLogSpaceBytes))
	}
}

func (s *Service) Start() error {
	log.Printf("Starting disk alert daemon...")

	if err := s.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	s.started = time.Now()
	s.scanTicker = time.NewTicker(s.config.Scan.Interval)

	s.wg.Add(1)
	go s.runScanLoop()

	s.wg.Add(1)
	go s.runRuntimeMetrics()

	s.wg.Add(1)
	go s.handleSignals()

	s.health.Start()

	log.Printf("Daemon started successfully")
	return nil
}

func (s *Service) Stop() error {
	log.Printf("Stopping disk alert daemon...")

	s.requestStop()
	s.cancel()

	s.wg.Wait()

	if s.scanTicker != nil {
		s.scanTicker.Stop()
	}

	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			log.Printf("Warning: failed to close config watcher: %v", err)
		}
	}

	if s.health != nil {
		s.health.Stop()
	}

	if s.events != nil {
		s.events.Close()
	}

	if s.collector != nil {
		s.collector.Close()
	}

	log.Printf("Daemon stopped successfully")
	return nil
}

func (s *Service) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	<-s.stopCh
	return s.Stop()
}

// requestStop closes stopCh exactly once, no matter how many shutdown
// paths race to it.
func (s *Service) requestStop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Service) currentMonitor() *Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitor
}

func (s *Service) currentNotifier() *notify.SlackNotifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifier
}

func (s *Service) runScanLoop() {
	defer s.wg.Done()

	// First scan immediately, then on the ticker
	s.scan()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.scanTicker.C:
			s.scan()
		}
	}
}

func (s *Service) scan() {
	summary, err := s.currentMonitor().RunOnce()
	if err != nil {
		log.Printf("Warning: scan failed: %v", err)
		s.events.LogScan(logging.LevelWarn, "scan failed", "", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if summary.Breaches > 0 {
		s.events.LogScan(logging.LevelWarn, "low disk space detected", "", map[string]interface{}{
			"breaches":  summary.Breaches,
			"delivered": summary.Delivered,
			"failed":    summary.Failed,
		})
	}
}

func (s *Service) runRuntimeMetrics() {
	defer s.wg.Done()

	ticker := time.NewTicker(runtimeMetricsPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.appMetrics.RecordDaemonUptime(time.Since(s.started))

			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			s.appMetrics.RecordMemoryUsage(stats.HeapAlloc, stats.HeapSys, stats.HeapInuse)
			s.appMetrics.RecordGoroutines(runtime.NumGoroutine())
		}
	}
}

func (s *Service) handleSignals() {
	defer s.wg.Done()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.stopCh:
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				log.Printf("Received signal %v, shutting down...", sig)
				s.requestStop()
				return
			case syscall.SIGHUP:
				log.Printf("Received SIGHUP, reloading configuration...")
				if err := s.reloadConfig(); err != nil {
					log.Printf("Warning: failed to reload config: %v", err)
				}
			}
		}
	}
}

// startConfigWatcher begins watching the configuration file for changes.
// The watch is on the directory because editors and config management
// tools usually replace the file instead of writing it in place.
func (s *Service) startConfigWatcher() error {
	if s.configPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.configPath), err)
	}

	s.watcher = watcher

	s.wg.Add(1)
	go s.watchConfig()

	return nil
}

func (s *Service) watchConfig() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != filepath.Clean(s.configPath) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			log.Printf("Configuration file changed, reloading...")
			if err := s.reloadConfig(); err != nil {
				log.Printf("Warning: failed to reload config: %v", err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: config watcher error: %v", err)
		}
	}
}

func (s *Service) reloadConfig() error {
	start := time.Now()

	newConfig, err := config.LoadConfig(s.configPath)
	if err != nil {
		s.recordReload(false, start)
		return fmt.Errorf("failed to load config: %w", err)
	}

	token, err := newConfig.ResolveToken()
	if err != nil {
		s.recordReload(false, start)
		return err
	}

	notifier := notify.NewSlackNotifier(notify.Settings{
		Token:     token,
		APIURL:    newConfig.Slack.APIURL,
		Username:  newConfig.Slack.Username,
		IconEmoji: newConfig.Slack.IconEmoji,
	})

	monitor, err := New(newConfig, notifier)
	if err != nil {
		s.recordReload(false, start)
		return fmt.Errorf("failed to rebuild monitor: %w", err)
	}
	monitor.SetMetrics(s.appMetrics)

	s.mu.Lock()
	oldInterval := s.config.Scan.Interval
	s.config = newConfig
	s.notifier = notifier
	s.monitor = monitor
	s.mu.Unlock()

	if newConfig.Scan.Interval != oldInterval && s.scanTicker != nil {
		s.scanTicker.Reset(newConfig.Scan.Interval)
	}

	s.recordReload(true, start)
	s.events.LogConfig(logging.LevelInfo, "configuration reloaded", s.configPath, map[string]interface{}{
		"interval":  newConfig.Scan.Interval.String(),
		"threshold": newConfig.Alert.Threshold,
		"channel":   newConfig.Slack.Channel,
	})

	log.Printf("Configuration reloaded successfully")
	return nil
}

func (s *Service) recordReload(success bool, start time.Time) {
	if s.appMetrics != nil {
		s.appMetrics.RecordConfigReload(success, time.Since(start))
	}
}

// Health reports the current component health, keyed by checker name.
func (s *Service) Health() map[string]*observability.HealthCheck {
	return s.health.GetHealth()
}

func (s *Service) Install() (string, error) {
	// The installed unit invokes the daemon with the run command so it
	// stays resident instead of doing a one-shot check.
	return s.Daemon.Install("run")
}

func (s *Service) Remove() (string, error) {
	return s.Daemon.Remove()
}

func (s *Service) Status() (string, error) {
	return s.Daemon.Status()
}

func (s *Service) StartService() (string, error) {
	return s.Daemon.Start()
}

func (s *Service) StopService() (string, error) {
	return s.Daemon.Stop()
}
