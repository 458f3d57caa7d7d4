package monitor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/timfallmk/disk-alert-daemon/internal/alert"
	"github.com/timfallmk/disk-alert-daemon/internal/config"
	"github.com/timfallmk/disk-alert-daemon/internal/disk"
	"github.com/timfallmk/disk-alert-daemon/internal/logging"
	"github.com/timfallmk/disk-alert-daemon/internal/notify"
	"github.com/timfallmk/disk-alert-daemon/internal/observability"
	"github.com/timfallmk/disk-alert-daemon/internal/units"
)

// enumerator matches the part of disk.Enumerator the monitor needs.
type enumerator interface {
	Enumerate(includeVirtual bool) ([]disk.Partition, error)
}

// Monitor runs the scan pipeline: enumerate mounted partitions, drop the
// ones nobody wants alerts for, compare free space against the threshold,
// and push an alert per breached partition to the notifier. Alert text is
// also echoed to the output writer so a run leaves a trace even when
// delivery fails.
type Monitor struct {
	cfg        *config.Config
	threshold  units.Size
	hostname   string
	enumerator enumerator
	notifier   notify.Notifier
	out        io.Writer
	logger     *logging.Logger
	metrics    *observability.ApplicationMetrics
}

// RunSummary describes one completed scan.
type RunSummary struct {
	Partitions int           // partitions enumerated
	Selected   int           // partitions kept after exclusions
	Breaches   int           // partitions below the threshold
	Delivered  int           // alerts accepted by the notifier
	Failed     int           // alerts the notifier rejected
	Duration   time.Duration
}

// New builds a Monitor from the configuration. The notifier is required;
// runs without a delivery credential should be rejected before getting
// here.
func New(cfg *config.Config, notifier notify.Notifier) (*Monitor, error) {
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}

	threshold, err := cfg.ParseThreshold()
	if err != nil {
		return nil, err
	}

	enum := disk.NewEnumerator()
	if cfg.Scan.FilesystemsPath != "" {
		enum.FilesystemsPath = cfg.Scan.FilesystemsPath
	}
	if cfg.Scan.MountsPath != "" {
		enum.MountsPath = cfg.Scan.MountsPath
	}
	if cfg.Scan.OnStatError != "" {
		enum.OnStatError = disk.StatErrorPolicy(cfg.Scan.OnStatError)
	}

	return &Monitor{
		cfg:        cfg,
		threshold:  threshold,
		hostname:   resolveHostname(cfg.Alert.Hostname),
		enumerator: enum,
		notifier:   notifier,
		out:        os.Stdout,
		logger:     logging.WithComponent("monitor"),
	}, nil
}

// SetOutput redirects the alert text echo, which defaults to stdout.
func (m *Monitor) SetOutput(w io.Writer) {
	m.out = w
}

// SetMetrics attaches application metrics recording to each run.
func (m *Monitor) SetMetrics(metrics *observability.ApplicationMetrics) {
	m.metrics = metrics
}

// Hostname returns the hostname alerts are attributed to.
func (m *Monitor) Hostname() string {
	return m.hostname
}

// Threshold returns the parsed alert threshold.
func (m *Monitor) Threshold() units.Size {
	return m.threshold
}

// Probe runs an enumeration pass and reports its error without evaluating
// thresholds or sending anything.
func (m *Monitor) Probe() error {
	_, err := m.enumerator.Enumerate(m.cfg.Scan.IncludeVirtual)
	return err
}

// RunOnce performs a single scan. Delivery failures are logged and counted
// in the summary but do not fail the run; only enumeration failures return
// an error.
func (m *Monitor) RunOnce() (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{}

	parts, err := m.enumerator.Enumerate(m.cfg.Scan.IncludeVirtual)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordScan(0, 0, time.Since(start), false)
		}
		return nil, fmt.Errorf("failed to enumerate partitions: %w", err)
	}
	summary.Partitions = len(parts)

	selected := disk.SelectExcluding(parts, m.cfg.Scan.ExcludeMountPrefixes)
	summary.Selected = len(selected)

	for _, p := range selected {
		m.logger.Debug("partition checked",
			"device", p.Device,
			"mountpoint", p.Mountpoint,
			"free", units.FormatBytes(p.FreeBytes),
			"total", units.FormatBytes(p.TotalBytes))

		if m.metrics != nil {
			m.metrics.RecordPartitionSpace(p.Mountpoint, p.FreeBytes, p.TotalBytes)
		}
	}

	alerts := alert.Evaluate(selected, m.threshold, m.hostname)
	summary.Breaches = len(alerts)

	for _, a := range alerts {
		fmt.Fprintln(m.out, a.Message)

		if m.metrics != nil {
			m.metrics.RecordAlert(a.Device, a.Mountpoint)
		}

		sendStart := time.Now()
		err := m.notifier.Send(a.Message, m.cfg.Slack.Channel)
		if m.metrics != nil {
			m.metrics.RecordDelivery(m.cfg.Slack.Channel, err == nil, time.Since(sendStart))
		}

		if err != nil {
			summary.Failed++

			var dErr *notify.DeliveryError
			if errors.As(err, &dErr) {
				m.logger.Warn("failed to deliver alert",
					"channel", m.cfg.Slack.Channel,
					"device", a.Device,
					"code", dErr.Code,
					"reason", dErr.Reason)
			} else {
				m.logger.Warn("failed to deliver alert",
					"channel", m.cfg.Slack.Channel,
					"device", a.Device,
					"error", err)
			}
			continue
		}

		summary.Delivered++
		m.logger.Info("alert delivered",
			"channel", m.cfg.Slack.Channel,
			"device", a.Device,
			"mountpoint", a.Mountpoint)
	}

	summary.Duration = time.Since(start)
	if m.metrics != nil {
		m.metrics.RecordScan(summary.Selected, summary.Breaches, summary.Duration, true)
	}

	m.logger.Info("scan completed",
		"partitions", summary.Partitions,
		"selected", summary.Selected,
		"breaches", summary.Breaches,
		"delivered", summary.Delivered,
		"failed", summary.Failed,
		"duration", summary.Duration)

	return summary, nil
}

// resolveHostname picks the configured override, then the OS-reported
// hostname, then "unknown".
func resolveHostname(override string) string {
	if override != "" {
		return override
	}
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "unknown"
}
