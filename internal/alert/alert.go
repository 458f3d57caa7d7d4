package alert

import (
	"fmt"

	"github.com/timfallmk/disk-alert-daemon/internal/disk"
	"github.com/timfallmk/disk-alert-daemon/internal/units"
)

// Alert describes one partition whose free space fell below the threshold.
// It exists only for the duration of a run; nothing is persisted between
// checks.
type Alert struct {
	Hostname   string
	Device     string
	Mountpoint string
	Threshold  units.Size
	Report     string
	Message    string
}

// Evaluate compares each partition's free space against the threshold and
// builds an alert for every partition strictly below it. The comparison
// uses exact byte counts, not the rounded display values, so a partition
// sitting exactly at the threshold does not alert. Pure function, no I/O.
func Evaluate(parts []disk.Partition, threshold units.Size, hostname string) []Alert {
	var alerts []Alert
	for _, p := range parts {
		if p.FreeBytes >= threshold.Bytes() {
			continue
		}

		report := p.ReportString()
		message := fmt.Sprintf(
			":robot_face: :hourglass_flowing_sand: :warning: WARNING: Low disk space on `%s (%s)` (threshold: <=%s).\n`%s`",
			hostname, p.Device, threshold, report)

		alerts = append(alerts, Alert{
			Hostname:   hostname,
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Threshold:  threshold,
			Report:     report,
			Message:    message,
		})
	}
	return alerts
}
