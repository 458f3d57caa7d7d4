package disk

import (
	"fmt"

	"github.com/timfallmk/disk-alert-daemon/internal/units"
)

// Partition describes one mounted filesystem with its space statistics.
// Device is empty when the mount table records the anonymous placeholder
// "none". UsedBytes plus FreeBytes can come in below TotalBytes because
// filesystems reserve blocks that unprivileged callers cannot use, so the
// free proportion reads a few percent lower than common disk usage tools.
type Partition struct {
	Device     string
	Mountpoint string
	Fstype     string
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
}

// ProportionFree returns the fraction of the partition that is free. The
// second return value is false when TotalBytes is zero and the proportion
// is undefined.
func (p Partition) ProportionFree() (float64, bool) {
	if p.TotalBytes == 0 {
		return 0, false
	}
	return float64(p.FreeBytes) / float64(p.TotalBytes), true
}

// ReportString renders the partition's free and total space in
// human-readable units together with its device and mountpoint.
func (p Partition) ReportString() string {
	return fmt.Sprintf("%s / %s free space remaining on (device=%s, mountpoint=%s)",
		units.FormatBytes(p.FreeBytes), units.FormatBytes(p.TotalBytes), p.Device, p.Mountpoint)
}
