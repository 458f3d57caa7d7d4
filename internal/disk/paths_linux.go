//go:build linux

package disk

// System tables joined by the enumerator. The registry lists filesystem
// type names with a "nodev" marker on virtual types; the mount table lists
// active mounts as whitespace-separated device, mountpoint, type and
// option fields.
const (
	defaultFilesystemsPath = "/proc/filesystems"
	defaultMountsPath      = "/etc/mtab"
)
