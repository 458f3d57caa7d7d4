//go:build !linux

package disk

// No filesystem registry or mount table files here; empty paths route
// enumeration through gopsutil.
const (
	defaultFilesystemsPath = ""
	defaultMountsPath      = ""
)
