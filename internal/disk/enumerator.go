package disk

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
)

// StatErrorPolicy controls what happens when space statistics cannot be
// queried for a single mountpoint, such as a stale network filesystem
// handle.
type StatErrorPolicy string

// Stat error policy constants.
const (
	// StatErrorSkip logs a warning for the offending mountpoint and
	// continues with the rest of the mount table.
	StatErrorSkip StatErrorPolicy = "skip"
	// StatErrorAbort fails the whole enumeration on the first mountpoint
	// that cannot be statted.
	StatErrorAbort StatErrorPolicy = "abort"
)

// spaceStat holds raw block counts from the OS space statistics call.
// freeBlocks includes reserved blocks; availBlocks is what unprivileged
// callers can actually use.
type spaceStat struct {
	blockSize   uint64
	totalBlocks uint64
	availBlocks uint64
	freeBlocks  uint64
}

// Enumerator lists mounted filesystems by joining the physical
// filesystem-type registry with the mount table and querying space
// statistics per mountpoint. The table paths and the statistics call are
// fields so tests can point them at fixtures. On platforms without the
// system tables the paths are empty and enumeration goes through gopsutil
// instead.
type Enumerator struct {
	FilesystemsPath string
	MountsPath      string
	OnStatError     StatErrorPolicy

	statfs func(path string) (spaceStat, error)
}

// NewEnumerator returns an Enumerator wired to the platform's system
// tables and statistics call, skipping unstattable mountpoints with a
// warning.
func NewEnumerator() *Enumerator {
	return &Enumerator{
		FilesystemsPath: defaultFilesystemsPath,
		MountsPath:      defaultMountsPath,
		OnStatError:     StatErrorSkip,
		statfs:          statfs,
	}
}

// Enumerate returns the mounted filesystems with their space statistics.
// When includeVirtual is false, mounts without a real backing device are
// dropped: entries whose device field is the placeholder "none" and
// entries whose filesystem type the registry marks as virtual. A device
// field of "none" is normalized to the empty string. Failure to open
// either system table is returned to the caller; per-mountpoint stat
// failures follow OnStatError.
func (e *Enumerator) Enumerate(includeVirtual bool) ([]Partition, error) {
	if e.FilesystemsPath == "" || e.MountsPath == "" {
		return e.enumerateFromSystem(includeVirtual)
	}

	physical, err := e.readPhysicalTypes()
	if err != nil {
		return nil, err
	}

	return e.readMounts(physical, includeVirtual)
}

// readPhysicalTypes reads the filesystem-type registry and returns the set
// of types backed by a real device. Registry lines carry a "nodev" marker
// for virtual types; every unmarked line names a physical type.
func (e *Enumerator) readPhysicalTypes() (map[string]struct{}, error) {
	f, err := os.Open(e.FilesystemsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open filesystem registry %s: %w", e.FilesystemsPath, err)
	}
	defer f.Close()

	physical := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "nodev") {
			continue
		}
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		physical[name] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filesystem registry %s: %w", e.FilesystemsPath, err)
	}

	return physical, nil
}

func (e *Enumerator) readMounts(physical map[string]struct{}, includeVirtual bool) ([]Partition, error) {
	f, err := os.Open(e.MountsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open mount table %s: %w", e.MountsPath, err)
	}
	defer f.Close()

	var parts []Partition

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		device, mountpoint, fstype := fields[0], fields[1], fields[2]

		if !includeVirtual {
			if device == "none" {
				continue
			}
			if _, ok := physical[fstype]; !ok {
				continue
			}
		}
		if device == "none" {
			device = ""
		}

		st, err := e.statfs(mountpoint)
		if err != nil {
			if e.OnStatError == StatErrorAbort {
				return nil, fmt.Errorf("failed to stat %s: %w", mountpoint, err)
			}
			log.Printf("Warning: failed to stat %s: %v", mountpoint, err)
			continue
		}

		parts = append(parts, Partition{
			Device:     device,
			Mountpoint: mountpoint,
			Fstype:     fstype,
			TotalBytes: st.totalBlocks * st.blockSize,
			UsedBytes:  (st.totalBlocks - st.freeBlocks) * st.blockSize,
			FreeBytes:  st.availBlocks * st.blockSize,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mount table %s: %w", e.MountsPath, err)
	}

	return parts, nil
}

// SpaceStatistics returns total and free bytes for the filesystem holding
// path. Free counts only the space available to unprivileged callers.
func SpaceStatistics(path string) (total, free uint64, err error) {
	st, err := statfs(path)
	if err != nil {
		return 0, 0, err
	}
	return st.totalBlocks * st.blockSize, st.availBlocks * st.blockSize, nil
}
