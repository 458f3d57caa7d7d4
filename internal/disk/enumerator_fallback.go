package disk

import (
	"fmt"
	"log"

	gopsdisk "github.com/shirou/gopsutil/v3/disk"
)

// enumerateFromSystem lists mounts through gopsutil on platforms that do
// not expose the system tables as files.
func (e *Enumerator) enumerateFromSystem(includeVirtual bool) ([]Partition, error) {
	partitions, err := gopsdisk.Partitions(includeVirtual)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk partitions: %w", err)
	}

	var parts []Partition
	for _, partition := range partitions {
		usage, err := gopsdisk.Usage(partition.Mountpoint)
		if err != nil {
			if e.OnStatError == StatErrorAbort {
				return nil, fmt.Errorf("failed to stat %s: %w", partition.Mountpoint, err)
			}
			log.Printf("Warning: failed to get usage for partition %s: %v", partition.Device, err)
			continue
		}

		device := partition.Device
		if device == "none" {
			device = ""
		}

		parts = append(parts, Partition{
			Device:     device,
			Mountpoint: partition.Mountpoint,
			Fstype:     partition.Fstype,
			TotalBytes: usage.Total,
			UsedBytes:  usage.Used,
			FreeBytes:  usage.Free,
		})
	}

	return parts, nil
}
