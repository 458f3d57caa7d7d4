//go:build windows

package disk

import "golang.org/x/sys/windows"

func statfs(path string) (spaceStat, error) {
	var (
		freeBytesAvailable     uint64
		totalNumberOfBytes     uint64
		totalNumberOfFreeBytes uint64
	)
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return spaceStat{}, err
	}
	if err := windows.GetDiskFreeSpaceEx(p, &freeBytesAvailable, &totalNumberOfBytes, &totalNumberOfFreeBytes); err != nil {
		return spaceStat{}, err
	}

	// The API reports bytes directly, so block counts use a unit block size.
	return spaceStat{
		blockSize:   1,
		totalBlocks: totalNumberOfBytes,
		availBlocks: freeBytesAvailable,
		freeBlocks:  totalNumberOfFreeBytes,
	}, nil
}
