//go:build !windows

package disk

import "golang.org/x/sys/unix"

func statfs(path string) (spaceStat, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return spaceStat{}, err
	}

	return spaceStat{
		blockSize:   uint64(st.Bsize),
		totalBlocks: uint64(st.Blocks),
		availBlocks: uint64(st.Bavail),
		freeBlocks:  uint64(st.Bfree),
	}, nil
}
