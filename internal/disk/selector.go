package disk

import "strings"

// excludedMountPrefixes are never monitored. Snap images mount full and
// boot partitions stay near capacity on a healthy host.
var excludedMountPrefixes = []string{"/snap", "/boot"}

// Select filters partitions down to the set worth monitoring: mountpoint
// non-empty and not under an excluded prefix. Pure and order-preserving.
func Select(parts []Partition) []Partition {
	return SelectExcluding(parts, nil)
}

// SelectExcluding behaves like Select and additionally drops partitions
// whose mountpoint starts with any of the extra prefixes. The built-in
// exclusions always apply.
func SelectExcluding(parts []Partition, extraPrefixes []string) []Partition {
	result := make([]Partition, 0, len(parts))
	for _, p := range parts {
		if p.Mountpoint == "" {
			continue
		}
		if hasAnyPrefix(p.Mountpoint, excludedMountPrefixes) {
			continue
		}
		if hasAnyPrefix(p.Mountpoint, extraPrefixes) {
			continue
		}
		result = append(result, p)
	}
	return result
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
