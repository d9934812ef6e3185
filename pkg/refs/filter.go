package refs

// Dedup marks every reference whose identity was already claimed by an
// earlier reference as not eligible. The first occurrence keeps the upload.
// Remote references neither claim nor count as duplicates.
func Dedup(list []*Reference) int {
	claimed := make(map[string]struct{}, len(list))
	skipped := 0
	for _, ref := range list {
		if ref.Remote {
			continue
		}
		if _, ok := claimed[ref.Identity]; ok {
			if ref.Eligible {
				skipped++
			}
			ref.Eligible = false
			continue
		}
		claimed[ref.Identity] = struct{}{}
	}
	return skipped
}

// FilterRemote marks remote-scheme references as not eligible.
func FilterRemote(list []*Reference) int {
	n := 0
	for _, ref := range list {
		if ref.Remote {
			if ref.Eligible {
				n++
			}
			ref.Eligible = false
		}
	}
	return n
}

// FilterStats counts what each sub-pass excluded.
type FilterStats struct {
	Duplicates int
	Remote     int
}

// Filter runs Dedup then FilterRemote.
func Filter(list []*Reference) FilterStats {
	return FilterStats{
		Duplicates: Dedup(list),
		Remote:     FilterRemote(list),
	}
}
