package resource

// Merge appends the resources of extra to base, skipping any that are already
// present. Order of first appearance is preserved.
func Merge(base []Resource, extra ...[]Resource) []Resource {
	seen := make(map[Key]bool, len(base))
	out := make([]Resource, 0, len(base))
	for _, r := range base {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	for _, list := range extra {
		for _, r := range list {
			if seen[r.Key()] {
				continue
			}
			seen[r.Key()] = true
			out = append(out, r)
		}
	}
	return out
}

// Futures returns the subset of rs that carry the future flag.
func Futures(rs []Resource) []Resource {
	var out []Resource
	for _, r := range rs {
		if r.IsFuture() {
			out = append(out, r)
		}
	}
	return out
}

// FilterType returns the resources of the given type.
func FilterType(rs []Resource, typ string) []Resource {
	var out []Resource
	for _, r := range rs {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// ByProvider groups resources by the item that advertised them.
func ByProvider(rs []Resource) map[string][]Resource {
	out := make(map[string][]Resource)
	for _, r := range rs {
		out[r.Provider] = append(out[r.Provider], r)
	}
	return out
}
