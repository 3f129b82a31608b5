package model

import "strings"

// SystemTagPrefix marks tag keys managed by the store itself. Callers can
// neither set nor remove these.
const SystemTagPrefix = "_"

// IsSystemTag reports whether a tag key is system-managed.
func IsSystemTag(key string) bool {
	return strings.HasPrefix(key, SystemTagPrefix)
}

// UserTags returns the caller-visible subset of a tag map, dropping
// system-managed keys. The result is always a fresh map.
func UserTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if !IsSystemTag(k) {
			out[k] = v
		}
	}
	return out
}

// FilterSystemTags drops system-prefixed keys from caller input.
func FilterSystemTags(tags map[string]string) map[string]string {
	return UserTags(tags)
}

// CloneTags returns a shallow copy of a tag map; nil stays nil.
func CloneTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// MergeTags overlays tag maps left to right: later maps win on key
// conflicts. Nil maps are skipped.
func MergeTags(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// UserTagsEqual reports whether two tag maps agree on their user-visible
// subsets. System keys are ignored on both sides.
func UserTagsEqual(a, b map[string]string) bool {
	ua, ub := UserTags(a), UserTags(b)
	if len(ua) != len(ub) {
		return false
	}
	for k, v := range ua {
		if ov, ok := ub[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// SharedUserTags counts the key=value pairs present in both maps,
// considering user tags only.
func SharedUserTags(a, b map[string]string) int {
	n := 0
	for k, v := range UserTags(a) {
		if ov, ok := b[k]; ok && ov == v && !IsSystemTag(k) {
			n++
		}
	}
	return n
}
