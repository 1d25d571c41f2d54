package cache

import (
	"strings"
)

// Key joins prefix and parts with colons, skipping empty parts:
//
//	cache.Key("tree", treeID)               // "tree:42"
//	cache.Key("like", treeID, userID)       // "like:42:u-7"
func Key(prefix string, parts ...string) string {
	filtered := make([]string, 0, len(parts)+1)
	if prefix != "" {
		filtered = append(filtered, prefix)
	}
	for _, part := range parts {
		if part != "" {
			filtered = append(filtered, part)
		}
	}
	return strings.Join(filtered, ":")
}

// Pattern is Key with a trailing wildcard segment, for DeleteByPattern:
//
//	cache.Pattern("notifications", userID) // "notifications:u-7:*"
func Pattern(prefix string, parts ...string) string {
	return Key(prefix, parts...) + ":*"
}

// namespaceOf returns the first segment of key.
func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// hasGlob reports whether s contains glob metacharacters.
func hasGlob(s string) bool {
	return strings.ContainsAny(s, `*?[\`)
}

// qualify prepends the deployment-wide key prefix.
func qualify(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
