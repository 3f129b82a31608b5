package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/keepstore/keep/internal/checksum"
)

// ID origin prefixes. A document ID is either a fetchable URI, a
// content-addressed hash, a caller-generated timestamped note, or a
// reserved system name.
const (
	ContentIDPrefix   = "%"
	TimestampIDPrefix = "mem:"
	MetaIDPrefix      = ".meta/"
	NowID             = "now"
)

// contentIDHashLen is the number of hex characters of the content hash
// used in content-addressed IDs. Stores written by other implementations
// share this convention, so it must not change.
const contentIDHashLen = 12

var collectionRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ContentID derives the content-addressed ID for inline text:
// "%" + first 12 hex chars of sha256(content).
func ContentID(content []byte) string {
	return ContentIDPrefix + checksum.Sum(content)[:contentIDHashLen]
}

// TimestampID generates a caller-style timestamped note ID.
func TimestampID(t time.Time) string {
	return TimestampIDPrefix + t.UTC().Format(time.RFC3339)
}

// IsReserved reports whether the ID names a system or singleton document.
func IsReserved(id string) bool {
	return strings.HasPrefix(id, ".") || id == NowID
}

// IsMeta reports whether the ID names a meta-doc containing tag-query
// expressions resolved at read time.
func IsMeta(id string) bool {
	return strings.HasPrefix(id, MetaIDPrefix)
}

// IsURI reports whether the ID looks like a fetchable URI.
func IsURI(id string) bool {
	i := strings.Index(id, "://")
	return i > 0
}

// ValidateCollection checks a collection name against the allowed pattern.
func ValidateCollection(name string) error {
	if !collectionRe.MatchString(name) {
		return fmt.Errorf("invalid collection name %q (must match %s)", name, collectionRe.String())
	}
	return nil
}

// VersionKey is the synthetic vector-index key for an archived version.
func VersionKey(id string, version int) string {
	return fmt.Sprintf("%s@v%d", id, version)
}

// SplitVersionKey splits a vector-index key into its base ID and version
// number. The version is 0 for a current (unversioned) key.
func SplitVersionKey(key string) (string, int) {
	i := strings.LastIndex(key, "@v")
	if i < 0 {
		return key, 0
	}
	var v int
	if _, err := fmt.Sscanf(key[i+2:], "%d", &v); err != nil || v <= 0 {
		return key, 0
	}
	return key[:i], v
}
