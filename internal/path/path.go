// Package path implements sparkwheel's identifier (Id) addressing scheme:
// splitting, joining, depth computation, file-qualification, and relative
// prefix resolution. See spec §3.2 and §4.1.
package path

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Sep is the segment separator used by every Id in a sparkwheel tree.
const Sep = "::"

// relativePrefix matches a reference (@) or macro (%) token immediately
// followed by one or more consecutive "::" — e.g. "@::", "%::::".
var relativePrefix = regexp.MustCompile(`(?:@|%)(?:::)+`)

// yamlExt matches a YAML file extension, case-insensitively.
var yamlExt = regexp.MustCompile(`(?i)\.ya?ml`)

// Split breaks an Id into its segments. The empty Id (root) splits to an
// empty slice.
func Split(id string) []string {
	if id == "" {
		return nil
	}
	return strings.Split(id, Sep)
}

// Join reassembles segments produced by Split back into an Id.
func Join(segments []string) string {
	return strings.Join(segments, Sep)
}

// Depth reports the number of segments in id; the root ("") has depth 0.
func Depth(id string) int {
	return len(Split(id))
}

// Child appends a single segment to a parent Id.
func Child(id, segment string) string {
	if id == "" {
		return segment
	}
	return id + Sep + segment
}

// Parent returns the Id one level up from id, and the final segment that
// was dropped. Parent("") returns ("", "").
func Parent(id string) (parent, last string) {
	segs := Split(id)
	if len(segs) == 0 {
		return "", ""
	}
	return Join(segs[:len(segs)-1]), segs[len(segs)-1]
}

// SplitFileAndID splits a string of the form "FILE.yaml[::ID]" into the
// file path and the remaining Id. If s does not contain a recognizable
// YAML file extension, file is "" and id is s unchanged. When more than one
// candidate extension is present, the rightmost one that is followed by the
// separator or the end of the string wins (spec §4.1).
func SplitFileAndID(s string) (file, id string) {
	matches := yamlExt.FindAllStringIndex(s, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		end := matches[i][1]
		if end == len(s) {
			return s, ""
		}
		if strings.HasPrefix(s[end:], Sep) {
			return s[:end], s[end+len(Sep):]
		}
	}
	return "", s
}

// IsYAMLPath reports whether s names a file ending in .yaml or .yml.
func IsYAMLPath(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// RelativeRangeError is returned by ResolveRelative when a relative prefix
// reaches further up the tree than current depth allows.
type RelativeRangeError struct {
	Prefix string
	Depth  int
}

func (e *RelativeRangeError) Error() string {
	return fmt.Sprintf("relative prefix %q goes out of range of a node at depth %d", e.Prefix, e.Depth)
}

// ResolveRelative rewrites every relative "@::.." / "%::.." prefix found in
// value into an absolute one, computed against currentID. A prefix of n
// consecutive "::" drops the last n segments of currentID (root counts as
// having exactly one segment for this purpose, so "@::x" at the root still
// addresses a top-level key — the root's "siblings" are itself). n beyond
// that range is out of bounds. Prefixes are substituted longest-first so a
// run of four colons is never partially shadowed by a rule for two.
func ResolveRelative(currentID, value string) (string, error) {
	matches := relativePrefix.FindAllString(value, -1)
	if matches == nil {
		return value, nil
	}

	seen := make(map[string]bool, len(matches))
	var prefixes []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			prefixes = append(prefixes, m)
		}
	}
	// Longest prefix first: byte-wise string comparison already orders
	// "@::::" after "@::" since one is a strict prefix of the other.
	sort.Sort(sort.Reverse(sort.StringSlice(prefixes)))

	segments := Split(currentID)
	length := len(segments)
	if currentID == "" {
		length = 1
	}

	out := value
	for _, prefix := range prefixes {
		sym := prefix[:1]
		n := strings.Count(prefix[1:], Sep)
		if n > length {
			return "", &RelativeRangeError{Prefix: prefix, Depth: Depth(currentID)}
		}
		keep := length - n
		var replacement string
		if keep <= 0 {
			replacement = sym
		} else {
			replacement = sym + Join(segments[:keep]) + Sep
		}
		out = strings.ReplaceAll(out, prefix, replacement)
	}
	return out, nil
}
