package notice

import (
	"strconv"
	"strings"
)

// ParseIDs reads a list of record ids such as "12,34" or "[12, 34]".
// Duplicates collapse and input order is kept.
func ParseIDs(s string) ([]uint32, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")

	var ids []uint32
	seen := make(map[uint32]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, &ValidationError{Field: "ids", Reason: "not a notice id: " + strconv.Quote(part)}
		}
		if _, dup := seen[uint32(id)]; dup {
			continue
		}
		seen[uint32(id)] = struct{}{}
		ids = append(ids, uint32(id))
	}

	if len(ids) == 0 {
		return nil, &ValidationError{Field: "ids", Reason: "at least one notice id is required"}
	}
	return ids, nil
}

// FormatIDs is the inverse of ParseIDs
func FormatIDs(ids []uint32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}
