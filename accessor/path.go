package accessor

import (
	"fmt"
	"strconv"
	"strings"
)

// pathStep is one dotted segment of a property path, with any trailing
// index accessors (a.b[2][0].c parses to three steps).
type pathStep struct {
	name    string
	indexes []int
}

func parsePath(path string) ([]pathStep, error) {
	if path == "" {
		return nil, fmt.Errorf("accessor: empty property path")
	}
	parts := strings.Split(path, ".")
	steps := make([]pathStep, 0, len(parts))
	for _, part := range parts {
		name := part
		var indexes []int
		for {
			open := strings.IndexByte(name, '[')
			if open < 0 {
				break
			}
			closing := strings.IndexByte(name[open:], ']')
			if closing < 0 {
				return nil, fmt.Errorf("accessor: unterminated index in path segment %q", part)
			}
			idx, err := strconv.Atoi(name[open+1 : open+closing])
			if err != nil {
				return nil, fmt.Errorf("accessor: bad index in path segment %q: %w", part, err)
			}
			indexes = append(indexes, idx)
			name = name[:open] + name[open+closing+1:]
		}
		if name == "" && len(indexes) == 0 {
			return nil, fmt.Errorf("accessor: empty segment in path %q", path)
		}
		steps = append(steps, pathStep{name: name, indexes: indexes})
	}
	return steps, nil
}
