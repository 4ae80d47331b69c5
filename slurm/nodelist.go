package slurm

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandNodelist expands the compressed host list Slurm prints, such as
// "nid[001-003,007],login1", into single host names.
func ExpandNodelist(nodelist string) ([]string, error) {
	var hosts []string
	for _, item := range splitTopLevel(strings.TrimSpace(nodelist)) {
		expanded, err := expandItem(item)
		if err != nil {
			return nil, fmt.Errorf("nodelist %q: %w", nodelist, err)
		}
		hosts = append(hosts, expanded...)
	}
	return hosts, nil
}

// splitTopLevel splits on commas outside brackets.
func splitTopLevel(s string) []string {
	var items []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				if i > start {
					items = append(items, s[start:i])
				}
				start = i + 1
			}
		}
	}
	if start < len(s) {
		items = append(items, s[start:])
	}
	return items
}

func expandItem(item string) ([]string, error) {
	open := strings.IndexByte(item, '[')
	if open < 0 {
		if strings.ContainsRune(item, ']') {
			return nil, fmt.Errorf("unbalanced ']' in %q", item)
		}
		return []string{item}, nil
	}
	end := strings.IndexByte(item[open:], ']')
	if end < 0 {
		return nil, fmt.Errorf("unbalanced '[' in %q", item)
	}
	end += open
	prefix, ranges, rest := item[:open], item[open+1:end], item[end+1:]

	suffixes, err := expandItem(rest)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, r := range strings.Split(ranges, ",") {
		ids, err := expandRange(r)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			for _, suffix := range suffixes {
				hosts = append(hosts, prefix+id+suffix)
			}
		}
	}
	return hosts, nil
}

// expandRange reads "7" or "001-003"; the width of the low bound is kept.
func expandRange(r string) ([]string, error) {
	bounds := strings.SplitN(r, "-", 2)
	lo, err := strconv.Atoi(bounds[0])
	if err != nil {
		return nil, fmt.Errorf("invalid range %q", r)
	}
	if len(bounds) == 1 {
		return []string{bounds[0]}, nil
	}
	hi, err := strconv.Atoi(bounds[1])
	if err != nil || hi < lo {
		return nil, fmt.Errorf("invalid range %q", r)
	}
	width := len(bounds[0])
	ids := make([]string, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		ids = append(ids, fmt.Sprintf("%0*d", width, n))
	}
	return ids, nil
}
