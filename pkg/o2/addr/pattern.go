// Package addr implements OSC-style address pattern matching over a
// single path segment: '?' one char, '*' any run, '[set]'/'[!set]'/
// '[a-z]' a character class, '{alt}' alternation (spec.md §3
// "Address", §4.C step 3).
package addr

import "strings"

// HasPatternChars reports whether s contains any OSC glob
// metacharacter, used to pick the fast literal-lookup path (spec.md
// §4.C step 2) versus the recursive matcher (step 3).
func HasPatternChars(s string) bool {
	return strings.ContainsAny(s, "*?[]{}")
}

// Match reports whether the single path segment pattern matches the
// literal segment name. Both are plain segments (no '/'); splitting a
// full address into segments is the directory package's job.
func Match(pattern, name string) bool {
	ok, _, _ := matchFrom(pattern, 0, name, 0)
	return ok
}

// matchFrom attempts to match pattern[pi:] against name[ni:], returning
// whether the whole remainder matched and the consumed lengths (used
// internally by '*' backtracking).
func matchFrom(pattern string, pi int, name string, ni int) (bool, int, int) {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '?':
			if ni >= len(name) {
				return false, pi, ni
			}
			pi++
			ni++
		case '*':
			// Greedy with backtracking: try consuming the longest
			// remaining run first, shrink until the rest matches.
			pi++
			for n := len(name); n >= ni; n-- {
				if ok, _, _ := matchFrom(pattern, pi, name, n); ok {
					return true, len(pattern), len(name)
				}
			}
			return false, pi, ni
		case '[':
			end := strings.IndexByte(pattern[pi:], ']')
			if end < 0 {
				return false, pi, ni
			}
			end += pi
			if ni >= len(name) {
				return false, pi, ni
			}
			if !matchClass(pattern[pi+1:end], name[ni]) {
				return false, pi, ni
			}
			pi = end + 1
			ni++
		case '{':
			end := strings.IndexByte(pattern[pi:], '}')
			if end < 0 {
				return false, pi, ni
			}
			end += pi
			alts := strings.Split(pattern[pi+1:end], ",")
			rest := pattern[end+1:]
			for _, alt := range alts {
				if strings.HasPrefix(name[ni:], alt) {
					if ok, _, _ := matchFrom(rest, 0, name, ni+len(alt)); ok {
						return true, len(pattern), len(name)
					}
				}
			}
			return false, pi, ni
		default:
			if ni >= len(name) || name[ni] != pattern[pi] {
				return false, pi, ni
			}
			pi++
			ni++
		}
	}
	return ni == len(name), pi, ni
}

func matchClass(class string, c byte) bool {
	negate := false
	if len(class) > 0 && class[0] == '!' {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= c && c <= class[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	if negate {
		return !matched
	}
	return matched
}
