package post

import (
	"regexp"
	"strings"
)

// Tags end at any Unicode space, not only ASCII whitespace.
var hashtagPattern = regexp.MustCompile(`#[^\s\x{0B}\x{85}\p{Z}\x{FEFF}#]+`)

// ExtractHashtags returns the distinct lowercase tag names in content, in first-seen order.
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1:])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tags = append(tags, name)
	}
	return tags
}
