package matching

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxHighlights      = 12
	maxHighlightLength = 80
	minHighlightLength = 2
)

// buildHighlights 无 AI 高亮时从信号交集与帖子原文里挑选
func buildHighlights(cv, post Signal, postText string) []string {
	var out []string
	out = append(out, intersect(cv.Roles, post.Roles)...)
	out = append(out, intersect(cv.Tech, post.Tech)...)

	for _, tier := range degreeTiers {
		if m := tier.Pattern.FindString(postText); m != "" {
			out = append(out, m)
		}
	}

	if m := ieltsPattern.FindString(postText); m != "" {
		out = append(out, m)
	}
	if m := toeicPattern.FindString(postText); m != "" {
		out = append(out, m)
	}
	lower := strings.ToLower(postText)
	for _, ew := range englishWords {
		for _, w := range ew.Words {
			if strings.Contains(lower, w) {
				out = append(out, w)
			}
		}
	}

	if post.Years > 0 {
		if strings.Contains(lower, "năm") {
			out = append(out, fmt.Sprintf("%d năm", post.Years))
		} else {
			out = append(out, fmt.Sprintf("%d years", post.Years))
		}
	}
	return out
}

// cleanHighlights 去空白、截断到 80 字符、大小写不敏感去重、丢弃过短条目、上限 12；
// drop 中的词条（大小写不敏感）会被移除
func cleanHighlights(in []string, drop []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	dropSet := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		dropSet[strings.ToLower(d)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, min(len(in), maxHighlights))
	for _, h := range in {
		h = truncateRunes(strings.TrimSpace(h), maxHighlightLength)
		if utf8.RuneCountInString(h) < minHighlightLength {
			continue
		}
		key := strings.ToLower(h)
		if _, ok := dropSet[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
		if len(out) == maxHighlights {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
