package matching

import (
	"fmt"
	"strings"
)

// Category 评分贡献类别
type Category string

const (
	CategoryAI          Category = "ai"
	CategoryRole        Category = "role"
	CategoryTech        Category = "tech"
	CategoryYears       Category = "years"
	CategoryDegree      Category = "degree"
	CategoryEnglish     Category = "english"
	CategoryCrossDomain Category = "cross_domain"
	CategoryTitle       Category = "title"
	CategoryRecruiting  Category = "recruiting"
	CategoryExpired     Category = "expired"
	CategorySkill       Category = "skill"
	CategorySeniority   Category = "seniority"
)

// Contribution 一条结构化的评分说明，只在接口边界渲染成文本
type Contribution struct {
	Category Category `json:"category"`
	Detail   string   `json:"detail"`
	Points   int      `json:"points"`
}

var categoryLabels = map[Category]string{
	CategoryRole:        "Role match",
	CategoryTech:        "Tech match",
	CategoryYears:       "Experience",
	CategoryDegree:      "Degree",
	CategoryEnglish:     "English",
	CategoryCrossDomain: "Cross-domain",
	CategoryTitle:       "Title match",
	CategoryRecruiting:  "Recruiting post",
	CategoryExpired:     "Expired",
	CategorySkill:       "Skills",
	CategorySeniority:   "Seniority",
}

// String 单条渲染
func (c Contribution) String() string {
	if c.Category == CategoryAI {
		return c.Detail
	}
	label, ok := categoryLabels[c.Category]
	if !ok {
		label = string(c.Category)
	}
	if c.Detail == "" {
		return label
	}
	return label + ": " + c.Detail
}

// Render 按顺序把贡献拼成一行 reason
func Render(cs []Contribution) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		if s := strings.TrimSpace(c.String()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

// levelDetail format 形如 "%d years" 或 "level %d"
func levelDetail(have, want int, format string) string {
	if want == 0 {
		return fmt.Sprintf(format, have) + " (no requirement)"
	}
	return fmt.Sprintf(format, have) + " (required " + fmt.Sprintf(format, want) + ")"
}
