package matching

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	querySkillPoints     = 3
	queryRolePoints      = 2
	querySeniorityPoints = 2
)

// Query 搜索语句解析结果
type Query struct {
	Raw    string   `json:"raw"`
	Skills []string `json:"skills"`
	Roles  []string `json:"roles"`
	// Years 为 nil 表示未识别；YearsExplicit 区分数字年限和资历词推断
	Years         *int `json:"years"`
	YearsExplicit bool `json:"years_explicit"`
}

// Empty 没有任何可用于匹配的词
func (q Query) Empty() bool {
	return len(q.Skills) == 0 && len(q.Roles) == 0 && q.Years == nil
}

// TokenizeQuery 使用扩展双语词表把一句搜索语解析为技能、岗位与年限
func TokenizeQuery(raw string) Query {
	q := Query{Raw: raw, Skills: []string{}, Roles: []string{}}
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return q
	}

	q.Skills = append(q.Skills, matchVocabulary(normalizeTech(lower), techVocabulary, normalizeTech)...)
	q.Skills = appendUnique(q.Skills, matchVocabulary(lower, queryWorkModes, nil)...)
	q.Skills = appendUnique(q.Skills, matchVocabulary(lower, queryIndustries, nil)...)

	q.Roles = append(q.Roles, matchVocabulary(lower, roleVocabulary, nil)...)
	q.Roles = appendUnique(q.Roles, matchVocabulary(lower, queryRoleExtras, nil)...)

	if m := queryYearsPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			q.Years = &n
			q.YearsExplicit = true
		}
	}
	if q.Years == nil {
		if tier, ok := SeniorityTier(lower); ok {
			q.Years = &tier
		}
	}
	return q
}

// SeniorityTier 由资历词推断层级：intern/fresher 0, junior 1, middle/mid 2, senior 3
func SeniorityTier(text string) (int, bool) {
	lower := strings.ToLower(text)
	for _, t := range seniorityTiers {
		for _, w := range t.Words {
			if strings.Contains(lower, w) {
				return t.Years, true
			}
		}
	}
	return 0, false
}

// yearsToTier 年限映射到资历层级
func yearsToTier(years int) int {
	switch {
	case years <= 0:
		return 0
	case years == 1:
		return 1
	case years < 5:
		return 2
	default:
		return 3
	}
}

// ScoreQuery 候选文本命中技能 +3/个，命中岗位 +2/个，资历对齐 +2。不做跨领域惩罚。
func ScoreQuery(q Query, text string) (int, []Contribution) {
	lower := strings.ToLower(text)
	normalized := normalizeTech(text)
	score := 0
	var contributions []Contribution

	var skills []string
	for _, s := range q.Skills {
		if strings.Contains(normalized, s) || strings.Contains(lower, s) {
			skills = append(skills, s)
		}
	}
	if len(skills) > 0 {
		pts := querySkillPoints * len(skills)
		score += pts
		contributions = append(contributions, Contribution{Category: CategorySkill, Detail: strings.Join(skills, ", "), Points: pts})
	}

	var roles []string
	for _, r := range q.Roles {
		if strings.Contains(lower, r) {
			roles = append(roles, r)
		}
	}
	if len(roles) > 0 {
		pts := queryRolePoints * len(roles)
		score += pts
		contributions = append(contributions, Contribution{Category: CategoryRole, Detail: strings.Join(roles, ", "), Points: pts})
	}

	if q.Years != nil && seniorityAligned(q, text) {
		score += querySeniorityPoints
		contributions = append(contributions, Contribution{
			Category: CategorySeniority,
			Detail:   fmt.Sprintf("matches %d", *q.Years),
			Points:   querySeniorityPoints,
		})
	}
	return score, contributions
}

// seniorityAligned 数字年限：候选人年限 >= 要求；资历词：候选人资历词或年限层级一致
func seniorityAligned(q Query, text string) bool {
	want := *q.Years
	years := ExtractYears(text)
	if q.YearsExplicit {
		return years >= want && years > 0
	}
	if tier, ok := SeniorityTier(text); ok && tier == want {
		return true
	}
	return years > 0 && yearsToTier(years) == want
}

func appendUnique(dst []string, src ...string) []string {
	for _, s := range src {
		dup := false
		for _, d := range dst {
			if d == s {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
