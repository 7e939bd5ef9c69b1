package matching

import (
	"strconv"
	"strings"
)

// Signal 从一段文本中抽取的结构化信号
type Signal struct {
	Roles   []string `json:"roles"`
	Tech    []string `json:"tech"`
	Years   int      `json:"years"`
	Degree  int      `json:"degree_level"`
	English int      `json:"english_level"`
	Family  Family   `json:"family,omitempty"`
}

// IsZero 是否没有任何信号
func (s Signal) IsZero() bool {
	return len(s.Roles) == 0 && len(s.Tech) == 0 && s.Years == 0 &&
		s.Degree == 0 && s.English == 0 && s.Family == FamilyNone
}

// Extract 抽取全部信号，空文本得到零值信号
func Extract(text string) Signal {
	if strings.TrimSpace(text) == "" {
		return Signal{}
	}
	return Signal{
		Roles:   ExtractRoles(text),
		Tech:    ExtractTech(text),
		Years:   ExtractYears(text),
		Degree:  ExtractDegreeLevel(text),
		English: ExtractEnglishLevel(text),
		Family:  DetectFamily(text),
	}
}

// ExtractRoles 按词表顺序返回命中的岗位词
func ExtractRoles(text string) []string {
	return matchVocabulary(strings.ToLower(text), roleVocabulary, nil)
}

// ExtractTech 按词表顺序返回命中的技术词（c++/c# 归一后）
func ExtractTech(text string) []string {
	return matchVocabulary(normalizeTech(text), techVocabulary, normalizeTech)
}

// ExtractYears 返回文本中最大的年限数字，范围 [0,30]
func ExtractYears(text string) int {
	best := 0
	for _, m := range yearsPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxYears {
			continue
		}
		if n > best {
			best = n
		}
	}
	return best
}

// ExtractDegreeLevel PhD=3, Master=2, Bachelor/engineer=1
func ExtractDegreeLevel(text string) int {
	for _, tier := range degreeTiers {
		if tier.Pattern.MatchString(text) {
			return tier.Level
		}
	}
	return 0
}

// ExtractEnglishLevel 依次看 IELTS、TOEIC、定性描述
func ExtractEnglishLevel(text string) int {
	if m := ieltsPattern.FindStringSubmatch(text); m != nil {
		band, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			return ieltsLevel(band)
		}
	}
	if m := toeicPattern.FindStringSubmatch(text); m != nil {
		score, err := strconv.Atoi(m[1])
		if err == nil {
			return toeicLevel(score)
		}
	}
	lower := strings.ToLower(text)
	for _, ew := range englishWords {
		for _, w := range ew.Words {
			if strings.Contains(lower, w) {
				return ew.Level
			}
		}
	}
	return 0
}

func ieltsLevel(band float64) int {
	switch {
	case band >= 7.5:
		return 4
	case band >= 6.5:
		return 3
	case band >= 5:
		return 2
	default:
		return 1
	}
}

func toeicLevel(score int) int {
	switch {
	case score >= 850:
		return 4
	case score >= 700:
		return 3
	case score >= 450:
		return 2
	default:
		return 1
	}
}

// DetectFamily 首个命中的岗位大类，未识别返回 FamilyNone
func DetectFamily(text string) Family {
	lower := strings.ToLower(text)
	if lower == "" {
		return FamilyNone
	}
	for _, fk := range familyTable {
		for _, kw := range fk.Keywords {
			if strings.Contains(lower, kw) {
				return fk.Family
			}
		}
	}
	return FamilyNone
}

// CrossDomain 两个大类都已识别且不同
func CrossDomain(a, b Family) bool {
	return a != FamilyNone && b != FamilyNone && a != b
}

func normalizeTech(s string) string {
	s = strings.ToLower(s)
	for _, r := range techSymbolNormalizations {
		s = strings.ReplaceAll(s, r[0], r[1])
	}
	return s
}

// matchVocabulary haystack 需已小写；norm 非空时对词条做同样的归一
func matchVocabulary(haystack string, vocab []string, norm func(string) string) []string {
	if haystack == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{}, 8)
	for _, term := range vocab {
		needle := term
		if norm != nil {
			needle = norm(term)
		}
		if _, ok := seen[needle]; ok {
			continue
		}
		if strings.Contains(haystack, needle) {
			seen[needle] = struct{}{}
			out = append(out, needle)
		}
	}
	return out
}

// intersect 保持 a 的顺序
func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
