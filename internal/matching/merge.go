package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// PostType 帖子类型
const (
	PostTypeFindJob       = "find_job"
	PostTypeFindCandidate = "find_candidate"
)

const (
	titleNameTokenPoints = 8
	titleRoleTokenPoints = 10
	titleBoostCap        = 30
	recruitingBonus      = 5
	expiredPenalty       = 25
)

// Candidate 候选人画像：CV 名称 + CV 文本 + 个人简介
type Candidate struct {
	CVName string
	CVText string
	Bio    string
}

// Text 参与信号抽取的完整文本
func (c Candidate) Text() string {
	return joinNonEmpty(c.CVName, c.CVText, c.Bio)
}

// Post 参与评分的帖子
type Post struct {
	ID          uint64
	Title       string
	Description string
	PostType    string
	CompanyName string
	CreatedAt   time.Time
	Expired     bool
}

// Text 参与信号抽取的完整文本
func (p Post) Text() string {
	return joinNonEmpty(p.Title, p.Description)
}

// AIScore AI 排序返回的单条结果
type AIScore struct {
	PostID     uint64   `json:"post_id"`
	Score      float64  `json:"score"`
	Reason     string   `json:"reason,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Result 最终评分结果
type Result struct {
	PostID        uint64         `json:"post_id"`
	Score         int            `json:"score"`
	Contributions []Contribution `json:"contributions"`
	Highlights    []string       `json:"highlights"`
	FromAI        bool           `json:"from_ai"`
}

// Reason 渲染后的说明文本
func (r Result) Reason() string {
	return Render(r.Contributions)
}

// Merge 合并 AI 分数与兜底分数，做标题加权、类型加分、跨领域封顶、过期惩罚，
// 按分数降序稳定排序。ai 为 nil 时全部走兜底评分；AI 未覆盖的帖子同样走兜底。
func Merge(candidate Candidate, posts []Post, ai map[uint64]AIScore) []Result {
	cvSignal := Extract(candidate.Text())
	nameTokens := cvNameTokens(candidate.CVName)

	results := make([]Result, 0, len(posts))
	for _, post := range posts {
		results = append(results, scorePost(cvSignal, nameTokens, post, ai))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func scorePost(cvSignal Signal, nameTokens []string, post Post, ai map[uint64]AIScore) Result {
	postText := post.Text()
	postSignal := Extract(postText)
	cross := CrossDomain(cvSignal.Family, postSignal.Family)

	var (
		base          float64
		contributions []Contribution
		aiHighlights  []string
		fromAI        bool
	)
	if s, ok := ai[post.ID]; ok && !math.IsNaN(s.Score) {
		fromAI = true
		base = s.Score
		aiHighlights = s.Highlights
		if r := strings.TrimSpace(s.Reason); r != "" {
			contributions = append(contributions, Contribution{Category: CategoryAI, Detail: r})
		}
	} else {
		fb, cs := FallbackScore(cvSignal, postSignal)
		base = float64(fb)
		contributions = cs
	}
	score := float64(clampScore(base))

	roleMatches := intersect(cvSignal.Roles, postSignal.Roles)
	if boost, detail := titleBoost(post.Title, nameTokens, roleMatches); boost > 0 {
		score += float64(boost)
		contributions = append(contributions, Contribution{Category: CategoryTitle, Detail: detail, Points: boost})
	}

	if post.PostType == PostTypeFindCandidate {
		score += recruitingBonus
		contributions = append(contributions, Contribution{Category: CategoryRecruiting, Points: recruitingBonus})
	}

	if cross {
		if score > crossDomainCap {
			score = crossDomainCap
		}
		if !hasCategory(contributions, CategoryCrossDomain) {
			contributions = append(contributions, crossDomainContribution(cvSignal.Family, postSignal.Family))
		}
	}

	// 惩罚作用在封顶前的分数上，原始分 >= 125 时过期帖仍为 100
	if post.Expired {
		score = math.Max(0, score-expiredPenalty)
		contributions = append(contributions, Contribution{Category: CategoryExpired, Points: -expiredPenalty})
	}

	var highlights []string
	if len(cleanHighlights(aiHighlights, nil)) > 0 {
		highlights = aiHighlights
	} else {
		highlights = buildHighlights(cvSignal, postSignal, postText)
	}
	var drop []string
	if cross {
		drop = roleVocabulary
	}

	return Result{
		PostID:        post.ID,
		Score:         clampScore(score),
		Contributions: contributions,
		Highlights:    cleanHighlights(highlights, drop),
		FromAI:        fromAI,
	}
}

// titleBoost 标题中出现 CV 名称词 +8/个，出现匹配岗位词 +10/个，合计封顶 30
func titleBoost(title string, nameTokens, roleMatches []string) (int, string) {
	lowerTitle := strings.ToLower(title)
	if lowerTitle == "" {
		return 0, ""
	}
	boost := 0
	var hits []string
	for _, tok := range nameTokens {
		if strings.Contains(lowerTitle, tok) {
			boost += titleNameTokenPoints
			hits = append(hits, tok)
		}
	}
	for _, role := range roleMatches {
		if strings.Contains(lowerTitle, role) {
			boost += titleRoleTokenPoints
			hits = append(hits, role)
		}
	}
	boost = min(boost, titleBoostCap)
	if boost == 0 {
		return 0, ""
	}
	return boost, fmt.Sprintf("+%d (%s)", boost, strings.Join(hits, ", "))
}

var cvNameStopwords = map[string]struct{}{
	"cv": {}, "pdf": {}, "docx": {}, "doc": {}, "resume": {}, "final": {}, "the": {}, "and": {},
}

// cvNameTokens CV 名称切词，去掉过短和无意义的词
func cvNameTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := cvNameStopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func hasCategory(cs []Contribution, cat Category) bool {
	for _, c := range cs {
		if c.Category == cat {
			return true
		}
	}
	return false
}

func joinNonEmpty(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p)
	}
	return b.String()
}
