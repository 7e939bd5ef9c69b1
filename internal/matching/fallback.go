package matching

import (
	"fmt"
	"math"
	"strings"
)

const (
	rolePointsEach   = 20
	rolePointsCap    = 40
	techPointsEach   = 6
	techPointsCap    = 30
	levelMetPoints   = 10
	levelBonusPoints = 5
	crossDomainCap   = 50
)

// FallbackScore AI 排序不可用时的确定性评分，cv/post 为各自抽取的信号
func FallbackScore(cv, post Signal) (int, []Contribution) {
	var (
		score         float64
		contributions []Contribution
	)

	if roles := intersect(cv.Roles, post.Roles); len(roles) > 0 {
		pts := min(rolePointsCap, rolePointsEach*len(roles))
		score += float64(pts)
		contributions = append(contributions, Contribution{Category: CategoryRole, Detail: strings.Join(roles, ", "), Points: pts})
	}

	if tech := intersect(cv.Tech, post.Tech); len(tech) > 0 {
		pts := min(techPointsCap, techPointsEach*len(tech))
		score += float64(pts)
		contributions = append(contributions, Contribution{Category: CategoryTech, Detail: strings.Join(tech, ", "), Points: pts})
	}

	if c, ok := levelContribution(CategoryYears, cv.Years, post.Years, "%d years"); ok {
		score += float64(c.Points)
		contributions = append(contributions, c)
	}
	if c, ok := levelContribution(CategoryDegree, cv.Degree, post.Degree, "level %d"); ok {
		score += float64(c.Points)
		contributions = append(contributions, c)
	}
	if c, ok := levelContribution(CategoryEnglish, cv.English, post.English, "level %d"); ok {
		score += float64(c.Points)
		contributions = append(contributions, c)
	}

	if CrossDomain(cv.Family, post.Family) {
		if score > crossDomainCap {
			score = crossDomainCap
		}
		contributions = append(contributions, crossDomainContribution(cv.Family, post.Family))
	}

	return clampScore(score), contributions
}

// levelContribution 达到要求 +10；岗位无要求而候选人有 +5
func levelContribution(cat Category, have, want int, format string) (Contribution, bool) {
	switch {
	case want > 0 && have >= want:
		return Contribution{Category: cat, Detail: levelDetail(have, want, format), Points: levelMetPoints}, true
	case want == 0 && have > 0:
		return Contribution{Category: cat, Detail: levelDetail(have, want, format), Points: levelBonusPoints}, true
	}
	return Contribution{}, false
}

func crossDomainContribution(cv, post Family) Contribution {
	return Contribution{
		Category: CategoryCrossDomain,
		Detail:   fmt.Sprintf("%s vs %s, capped at %d", cv, post, crossDomainCap),
	}
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}
