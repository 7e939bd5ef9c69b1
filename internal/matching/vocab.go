package matching

import "regexp"

// VocabVersion 词表版本，词表变更时递增，缓存键会带上它
const VocabVersion = "2024.3"

// 以下词表均为只读的全局表，匹配方式为大小写不敏感的字面子串匹配，
// 例如 "nodejs"、"node.js" 是两个不同的条目，不做词干或模糊归一。

// roleVocabulary 岗位/方向词表
var roleVocabulary = []string{
	"backend", "back-end", "frontend", "front-end", "fullstack", "full-stack", "full stack",
	"mobile", "android", "ios", "devops", "sre", "cloud",
	"data engineer", "data analyst", "data scientist", "machine learning", "ai engineer",
	"embedded", "firmware", "qa", "qc", "tester", "automation test",
	"security", "pentest", "game", "blockchain", "web",
	"ui/ux", "designer", "product manager", "project manager", "business analyst",
	"system admin", "network", "database administrator",
}

// techVocabulary 技术栈词表，c++/c# 在匹配前会被归一为 cpp/csharp
var techVocabulary = []string{
	"golang", "java", "javascript", "typescript", "python", "php", "ruby", "rust",
	"kotlin", "swift", "dart", "flutter", "c++", "c#", "scala", "objective-c",
	"react", "react native", "angular", "vue", "nextjs", "next.js", "nuxt",
	"nodejs", "node.js", "express", "nestjs", "spring", "django", "flask", "fastapi",
	"laravel", ".net", "dotnet", "html", "css", "tailwind", "jquery",
	"sql", "mysql", "postgresql", "mongodb", "redis", "elasticsearch", "oracle",
	"kafka", "rabbitmq", "graphql", "grpc",
	"docker", "kubernetes", "k8s", "aws", "gcp", "azure", "terraform", "ansible",
	"jenkins", "ci/cd", "linux", "git",
	"tensorflow", "pytorch", "pandas", "spark", "hadoop", "power bi", "tableau",
	"unity", "unreal", "solidity", "ethereum",
	"rtos", "stm32", "arduino", "verilog", "fpga",
	"selenium", "cypress", "jmeter", "postman",
	"figma",
}

// techSymbolNormalizations 归一带符号的技术名
var techSymbolNormalizations = [][2]string{
	{"c++", "cpp"},
	{"c#", "csharp"},
}

// yearsPattern "<数字>(+) năm/years"，同时覆盖 "of experience" 后缀
var yearsPattern = regexp.MustCompile(`(?i)(\d+)\s*\+?\s*(?:năm|years?)(?:\s+of\s+experience)?`)

// maxYears 超过该值的数字视为噪声（如成立年限）
const maxYears = 30

// degreeTier 学历层级
type degreeTier struct {
	Level   int
	Label   string
	Pattern *regexp.Regexp
}

// degreeTiers 高层级在前
var degreeTiers = []degreeTier{
	{Level: 3, Label: "phd", Pattern: regexp.MustCompile(`(?i)ph\.?\s?d|doctorate|tiến sĩ`)},
	{Level: 2, Label: "master", Pattern: regexp.MustCompile(`(?i)master|thạc sĩ|\bmsc\b|\bmba\b`)},
	{Level: 1, Label: "bachelor", Pattern: regexp.MustCompile(`(?i)bachelor|engineer|kỹ sư|cử nhân`)},
}

var (
	ieltsPattern = regexp.MustCompile(`(?i)ielts\s*[:\-]?\s*(\d(?:[.,]\d)?)`)
	toeicPattern = regexp.MustCompile(`(?i)toeic\s*[:\-]?\s*(\d{3,4})`)
)

// englishWord 定性英语水平描述
type englishWord struct {
	Level int
	Words []string
}

// englishWords 高层级在前
var englishWords = []englishWord{
	{Level: 4, Words: []string{"fluent", "native", "professional"}},
	{Level: 3, Words: []string{"advanced"}},
	{Level: 2, Words: []string{"intermediate"}},
	{Level: 1, Words: []string{"basic"}},
}

// Family 岗位大类
type Family string

const (
	FamilyNone       Family = ""
	FamilyWeb        Family = "web"
	FamilyEmbedded   Family = "embedded"
	FamilyMobile     Family = "mobile"
	FamilyDataAI     Family = "data-ai"
	FamilyDevOps     Family = "devops"
	FamilySecurity   Family = "security"
	FamilyQA         Family = "qa"
	FamilyGame       Family = "game"
	FamilyBlockchain Family = "blockchain"
)

type familyKeywords struct {
	Family   Family
	Keywords []string
}

// familyTable 按顺序首个命中即返回
var familyTable = []familyKeywords{
	{FamilyWeb, []string{"frontend", "front-end", "backend", "back-end", "fullstack", "full-stack", "web developer", "web"}},
	{FamilyEmbedded, []string{"embedded", "firmware", "rtos", "stm32", "microcontroller", "nhúng"}},
	{FamilyMobile, []string{"mobile", "android", "ios", "flutter", "react native"}},
	{FamilyDataAI, []string{"data scientist", "data engineer", "data analyst", "machine learning", "deep learning", "ai engineer", "computer vision", "nlp"}},
	{FamilyDevOps, []string{"devops", "sre", "site reliability", "kubernetes", "terraform"}},
	{FamilySecurity, []string{"security", "pentest", "penetration", "soc analyst", "bảo mật"}},
	{FamilyQA, []string{"qa", "qc", "tester", "automation test", "kiểm thử"}},
	{FamilyGame, []string{"game", "unity", "unreal"}},
	{FamilyBlockchain, []string{"blockchain", "solidity", "web3", "smart contract"}},
}

// 搜索语句扩展词表：工作模式、行业、越南语岗位词

var queryWorkModes = []string{
	"remote", "hybrid", "onsite", "on-site", "part-time", "full-time", "freelance",
	"làm từ xa", "bán thời gian", "toàn thời gian",
}

var queryIndustries = []string{
	"fintech", "e-commerce", "ecommerce", "banking", "ngân hàng", "healthcare", "y tế",
	"edtech", "giáo dục", "logistics", "outsourcing", "startup", "saas", "insurance", "bảo hiểm",
}

var queryRoleExtras = []string{
	"lập trình viên", "developer", "engineer", "kỹ sư", "thực tập", "intern", "leader", "tech lead",
}

var queryYearsPattern = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:năm|nam|yrs?|years?|y)`)

// seniorityTier 资历层级词，高层级在前，首个命中即生效
type seniorityTier struct {
	Years int
	Words []string
}

var seniorityTiers = []seniorityTier{
	{Years: 3, Words: []string{"senior"}},
	{Years: 2, Words: []string{"middle", "mid"}},
	{Years: 1, Words: []string{"junior"}},
	{Years: 0, Words: []string{"intern", "fresher"}},
}
