package ranking

const defaultSystemPrompt = `You are a senior IT recruiter on a Vietnamese job board. You compare one candidate profile with a list of job posts and score how well each post fits the candidate. You answer with JSON only.`

// defaultPromptTemplate 第一个 %s 为候选人画像，第二个为帖子列表
const defaultPromptTemplate = `Score every post below for the candidate.

Output rules:
1. Output exactly one JSON object: {"summary": string, "scores": [{"post_id": number, "score": number, "reason": string, "highlights": [string]}]}.
2. "score" is an integer 0-100. Role and technology fit weigh most, then years of experience, degree and English level.
3. A post from a clearly different domain (e.g. embedded vs web) must not score above 50.
4. "reason" is one short sentence. "highlights" holds at most 6 short terms copied from the post that match the candidate.
5. "summary" is at most 2 sentences describing the candidate. Keep the language of the CV (Vietnamese or English).
6. Include every post_id exactly once. No markdown, no text outside the JSON.

Example output:
{"summary": "Backend developer with 4 years of Go.", "scores": [{"post_id": 12, "score": 82, "reason": "Go backend role matching 4 years experience", "highlights": ["golang", "microservices"]}]}

[CANDIDATE]
"""
%s
"""

[POSTS]
%s`
