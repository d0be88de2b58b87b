package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// 各阶段的固定响应，满足对应的JSON Schema
const (
	stubJobRequirementsJSON = `{
    "required_skills": ["Go", "PostgreSQL", "Docker"],
    "nice_to_have_skills": ["Kubernetes"],
    "education_required": "Bachelor's degree in Computer Science",
    "experience_level": "3-5 years",
    "key_responsibilities": ["Design backend services", "Operate CI pipelines"],
    "important_keywords": ["Go", "microservices", "Docker"],
    "company_culture": "Fast-paced engineering team"
}`

	stubResumeFactsJSON = `{
    "name": "Alex Chen",
    "contact_info": {
        "email": "alex.chen@example.com",
        "phone": "555-0100",
        "location": "Shanghai",
        "linkedin": "https://linkedin.com/in/alexchen",
        "github": "https://github.com/alexchen",
        "portfolio": null
    },
    "summary": "Backend engineer with five years of Go experience.",
    "skills": ["Go", "Python", "PostgreSQL"],
    "technical_skills": ["Go", "PostgreSQL", "Docker"],
    "soft_skills": ["Communication"],
    "experience": [
        {
            "title": "Backend Engineer",
            "company": "Acme Cloud",
            "duration": "2021-2024",
            "responsibilities": ["Built order processing services in Go", "Cut API latency by 40%"]
        }
    ],
    "education": [
        {
            "degree": "B.Sc. Computer Science",
            "institution": "Tongji University",
            "year": "2020",
            "details": "GPA 3.7"
        }
    ],
    "projects": ["Open-source rate limiter library"],
    "achievements": ["Employee of the quarter 2023"],
    "certifications": [],
    "extracurricular_activities": []
}`

	stubStrategyJSON = `{
    "overall_match_score": 82,
    "match_summary": "Strong backend match with minor gaps in orchestration tooling.",
    "strong_matches": [
        {
            "skill_or_experience": "Go services",
            "evidence": "Order processing services at Acme Cloud",
            "strategy": "Lead the experience section with this work"
        }
    ],
    "partial_matches": [
        {
            "requirement": "Kubernetes",
            "candidate_has": "Docker experience",
            "strategy": "Frame container work as orchestration-adjacent"
        }
    ],
    "gaps": [
        {
            "missing": "Kubernetes production experience",
            "severity": "moderate",
            "mitigation": "Highlight Docker and deployment automation"
        }
    ],
    "skills_to_emphasize": [
        {
            "skill": "Go",
            "reason": "Primary language of the role",
            "how": "Name it in the summary and in experience bullets"
        }
    ],
    "experience_to_highlight": [
        {
            "experience": "Backend Engineer at Acme Cloud",
            "why": "Mirrors the advertised responsibilities",
            "key_achievements": ["Cut API latency by 40%"]
        }
    ],
    "keywords_to_add": ["microservices", "Docker"],
    "structural_recommendations": {
        "summary_focus": "Backend services in Go",
        "skills_section": "Group by backend, data, tooling",
        "experience_order": "Most recent first",
        "what_to_deemphasize": ["Unrelated coursework"]
    },
    "enhanced_elements": {
        "github_strategy": "Link the rate limiter library",
        "portfolio_strategy": null,
        "extracurriculars_strategy": null
    },
    "differentiation_strategy": "Quantified latency and throughput wins.",
    "specific_actions": ["Add microservices keyword to summary", "Quantify deployment frequency"]
}`

	stubLatexBody = `\begin{center}
    {\Huge \scshape Alex Chen} \\ \vspace{1pt}
    \small \raisebox{-0.1\height}\faPhone\ 555-0100 ~
    \href{mailto:alex.chen@example.com}{\raisebox{-0.2\height}\faEnvelope\ alex.chen@example.com}
    \vspace{-8pt}
\end{center}

\section{Summary}
Backend engineer with five years of Go experience building microservices with Docker.

\section{Professional Experience}
  \resumeSubHeadingListStart
    \resumeSubheading
      {Backend Engineer}{2021-2024}
      {Acme Cloud}{Shanghai}
      \resumeItemListStart
        \resumeItem{Built order processing microservices in Go, cutting API latency by 40\%}
        \resumeItem{Containerized services with Docker and wired them into CI pipelines}
      \resumeItemListEnd
  \resumeSubHeadingListEnd

\section{Technical Skills}
 \begin{itemize}[leftmargin=0.15in, label={}]
    \small{\item{
     \textbf{Backend:} Go, PostgreSQL, Docker \\
    }}
 \end{itemize}`

	stubSuggestionLines = `1. Quantify - Add concrete percentages to the latency improvements
2. Highlight - Move the Go microservices work to the top of experience
3. Include - Add the Docker and CI keywords from the job post
4. Reframe - Present container work as orchestration experience
5. Add - State team size and request volume for each role`

	stubTailoredContent = `PROFESSIONAL SUMMARY

Backend engineer with five years of Go experience delivering microservices on Docker.
Cut API latency by 40% at Acme Cloud while owning the order processing platform.`

	stubChatReply = `Based on your stored resume, your strongest angle for this role is the Go microservices work at Acme Cloud.`
)

// StubChatModel 离线桩模型。按提示词特征识别调用它的阶段，
// 返回该阶段的固定响应，供tailorctl --stub与测试在无API密钥时走通全流程。
type StubChatModel struct {
	mu     sync.Mutex
	stages []string
}

// NewStubChatModel 创建桩模型
func NewStubChatModel() *StubChatModel {
	return &StubChatModel{}
}

// Generate 按提示词返回固定响应
func (m *StubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var prompt strings.Builder
	for _, msg := range input {
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}
	text := prompt.String()

	stage, content := stubResponseFor(text)

	m.mu.Lock()
	m.stages = append(m.stages, stage)
	m.mu.Unlock()

	return schema.AssistantMessage(content, nil), nil
}

// Stream 桩模型不支持流式输出
func (m *StubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("StubChatModel不支持流式输出")
}

// WithTools 桩模型忽略工具绑定
func (m *StubChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Stages 返回到目前为止命中的阶段序列，供测试断言
func (m *StubChatModel) Stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.stages))
	copy(out, m.stages)
	return out
}

// StubEmbedder 离线确定性向量化，相同文本产生相同向量。
// 与StubChatModel配套，让检索链路在无API密钥时可运行。
type StubEmbedder struct {
	dims int
}

// NewStubEmbedder 创建dims维的离线Embedder，dims不合法时取8
func NewStubEmbedder(dims int) *StubEmbedder {
	if dims <= 0 {
		dims = 8
	}
	return &StubEmbedder{dims: dims}
}

// EmbedStrings 按字符折叠出固定维度的向量
func (e *StubEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vector := make([]float64, e.dims)
		for j, r := range text {
			vector[j%e.dims] += float64(r%31) / 31.0
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// GetDimensions 返回向量维度
func (e *StubEmbedder) GetDimensions() int { return e.dims }

var _ TextEmbedder = (*StubEmbedder)(nil)

// stubResponseFor 按提示词中各阶段模板的特征短语分发固定响应
func stubResponseFor(prompt string) (stage, content string) {
	switch {
	case strings.Contains(prompt, "Analyze this job description"):
		return "job_extraction", stubJobRequirementsJSON
	case strings.Contains(prompt, "Extract structured information from this resume"):
		return "resume_extraction", stubResumeFactsJSON
	case strings.Contains(prompt, "Create a tailoring strategy"):
		return "strategy", stubStrategyJSON
	case strings.Contains(prompt, "Generate tailored resume CONTENT in LaTeX format"):
		return "render", stubLatexBody
	case strings.Contains(prompt, "SUGGESTIONS:"):
		return "suggestions", stubSuggestionLines
	case strings.Contains(prompt, "TAILORED CONTENT:"):
		return "rag_generate", stubTailoredContent
	default:
		return "chat", stubChatReply
	}
}

var _ model.ToolCallingChatModel = (*StubChatModel)(nil)
