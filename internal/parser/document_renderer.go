package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/types"
)

// StageRender 文档渲染阶段的逻辑名称
const StageRender = "render"

// DocumentRenderer 按策略生成LaTeX简历内容并合并进静态模板。
// 模型只产出内容区块，模板的其余字节原样保留。
type DocumentRenderer struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// DocumentRendererOption 渲染器的配置选项
type DocumentRendererOption func(*DocumentRenderer)

// WithRenderPromptTemplate 覆盖默认提示词模板，模板需依次保留
// 简历事实、岗位要求、策略三段JSON的 %s 占位
func WithRenderPromptTemplate(template string) DocumentRendererOption {
	return func(r *DocumentRenderer) {
		r.promptTemplate = template
	}
}

// NewDocumentRenderer 创建文档渲染器
func NewDocumentRenderer(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...DocumentRendererOption) *DocumentRenderer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	renderer := &DocumentRenderer{
		llmModel: llmModel,
		logger:   logger,
	}
	renderer.generatePromptTemplate()

	for _, opt := range options {
		opt(renderer)
	}
	return renderer
}

func (r *DocumentRenderer) generatePromptTemplate() {
	r.promptTemplate = `Generate tailored resume CONTENT in LaTeX format.

ORIGINAL RESUME DATA:
%s

JOB REQUIREMENTS:
%s

STRATEGIC PLAN (MUST FOLLOW):
%s

Generate ONLY the resume content sections in LaTeX format. Use these LaTeX commands:

HEADER FORMAT:
\begin{center}
    {\Huge \scshape [NAME]} \\ \vspace{1pt}
    \small \raisebox{-0.1\height}\faPhone\ [PHONE] ~
    \href{mailto:[EMAIL]}{\raisebox{-0.2\height}\faEnvelope\ [EMAIL]} ~
    \href{[LINKEDIN]}{\raisebox{-0.2\height}\faLinkedin\ LinkedIn} ~
    \href{[GITHUB]}{\raisebox{-0.2\height}\faGithub\ GitHub}
    \vspace{-8pt}
\end{center}

SUMMARY SECTION:
\section{Summary}
[Write strategic summary emphasizing what strategy recommends]

EDUCATION SECTION:
\section{Education}
  \resumeSubHeadingListStart
    \resumeSubheading
      {[Degree]}{[Location]}
      {[Program Details]}{[Dates]}
  \resumeSubHeadingListEnd
\vspace{-12pt}

EXPERIENCE SECTION:
\section{Professional Experience}
  \resumeSubHeadingListStart
    \resumeSubheading
      {[Job Title]}{[Dates]}
      {[Company]}{[Location]}
      \resumeItemListStart
        \resumeItem{[Bullet point emphasizing relevant skills]}
        \resumeItem{[Bullet point with keywords from strategy]}
      \resumeItemListEnd
  \resumeSubHeadingListEnd
\vspace{-16pt}

PROJECTS SECTION:
\section{Key Projects}
    \vspace{-5pt}
    \resumeSubHeadingListStart
      \resumeProjectHeading
          {\textbf{[Project Name]} $|$ \emph{[Technologies]}},{[Year]}
          \resumeItemListStart
            \resumeItem{[Achievement]}
          \resumeItemListEnd
          \vspace{-13pt}
    \resumeSubHeadingListEnd

SKILLS SECTION:
\section{Technical Skills}
 \begin{itemize}[leftmargin=0.15in, label={}]
    \small{\item{
     \textbf{[Category]:} [Skills list] \\
    }}
 \end{itemize}
\vspace{-16pt}

CRITICAL INSTRUCTIONS:
1. FOLLOW THE STRATEGY EXACTLY - emphasize what it says to emphasize
2. INCORPORATE all keywords from strategy naturally
3. If GitHub/Portfolio present in contact_info, include them in header
4. If extracurriculars exist and strategy recommends, add them as section
5. ORDER sections per strategy recommendations
6. Make summary compelling and targeted to the job
7. Quantify achievements where possible
8. Use strong action verbs
9. Ensure ATS-friendly (keywords, formatting)
10. Keep LaTeX syntax PERFECT - no syntax errors

Generate the COMPLETE resume content starting with the header and ending with the last section.
Do NOT include \documentclass or \begin{document} - only the content sections.`
}

// Render 生成裁剪后的简历内容并合并进模板。模板必须包含内容占位符，
// 缺失时不发起模型调用直接返回错误。返回值只填充Content与Body，
// 存储路径由上层持久化后回填。
func (r *DocumentRenderer) Render(ctx context.Context, facts *types.ResumeFacts, strategy *types.TailoringStrategy, job *types.JobRequirements, template string) (*types.RenderedDocument, error) {
	if r.llmModel == nil {
		return nil, fmt.Errorf("DocumentRenderer: 模型客户端未初始化")
	}
	if facts == nil || strategy == nil || job == nil {
		return nil, fmt.Errorf("DocumentRenderer: 分析产物不完整")
	}
	if !strings.Contains(template, constants.TemplatePlaceholder) {
		return nil, fmt.Errorf("DocumentRenderer: 模板缺少 %s 占位符", constants.TemplatePlaceholder)
	}

	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("DocumentRenderer: 序列化简历事实失败: %w", err)
	}
	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("DocumentRenderer: 序列化岗位要求失败: %w", err)
	}
	strategyJSON, err := json.MarshalIndent(strategy, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("DocumentRenderer: 序列化策略失败: %w", err)
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage("You are an expert resume writer."),
		einoschema.UserMessage(fmt.Sprintf(r.promptTemplate, string(factsJSON), string(jobJSON), string(strategyJSON))),
	}

	r.logger.Printf("[DocumentRenderer] 开始生成简历内容")

	response, err := r.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, &types.GenerationError{Stage: StageRender, Err: err}
	}
	if response == nil || response.Content == "" {
		return nil, &types.GenerationError{Stage: StageRender, Err: fmt.Errorf("模型返回空响应")}
	}

	body := StripCodeFences(response.Content, "latex")
	if body == "" {
		return nil, &types.GenerationError{Stage: StageRender, Err: fmt.Errorf("模型响应剥离代码围栏后为空")}
	}

	content := strings.Replace(template, constants.TemplatePlaceholder, body, 1)

	r.logger.Printf("[DocumentRenderer] 渲染完成，正文 %d 字符，合并后 %d 字符", len(body), len(content))
	return &types.RenderedDocument{
		Content: content,
		Body:    body,
	}, nil
}
