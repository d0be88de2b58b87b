package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

// generatorPromptTemplate 的两个占位依次为检索上下文与用户指令
const generatorPromptTemplate = `You are an expert resume writer and career coach.
You help tailor resumes to match job descriptions perfectly.

CONTEXT (Resume + Job Description):
%s

USER INSTRUCTION:
%s

TASK:
Based on the context above and the user's instruction, generate tailored resume content.
Focus on:
1. Matching keywords from job description
2. Quantifying achievements
3. Using action verbs
4. Highlighting relevant skills
5. Maintaining professional tone

Generate clear, impactful bullet points or sections that align with the job requirements.

TAILORED CONTENT:`

// Generator 基于用户的RAG上下文生成定制的简历内容。
// 所有失败都以软失败结果返回，从不panic也不返回error。
type Generator struct {
	model  model.ToolCallingChatModel
	store  *ContextStore
	logger *log.Logger
}

// NewGenerator 创建内容生成器
func NewGenerator(llmModel model.ToolCallingChatModel, store *ContextStore, logger *log.Logger) (*Generator, error) {
	if llmModel == nil {
		return nil, fmt.Errorf("模型不能为空")
	}
	if store == nil {
		return nil, fmt.Errorf("上下文存储不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Generator{
		model:  llmModel,
		store:  store,
		logger: logger,
	}, nil
}

// Generate 按用户指令生成定制内容。contextOverride非空时直接作为
// 上下文使用并完全跳过检索，此时结果不带来源片段。
func (g *Generator) Generate(ctx context.Context, userID, instruction, contextOverride string) *types.GenerationResult {
	ctx, span := tracer.Start(ctx, "Generator.Generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("rag.user_id", tracing.MaskPII(userID)),
		attribute.String("rag.instruction_preview", tracing.SafePrompt(instruction)),
		attribute.Bool("rag.context_override", strings.TrimSpace(contextOverride) != ""),
	)

	if strings.TrimSpace(instruction) == "" {
		return &types.GenerationResult{Success: false, Error: "指令为空"}
	}

	var (
		contextText string
		sources     []string
	)

	if strings.TrimSpace(contextOverride) != "" {
		contextText = contextOverride
	} else {
		hits, err := g.store.Retrieve(ctx, userID, instruction, constants.DefaultRetrievalK)
		if errors.Is(err, storage.ErrIndexNotFound) {
			return &types.GenerationResult{
				Success: false,
				Error:   "Vector store not found. Please analyze documents first.",
				Message: "Call /api/v1/rag/ingest first to ingest documents",
			}
		}
		if err != nil {
			return g.generateFailure(fmt.Sprintf("检索上下文失败: %v", err))
		}

		texts := make([]string, len(hits))
		sources = make([]string, len(hits))
		for i, hit := range hits {
			texts[i] = hit.Chunk.Text
			sources[i] = excerpt(hit.Chunk.Text, constants.SourceExcerptLength)
		}
		contextText = strings.Join(texts, "\n\n")
	}

	prompt := fmt.Sprintf(generatorPromptTemplate, contextText, instruction)
	response, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return g.generateFailure(fmt.Sprintf("模型调用失败: %v", err))
	}

	generationID := uuid.NewString()
	span.SetAttributes(attribute.Int("rag.context_sources", len(sources)))
	g.logger.Printf("[Generator] 用户 %s 生成完成 (generation_id=%s, 来源=%d)", userID, generationID, len(sources))
	return &types.GenerationResult{
		Success:         true,
		GenerationID:    generationID,
		TailoredContent: response.Content,
		SourceDocuments: sources,
		Instruction:     instruction,
	}
}

func (g *Generator) generateFailure(errMsg string) *types.GenerationResult {
	return &types.GenerationResult{
		Success: false,
		Error:   errMsg,
		Message: "Failed to generate tailored content",
	}
}

// excerpt 按字符截取文本前limit个字符，避免把多字节字符截断
func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
