package handler

import (
	"context"
	"fmt"
	"strings"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/metrics"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RAGHandler 检索增强处理器，覆盖文档摄入、指令生成、反馈学习、改进建议与会话问答
type RAGHandler struct {
	cfg       *config.Config
	storage   *storage.Storage
	store     *processor.ContextStore
	generator *processor.Generator
	learner   *processor.FeedbackLearner
	suggester *parser.SuggestionGenerator
	chatAgent *agent.ChatAgent
}

// NewRAGHandler 创建RAG处理器
func NewRAGHandler(
	cfg *config.Config,
	storage *storage.Storage,
	store *processor.ContextStore,
	generator *processor.Generator,
	learner *processor.FeedbackLearner,
	suggester *parser.SuggestionGenerator,
	chatAgent *agent.ChatAgent,
) *RAGHandler {
	return &RAGHandler{
		cfg:       cfg,
		storage:   storage,
		store:     store,
		generator: generator,
		learner:   learner,
		suggester: suggester,
		chatAgent: chatAgent,
	}
}

type ragIngestRequest struct {
	UserID     string `json:"user_id"`
	ResumeText string `json:"resume_text"`
	JobText    string `json:"job_text,omitempty"`
}

type ragGenerateRequest struct {
	UserID      string `json:"user_id"`
	Instruction string `json:"instruction"`
	Context     string `json:"context,omitempty"`
}

type ragFeedbackRequest struct {
	UserID           string `json:"user_id"`
	Instruction      string `json:"instruction"`
	GeneratedContent string `json:"generated_content"`
	Feedback         string `json:"feedback"`
	Rating           int    `json:"rating"`
}

type ragSuggestionsRequest struct {
	ResumeText string `json:"resume_text"`
	JobText    string `json:"job_text,omitempty"`
}

// ragSuggestionsResponse 在SuggestionResult之外附加软失败错误信息
type ragSuggestionsResponse struct {
	Suggestions       []string `json:"suggestions"`
	HasJobDescription bool     `json:"has_job_description"`
	Error             string   `json:"error,omitempty"`
}

type ragChatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ragStatus RAG操作计数器的状态标签
func ragStatus(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// lockUser 获取用户级写锁，串行化同一用户的摄入与反馈。
// Redis不可用时放行，退化为核心层的无同步语义；锁被占用返回false。
func (h *RAGHandler) lockUser(ctx context.Context, userID string) (func(), bool) {
	if strings.TrimSpace(userID) == "" {
		return func() {}, true // 空用户ID交给下游软失败
	}
	if h.storage == nil || h.storage.Redis == nil {
		return func() {}, true
	}
	lockValue, err := h.storage.Redis.AcquireUserLock(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("获取用户锁失败，继续执行")
		return func() {}, true
	}
	if lockValue == "" {
		return nil, false
	}
	return func() {
		if _, err := h.storage.Redis.ReleaseUserLock(ctx, userID, lockValue); err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("释放用户锁失败")
		}
	}, true
}

// HandleIngest 摄入简历与职位描述，重建该用户的向量索引。
// POST /api/v1/rag/ingest
func (h *RAGHandler) HandleIngest(ctx context.Context, c *app.RequestContext) {
	var req ragIngestRequest
	if err := decodeJSONBody(c, &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	release, ok := h.lockUser(ctx, req.UserID)
	if !ok {
		c.JSON(consts.StatusConflict, &types.IngestResult{
			Success: false,
			Error:   fmt.Sprintf("用户 %s 的另一个操作正在进行中", req.UserID),
			Message: "Another operation is in progress for this user",
		})
		return
	}
	defer release()

	result := h.store.Ingest(ctx, req.UserID, req.ResumeText, req.JobText)
	metrics.RAGOperationsTotal.WithLabelValues("ingest", ragStatus(result.Success)).Inc()
	if result.Success {
		metrics.ChunksCreatedTotal.Add(float64(result.ChunksCreated))
	}
	c.JSON(consts.StatusOK, result)
}

// HandleGenerate 基于检索上下文按指令生成定制内容。
// POST /api/v1/rag/generate
func (h *RAGHandler) HandleGenerate(ctx context.Context, c *app.RequestContext) {
	var req ragGenerateRequest
	if err := decodeJSONBody(c, &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result := h.generator.Generate(ctx, req.UserID, req.Instruction, req.Context)
	metrics.RAGOperationsTotal.WithLabelValues("generate", ragStatus(result.Success)).Inc()
	c.JSON(consts.StatusOK, result)
}

// HandleFeedback 写入用户反馈并用细化指令重新生成。
// POST /api/v1/rag/feedback
func (h *RAGHandler) HandleFeedback(ctx context.Context, c *app.RequestContext) {
	var req ragFeedbackRequest
	if err := decodeJSONBody(c, &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "rating 必须在 1 到 5 之间"})
		return
	}

	release, ok := h.lockUser(ctx, req.UserID)
	if !ok {
		c.JSON(consts.StatusConflict, &types.FeedbackOutcome{
			LearningStatus: &types.LearnResult{
				Success: false,
				Error:   fmt.Sprintf("用户 %s 的另一个操作正在进行中", req.UserID),
			},
		})
		return
	}
	defer release()

	outcome := h.learner.Learn(ctx, req.UserID, req.Instruction, req.GeneratedContent, req.Feedback, req.Rating)
	metrics.RAGOperationsTotal.WithLabelValues("feedback", ragStatus(outcome.LearningStatus != nil && outcome.LearningStatus.Success)).Inc()
	c.JSON(consts.StatusOK, outcome)
}

// HandleSuggestions 生成改进建议。模型失败折叠为带错误信息的空建议列表。
// POST /api/v1/rag/suggestions
func (h *RAGHandler) HandleSuggestions(ctx context.Context, c *app.RequestContext) {
	var req ragSuggestionsRequest
	if err := decodeJSONBody(c, &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.ResumeText) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "resume_text 不能为空"})
		return
	}

	result, err := h.suggester.Suggest(ctx, req.ResumeText, req.JobText)
	metrics.RAGOperationsTotal.WithLabelValues("suggestions", ragStatus(err == nil)).Inc()
	if err != nil {
		logger.Error().Err(err).Msg("生成改进建议失败")
		c.JSON(consts.StatusOK, &ragSuggestionsResponse{
			Suggestions:       []string{},
			HasJobDescription: len(strings.TrimSpace(req.JobText)) > constants.MinMeaningfulTextLength,
			Error:             err.Error(),
		})
		return
	}
	c.JSON(consts.StatusOK, &ragSuggestionsResponse{
		Suggestions:       result.Suggestions,
		HasJobDescription: result.HasJobDescription,
	})
}

// HandleChat 面向用户文档的会话问答。
// POST /api/v1/rag/chat
func (h *RAGHandler) HandleChat(ctx context.Context, c *app.RequestContext) {
	var req ragChatRequest
	if err := decodeJSONBody(c, &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "user_id 不能为空"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "message 不能为空"})
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = req.UserID
	}

	reply, err := h.chatAgent.Chat(ctx, req.UserID, sessionID, req.Message)
	metrics.RAGOperationsTotal.WithLabelValues("chat", ragStatus(err == nil)).Inc()
	if err != nil {
		logger.Error().Err(err).Str("user_id", req.UserID).Msg("会话问答失败")
		c.JSON(consts.StatusInternalServerError, &types.ChatResult{
			Success:   false,
			SessionID: sessionID,
			Error:     err.Error(),
		})
		return
	}
	c.JSON(consts.StatusOK, &types.ChatResult{
		Success:   true,
		Reply:     reply,
		SessionID: sessionID,
	})
}
