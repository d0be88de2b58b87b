package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleIngest(t *testing.T) {
	t.Run("简历与职位描述一起摄入", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/ingest", map[string]string{
			"user_id":     "user-1",
			"resume_text": sampleResumeText,
			"job_text":    sampleJobText,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var result types.IngestResult
		decodeBody(t, resp, &result)
		assert.True(t, result.Success)
		assert.Equal(t, 2, result.ChunksCreated)
		assert.True(t, result.HasJobDescription)
	})

	t.Run("用户锁被占用返回409", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())
		ctx := context.Background()

		lockValue, err := env.redis.AcquireUserLock(ctx, "user-1")
		require.NoError(t, err)
		require.NotEmpty(t, lockValue)

		resp := postJSON(t, env, "/api/v1/rag/ingest", map[string]string{
			"user_id":     "user-1",
			"resume_text": sampleResumeText,
		})
		require.Equal(t, http.StatusConflict, resp.Code)

		var result types.IngestResult
		decodeBody(t, resp, &result)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "正在进行中")

		// 释放后同一用户可以继续摄入
		released, err := env.redis.ReleaseUserLock(ctx, "user-1", lockValue)
		require.NoError(t, err)
		require.True(t, released)

		resp = postJSON(t, env, "/api/v1/rag/ingest", map[string]string{
			"user_id":     "user-1",
			"resume_text": sampleResumeText,
		})
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("空用户ID走软失败", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/ingest", map[string]string{
			"resume_text": sampleResumeText,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var result types.IngestResult
		decodeBody(t, resp, &result)
		assert.False(t, result.Success)
		assert.Equal(t, "用户ID为空", result.Error)
	})
}

func TestHandleGenerate(t *testing.T) {
	t.Run("摄入后按指令生成", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/ingest", map[string]string{
			"user_id":     "user-1",
			"resume_text": sampleResumeText,
			"job_text":    sampleJobText,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		resp = postJSON(t, env, "/api/v1/rag/generate", map[string]string{
			"user_id":     "user-1",
			"instruction": "Emphasize the Go microservices work",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var result types.GenerationResult
		decodeBody(t, resp, &result)
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.GenerationID)
		assert.Contains(t, result.TailoredContent, "PROFESSIONAL SUMMARY")
		assert.NotEmpty(t, result.SourceDocuments)
	})

	t.Run("向量库缺失返回固定提示", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/generate", map[string]string{
			"user_id":     "nobody",
			"instruction": "Tailor the summary",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var result types.GenerationResult
		decodeBody(t, resp, &result)
		assert.False(t, result.Success)
		assert.Equal(t, "Vector store not found. Please analyze documents first.", result.Error)
	})
}

func TestHandleFeedback(t *testing.T) {
	t.Run("评分越界返回400", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/feedback", map[string]interface{}{
			"user_id":           "user-1",
			"instruction":       "Tailor the summary",
			"generated_content": "old content",
			"feedback":          "Make it shorter",
			"rating":            6,
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("摄入后反馈入库并重新生成", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/ingest", map[string]string{
			"user_id":     "user-1",
			"resume_text": sampleResumeText,
			"job_text":    sampleJobText,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		resp = postJSON(t, env, "/api/v1/rag/feedback", map[string]interface{}{
			"user_id":           "user-1",
			"instruction":       "Tailor the summary",
			"generated_content": "old content",
			"feedback":          "Make it more concise",
			"rating":            4,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var outcome types.FeedbackOutcome
		decodeBody(t, resp, &outcome)
		require.NotNil(t, outcome.LearningStatus)
		assert.True(t, outcome.LearningStatus.Success)
		assert.GreaterOrEqual(t, outcome.LearningStatus.ChunksAdded, 1)
		require.NotNil(t, outcome.RefinedContent)
		assert.True(t, outcome.RefinedContent.Success)
		assert.True(t, outcome.ImprovementApplied)
	})

	t.Run("用户锁被占用返回409", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())
		ctx := context.Background()

		lockValue, err := env.redis.AcquireUserLock(ctx, "user-1")
		require.NoError(t, err)
		require.NotEmpty(t, lockValue)

		resp := postJSON(t, env, "/api/v1/rag/feedback", map[string]interface{}{
			"user_id":           "user-1",
			"instruction":       "Tailor the summary",
			"generated_content": "old content",
			"feedback":          "Make it shorter",
			"rating":            3,
		})
		require.Equal(t, http.StatusConflict, resp.Code)

		var outcome types.FeedbackOutcome
		decodeBody(t, resp, &outcome)
		require.NotNil(t, outcome.LearningStatus)
		assert.False(t, outcome.LearningStatus.Success)
	})
}

func TestHandleSuggestions(t *testing.T) {
	t.Run("返回解析后的建议列表", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/suggestions", map[string]string{
			"resume_text": sampleResumeText,
			"job_text":    sampleJobText,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var result struct {
			Suggestions       []string `json:"suggestions"`
			HasJobDescription bool     `json:"has_job_description"`
			Error             string   `json:"error"`
		}
		decodeBody(t, resp, &result)
		assert.Len(t, result.Suggestions, 5)
		assert.Contains(t, result.Suggestions[0], "Quantify")
		assert.True(t, result.HasJobDescription)
		assert.Empty(t, result.Error)
	})

	t.Run("缺少简历文本返回400", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/suggestions", map[string]string{
			"job_text": sampleJobText,
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("模型失败折叠为空建议", func(t *testing.T) {
		env := newHandlerTestEnv(t, &staticChatModel{err: errors.New("配额用尽")})

		resp := postJSON(t, env, "/api/v1/rag/suggestions", map[string]string{
			"resume_text": sampleResumeText,
			"job_text":    sampleJobText,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var result struct {
			Suggestions       []string `json:"suggestions"`
			HasJobDescription bool     `json:"has_job_description"`
			Error             string   `json:"error"`
		}
		decodeBody(t, resp, &result)
		assert.Empty(t, result.Suggestions)
		assert.True(t, result.HasJobDescription)
		assert.NotEmpty(t, result.Error)
	})
}

func TestHandleChat(t *testing.T) {
	t.Run("会话ID缺省为用户ID", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/chat", map[string]string{
			"user_id": "user-1",
			"message": "What should I emphasize for this role?",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var result types.ChatResult
		decodeBody(t, resp, &result)
		assert.True(t, result.Success)
		assert.Contains(t, result.Reply, "strongest angle")
		assert.Equal(t, "user-1", result.SessionID)
	})

	t.Run("空消息返回400", func(t *testing.T) {
		env := newHandlerTestEnv(t, processor.NewStubChatModel())

		resp := postJSON(t, env, "/api/v1/rag/chat", map[string]string{
			"user_id": "user-1",
			"message": "   ",
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("模型失败返回500软结果", func(t *testing.T) {
		env := newHandlerTestEnv(t, &staticChatModel{err: errors.New("连接中断")})

		resp := postJSON(t, env, "/api/v1/rag/chat", map[string]string{
			"user_id":    "user-1",
			"session_id": "sess-9",
			"message":    "Hello",
		})
		require.Equal(t, http.StatusInternalServerError, resp.Code)

		var result types.ChatResult
		decodeBody(t, resp, &result)
		assert.False(t, result.Success)
		assert.Equal(t, "sess-9", result.SessionID)
		assert.NotEmpty(t, result.Error)
	})
}
