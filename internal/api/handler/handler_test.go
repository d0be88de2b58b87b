package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/router"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/require"
)

// staticChatModel 返回固定文本或固定错误的聊天模型
type staticChatModel struct {
	response string
	err      error
}

func (m *staticChatModel) Generate(ctx context.Context, input []*einoschema.Message, opts ...model.Option) (*einoschema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return einoschema.AssistantMessage(m.response, nil), nil
}

func (m *staticChatModel) Stream(ctx context.Context, input []*einoschema.Message, opts ...model.Option) (*einoschema.StreamReader[*einoschema.Message], error) {
	return nil, errors.New("不支持流式输出")
}

func (m *staticChatModel) WithTools(tools []*einoschema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

var _ model.ToolCallingChatModel = (*staticChatModel)(nil)

// handlerTestEnv 完整的离线测试环境：内存Redis、本地向量库与临时产物目录
type handlerTestEnv struct {
	hertz  *server.Hertz
	redis  *storage.Redis
	outDir string
}

// newHandlerTestEnv 以给定聊天模型组装全部处理器并注册路由。
// MinIO留空，健康检查据此上报降级。
func newHandlerTestEnv(t *testing.T, chatModel model.ToolCallingChatModel) *handlerTestEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb, err := storage.NewRedis(&config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	quiet := log.New(io.Discard, "", 0)
	outDir := t.TempDir()

	artifacts, err := processor.NewLocalArtifactStore(outDir, quiet)
	require.NoError(t, err)
	pipeline := processor.NewTailorPipeline(&processor.Components{
		JobExtractor:    parser.NewJobExtractor(chatModel, quiet),
		ResumeExtractor: parser.NewResumeExtractor(chatModel, quiet),
		Strategy:        parser.NewStrategySynthesizer(chatModel, quiet),
		Renderer:        parser.NewDocumentRenderer(chatModel, quiet),
		Artifacts:       artifacts,
	}, &processor.Settings{Logger: quiet})

	newIndex, err := storage.NewIndexFactory(&config.VectorConfig{Backend: "local"})
	require.NoError(t, err)
	store, err := processor.NewContextStore(parser.NewTextChunker(quiet), processor.NewStubEmbedder(8), newIndex, t.TempDir(), quiet)
	require.NoError(t, err)
	generator, err := processor.NewGenerator(chatModel, store, quiet)
	require.NoError(t, err)
	learner, err := processor.NewFeedbackLearner(store, generator, quiet)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Artifacts.Backend = "local"
	cfg.Artifacts.OutputDir = outDir
	cfg.Artifacts.DocumentExtension = ".tex"
	cfg.Metrics.Enabled = true

	// 零值RabbitMQ通过就绪检查；用例只走到发布之前（去重短路或校验失败）
	st := &storage.Storage{Redis: rdb, RabbitMQ: &storage.RabbitMQ{}}
	tailorHandler := handler.NewTailorHandler(cfg, st, pipeline, processor.DefaultTemplate())
	ragHandler := handler.NewRAGHandler(cfg, st, store, generator, learner,
		parser.NewSuggestionGenerator(chatModel, quiet), agent.NewChatAgent(chatModel, nil, store, 0))

	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, cfg, st, tailorHandler, ragHandler)

	return &handlerTestEnv{hertz: h, redis: rdb, outDir: outDir}
}

// postJSON 向测试引擎发送JSON请求
func postJSON(t *testing.T, env *handlerTestEnv, path string, payload interface{}) *ut.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return ut.PerformRequest(env.hertz.Engine, "POST", path,
		&ut.Body{Body: bytes.NewReader(data), Len: len(data)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

// getPath 向测试引擎发送GET请求
func getPath(t *testing.T, env *handlerTestEnv, path string) *ut.ResponseRecorder {
	t.Helper()

	return ut.PerformRequest(env.hertz.Engine, "GET", path, nil)
}

// decodeBody 解析响应体
func decodeBody(t *testing.T, resp *ut.ResponseRecorder, out interface{}) {
	t.Helper()

	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), out))
}
