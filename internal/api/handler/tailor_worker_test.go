package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workerTestTemplate = "WORKER-SHELL-BEGIN\n{{CONTENT}}\nWORKER-SHELL-END\n"

// failingChatModel 任何调用都返回固定错误
type failingChatModel struct {
	err error
}

func (m *failingChatModel) Generate(ctx context.Context, input []*einoschema.Message, opts ...model.Option) (*einoschema.Message, error) {
	return nil, m.err
}

func (m *failingChatModel) Stream(ctx context.Context, input []*einoschema.Message, opts ...model.Option) (*einoschema.StreamReader[*einoschema.Message], error) {
	return nil, m.err
}

func (m *failingChatModel) WithTools(tools []*einoschema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

var _ model.ToolCallingChatModel = (*failingChatModel)(nil)

type workerTestEnv struct {
	handler *TailorHandler
	redis   *storage.Redis
	outDir  string
}

func newWorkerTestEnv(t *testing.T, chatModel model.ToolCallingChatModel) *workerTestEnv {
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

	cfg := &config.Config{}
	cfg.Artifacts.Backend = "local"
	cfg.Artifacts.OutputDir = outDir
	cfg.Artifacts.DocumentExtension = ".tex"

	st := &storage.Storage{Redis: rdb}
	return &workerTestEnv{
		handler: NewTailorHandler(cfg, st, pipeline, workerTestTemplate),
		redis:   rdb,
		outDir:  outDir,
	}
}

func workerTaskBytes(t *testing.T, task *storage.TailorTask) []byte {
	t.Helper()

	data, err := json.Marshal(task)
	require.NoError(t, err)
	return data
}

const (
	workerJobText    = "Backend engineer role needing Go, Docker and CI pipelines for a latency sensitive platform."
	workerResumeText = "Alex Chen. Five years building Go services at Acme Cloud, cut API latency by 40%."
)

func TestConsumeTailorTask(t *testing.T) {
	jobText := workerJobText
	resumeText := workerResumeText

	t.Run("完整任务落盘并写入终态", func(t *testing.T) {
		env := newWorkerTestEnv(t, processor.NewStubChatModel())
		ctx := context.Background()

		ack := env.handler.consumeTailorTask(ctx, workerTaskBytes(t, &storage.TailorTask{
			TaskUUID:   "task-1",
			UserID:     "user-7",
			JobText:    jobText,
			ResumeText: resumeText,
		}))
		require.True(t, ack)

		status, err := env.redis.GetTailorTaskStatus(ctx, "task-1")
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusCompleted, status.Status)
		assert.Equal(t, filepath.Join(env.outDir, "user-7", "task-1.tex"), status.DocumentKey)
		assert.Equal(t, filepath.Join(env.outDir, "user-7", "task-1_analysis.json"), status.SnapshotKey)
		assert.False(t, status.UpdatedAt.IsZero())

		// 消息未携带模板，应回退到处理器持有的默认模板
		content, err := os.ReadFile(status.DocumentKey)
		require.NoError(t, err)
		assert.Contains(t, string(content), "WORKER-SHELL-BEGIN")
		assert.Contains(t, string(content), "Alex Chen")
		assert.NotContains(t, string(content), "{{CONTENT}}")

		snapshot, err := os.ReadFile(status.SnapshotKey)
		require.NoError(t, err)
		var bundle types.AnalysisBundle
		require.NoError(t, json.Unmarshal(snapshot, &bundle))
		require.NotNil(t, bundle.Strategy)
		assert.Equal(t, 82, bundle.Strategy.OverallMatchScore)
	})

	t.Run("损坏的消息确认后丢弃", func(t *testing.T) {
		env := newWorkerTestEnv(t, processor.NewStubChatModel())
		ctx := context.Background()

		assert.True(t, env.handler.consumeTailorTask(ctx, []byte("{broken")))
		assert.True(t, env.handler.consumeTailorTask(ctx, []byte(`{"user_id": "user-7"}`)))
	})

	t.Run("模型确定性失败记为FAILED", func(t *testing.T) {
		env := newWorkerTestEnv(t, &failingChatModel{err: errors.New("上游拒绝请求")})
		ctx := context.Background()

		ack := env.handler.consumeTailorTask(ctx, workerTaskBytes(t, &storage.TailorTask{
			TaskUUID:   "task-2",
			UserID:     "user-7",
			JobText:    jobText,
			ResumeText: resumeText,
		}))
		require.True(t, ack)

		status, err := env.redis.GetTailorTaskStatus(ctx, "task-2")
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusFailed, status.Status)
		assert.Equal(t, parser.StageJobExtraction, status.Stage)
		assert.Contains(t, status.Error, "上游拒绝请求")
	})

	t.Run("产物写入失败消息重新入队", func(t *testing.T) {
		env := newWorkerTestEnv(t, processor.NewStubChatModel())
		ctx := context.Background()

		// 预先占住同名目录，文档写入必然失败
		require.NoError(t, os.MkdirAll(filepath.Join(env.outDir, "user-9", "task-9.tex"), 0o755))

		ack := env.handler.consumeTailorTask(ctx, workerTaskBytes(t, &storage.TailorTask{
			TaskUUID:   "task-9",
			UserID:     "user-9",
			JobText:    jobText,
			ResumeText: resumeText,
			OutputName: "user-9/task-9.tex",
		}))
		require.False(t, ack)

		// 基础设施错误不落终态，状态停留在RUNNING等待重试
		status, err := env.redis.GetTailorTaskStatus(ctx, "task-9")
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusRunning, status.Status)
	})

	t.Run("任务自带模板优先于默认模板", func(t *testing.T) {
		env := newWorkerTestEnv(t, processor.NewStubChatModel())
		ctx := context.Background()

		ack := env.handler.consumeTailorTask(ctx, workerTaskBytes(t, &storage.TailorTask{
			TaskUUID:   "task-3",
			UserID:     "user-7",
			JobText:    jobText,
			ResumeText: resumeText,
			Template:   "CUSTOM-SHELL\n{{CONTENT}}\n",
			OutputName: "custom/task-3.tex",
		}))
		require.True(t, ack)

		status, err := env.redis.GetTailorTaskStatus(ctx, "task-3")
		require.NoError(t, err)
		content, err := os.ReadFile(status.DocumentKey)
		require.NoError(t, err)
		assert.Contains(t, string(content), "CUSTOM-SHELL")
		assert.NotContains(t, string(content), "WORKER-SHELL-BEGIN")
	})
}

func TestSubmitTailorTaskGuards(t *testing.T) {
	t.Run("消息队列未就绪拒绝提交", func(t *testing.T) {
		env := newWorkerTestEnv(t, processor.NewStubChatModel())

		_, err := env.handler.SubmitTailorTask(context.Background(), &tailorRunRequest{
			UserID:     "user-1",
			JobText:    workerJobText,
			ResumeText: workerResumeText,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "未就绪")
	})

	t.Run("消费者未配置消息队列拒绝启动", func(t *testing.T) {
		env := newWorkerTestEnv(t, processor.NewStubChatModel())

		err := env.handler.StartTailorConsumer(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RabbitMQ")
	})
}
