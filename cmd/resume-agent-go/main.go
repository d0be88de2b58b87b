package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/router"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，留空时在默认位置查找config.yaml")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		// 此时定制logger尚未就绪，使用包默认实例
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	if err := cfg.ValidateCredentials(); err != nil {
		glog.Fatalf("模型凭证校验失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	st, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer st.Close()
	glog.Info("存储服务初始化成功")

	newModel := func(task string) model.ToolCallingChatModel {
		m, err := agent.BuildChatModel(ctx, cfg, task)
		if err != nil {
			glog.Fatalf("初始化%s任务模型失败: %v", task, err)
		}
		return m
	}

	var embedder processor.TextEmbedder
	switch cfg.LLM.Provider {
	case agent.ProviderOpenAICompat:
		embedder, err = parser.NewOpenAICompatEmbedder(cfg.LLM.APIKey, cfg.LLM.Embedding)
	default:
		embedder, err = parser.NewGeminiEmbedder(ctx, cfg.LLM.APIKey, cfg.LLM.Embedding)
	}
	if err != nil {
		glog.Fatalf("初始化Embedder失败: %v", err)
	}
	glog.Info("Embedder初始化成功")

	debug := cfg.Logger.Level == "debug"

	jobExtractor := parser.NewJobExtractor(newModel(agent.TaskJobExtraction), logger.NewComponentLogger("JobExtractor", debug))
	resumeExtractor := parser.NewResumeExtractor(newModel(agent.TaskResumeExtraction), logger.NewComponentLogger("ResumeExtractor", debug))
	strategySynthesizer := parser.NewStrategySynthesizer(newModel(agent.TaskStrategy), logger.NewComponentLogger("StrategySynthesizer", debug))
	documentRenderer := parser.NewDocumentRenderer(newModel(agent.TaskRender), logger.NewComponentLogger("DocumentRenderer", debug))

	artifacts, err := processor.NewArtifactStoreFromConfig(&cfg.Artifacts, st.MinIO, logger.NewComponentLogger("ArtifactStore", true))
	if err != nil {
		glog.Fatalf("初始化产物存储失败: %v", err)
	}

	pipeline := processor.NewTailorPipeline(
		&processor.Components{
			JobExtractor:    jobExtractor,
			ResumeExtractor: resumeExtractor,
			Strategy:        strategySynthesizer,
			Renderer:        documentRenderer,
			Artifacts:       artifacts,
		},
		&processor.Settings{
			Debug:                debug,
			Logger:               logger.NewComponentLogger("TailorPipeline", true),
			TimeLocation:         time.Local,
			ConcurrentExtraction: true,
		},
	)
	glog.Info("定制流水线初始化成功")

	newIndex, err := storage.NewIndexFactory(&cfg.Vector)
	if err != nil {
		glog.Fatalf("初始化向量索引工厂失败: %v", err)
	}
	chunker := parser.NewTextChunker(
		logger.NewComponentLogger("TextChunker", debug),
		parser.WithChunkSize(cfg.RAG.ChunkSize),
		parser.WithChunkOverlap(cfg.RAG.ChunkOverlap),
	)
	contextStore, err := processor.NewContextStore(chunker, embedder, newIndex, cfg.Vector.StorePath, logger.NewComponentLogger("ContextStore", true))
	if err != nil {
		glog.Fatalf("初始化上下文存储失败: %v", err)
	}
	generator, err := processor.NewGenerator(newModel(agent.TaskRAG), contextStore, logger.NewComponentLogger("Generator", true))
	if err != nil {
		glog.Fatalf("初始化内容生成器失败: %v", err)
	}
	learner, err := processor.NewFeedbackLearner(contextStore, generator, logger.NewComponentLogger("FeedbackLearner", true))
	if err != nil {
		glog.Fatalf("初始化反馈学习器失败: %v", err)
	}
	suggester := parser.NewSuggestionGenerator(newModel(agent.TaskSuggestions), logger.NewComponentLogger("SuggestionGenerator", debug))
	glog.Info("RAG组件初始化成功")

	var chatMemory agent.ChatMemory
	if st.Redis != nil {
		chatMemory, err = agent.NewRedisChatMemory(st.Redis.Client, constants.ChatSessionTTL)
		if err != nil {
			glog.Fatalf("初始化Redis会话存储失败: %v", err)
		}
	} else {
		glog.Warn("Redis不可用，聊天会话历史仅保存在进程内")
		chatMemory = agent.NewInMemoryChatMemory()
	}
	chatAgent := agent.NewChatAgent(newModel(agent.TaskChat), chatMemory, contextStore, cfg.RAG.RetrievalK)

	defaultTemplate, err := processor.ResolveTemplate(cfg.Artifacts.TemplatePath)
	if err != nil {
		glog.Fatalf("加载渲染模板失败: %v", err)
	}

	tailorHandler := handler.NewTailorHandler(cfg, st, pipeline, defaultTemplate)
	ragHandler := handler.NewRAGHandler(cfg, st, contextStore, generator, learner, suggester, chatAgent)
	glog.Info("API处理器初始化成功")

	if st.RabbitMQ != nil {
		go func() {
			if err := tailorHandler.StartTailorConsumer(ctx); err != nil {
				glog.Fatalf("启动定制任务消费者失败: %v", err)
			}
			glog.Info("定制任务消费者已启动")
		}()
	} else {
		glog.Warn("RabbitMQ不可用，异步定制任务未启用，仅提供同步接口")
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, cfg, st, tailorHandler, ragHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownTimeout := config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Errorf("链路追踪导出器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并把Hertz的全局日志桥接到同一输出
func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	glog.SetLogger(hertzadapter.From(logger.Logger))
	glog.SetLevel(hertzLogLevel(cfg.Logger.Level))
}

func hertzLogLevel(level string) glog.Level {
	switch level {
	case "debug":
		return glog.LevelDebug
	case "warn":
		return glog.LevelWarn
	case "error":
		return glog.LevelError
	default:
		return glog.LevelInfo
	}
}
