package router

import (
	"context"

	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(
	h *server.Hertz,
	cfg *config.Config,
	st *storage.Storage,
	tailorHandler *handler.TailorHandler,
	ragHandler *handler.RAGHandler,
) {
	api := h.Group("/api/v1")

	// 健康检查，任一存储组件不可用时标记降级。
	// Redis报告实时连通性，其余组件报告初始化状态
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		components := st.ComponentStatus()
		if st.Redis != nil {
			components["redis"] = st.Redis.Ping(c) == nil
		}
		status := "ok"
		for _, up := range components {
			if !up {
				status = "degraded"
				break
			}
		}
		ctx.JSON(consts.StatusOK, utils.H{
			"status":     status,
			"components": components,
		})
	})

	// 定制流水线
	api.POST("/tailor/analyze", tailorHandler.HandleAnalyze)
	api.POST("/tailor/run", tailorHandler.HandleSubmitTailorTask)
	api.GET("/tailor/tasks/:task_uuid", tailorHandler.HandleGetTaskStatus)

	// 检索增强生成
	api.POST("/rag/ingest", ragHandler.HandleIngest)
	api.POST("/rag/generate", ragHandler.HandleGenerate)
	api.POST("/rag/feedback", ragHandler.HandleFeedback)
	api.POST("/rag/suggestions", ragHandler.HandleSuggestions)
	api.POST("/rag/chat", ragHandler.HandleChat)

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		h.GET(path, func(c context.Context, ctx *app.RequestContext) {
			req, err := adaptor.GetCompatRequest(&ctx.Request)
			if err != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "构造兼容请求失败"})
				return
			}
			promhttp.Handler().ServeHTTP(adaptor.GetCompatResponseWriter(&ctx.Response), req)
		})
	}
}
