package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/metrics"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"
	"resume-agent-go/pkg/utils"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
)

// TailorHandler 简历定制处理器，承接同步分析与异步定制任务
type TailorHandler struct {
	cfg             *config.Config
	storage         *storage.Storage
	pipeline        *processor.TailorPipeline
	defaultTemplate string
}

// NewTailorHandler 创建简历定制处理器。
// defaultTemplate在任务消息未携带模板时兜底。
func NewTailorHandler(cfg *config.Config, storage *storage.Storage, pipeline *processor.TailorPipeline, defaultTemplate string) *TailorHandler {
	return &TailorHandler{
		cfg:             cfg,
		storage:         storage,
		pipeline:        pipeline,
		defaultTemplate: defaultTemplate,
	}
}

type analyzeRequest struct {
	JobText    string `json:"job_text"`
	ResumeText string `json:"resume_text"`
}

type tailorRunRequest struct {
	UserID     string `json:"user_id"`
	JobText    string `json:"job_text"`
	ResumeText string `json:"resume_text"`
	Template   string `json:"template,omitempty"`
	OutputName string `json:"output_name,omitempty"`
}

// TailorRunResponse 异步任务提交结果
type TailorRunResponse struct {
	TaskUUID string `json:"task_uuid"`
	Status   string `json:"status"`
}

// decodeJSONBody 解析JSON请求体
func decodeJSONBody(c *app.RequestContext, out interface{}) error {
	body, err := c.Body()
	if err != nil {
		return fmt.Errorf("读取请求体失败: %w", err)
	}
	if len(body) == 0 {
		return errors.New("请求体为空")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析请求体失败: %w", err)
	}
	return nil
}

// HandleAnalyze 同步执行分析流水线，返回完整的分析记录。
// POST /api/v1/tailor/analyze
func (h *TailorHandler) HandleAnalyze(ctx context.Context, c *app.RequestContext) {
	var req analyzeRequest
	if err := decodeJSONBody(c, &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.JobText) == "" || strings.TrimSpace(req.ResumeText) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "job_text 和 resume_text 不能为空"})
		return
	}

	bundle, err := h.pipeline.RunAnalysis(ctx, req.JobText, req.ResumeText)
	if err != nil {
		logger.Error().Err(err).Msg("分析流水线执行失败")
		statusCode, body := analysisErrorBody(err)
		c.JSON(statusCode, body)
		return
	}
	c.JSON(consts.StatusOK, bundle)
}

// analysisErrorBody 把流水线错误映射为HTTP响应：
// 模型输出不可解析按422返回并携带阶段名，传输层失败按500
func analysisErrorBody(err error) (int, map[string]string) {
	var extractErr *types.ExtractionError
	if errors.As(err, &extractErr) {
		return consts.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
			"stage": extractErr.Stage,
		}
	}
	var genErr *types.GenerationError
	if errors.As(err, &genErr) {
		return consts.StatusInternalServerError, map[string]string{
			"error": err.Error(),
			"stage": genErr.Stage,
		}
	}
	return consts.StatusInternalServerError, map[string]string{"error": err.Error()}
}

// HandleSubmitTailorTask 提交异步定制任务。
// POST /api/v1/tailor/run
func (h *TailorHandler) HandleSubmitTailorTask(ctx context.Context, c *app.RequestContext) {
	var req tailorRunRequest
	if err := decodeJSONBody(c, &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "user_id 不能为空"})
		return
	}
	if strings.TrimSpace(req.JobText) == "" || strings.TrimSpace(req.ResumeText) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "job_text 和 resume_text 不能为空"})
		return
	}
	// 缺占位符的模板在工作器侧只会反复失败，提交时就拒绝
	if req.Template != "" && !strings.Contains(req.Template, constants.TemplatePlaceholder) {
		c.JSON(consts.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("template 缺少 %s 占位符", constants.TemplatePlaceholder),
		})
		return
	}
	if h.storage == nil || h.storage.Redis == nil || h.storage.RabbitMQ == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "存储组件未就绪，无法提交任务"})
		return
	}

	resp, err := h.SubmitTailorTask(ctx, &req)
	if err != nil {
		logger.Error().Err(err).Str("user_id", req.UserID).Msg("提交定制任务失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// SubmitTailorTask 执行任务提交：输入去重、登记PENDING状态、消息入队。
// 去重与状态写在消息发布之前，组件未就绪时先拒绝，不留半程状态。
func (h *TailorHandler) SubmitTailorTask(ctx context.Context, req *tailorRunRequest) (*TailorRunResponse, error) {
	if h.storage == nil || h.storage.Redis == nil || h.storage.RabbitMQ == nil {
		return nil, errors.New("存储组件未就绪，无法提交任务")
	}

	// 1. 生成UUIDv7，时间有序便于排查
	taskID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	taskUUID := taskID.String()

	// 2. 对(用户,职位,简历)整体做MD5去重，重复提交复用首个任务
	inputMD5 := utils.CalculateMD5([]byte(req.UserID + "\n" + req.JobText + "\n" + req.ResumeText))
	isDuplicate, existingUUID, err := h.storage.Redis.CheckAndSetTaskMD5(ctx, inputMD5, taskUUID)
	if err != nil {
		// 去重是核心语义，Redis不可用时拒绝提交而不是放重复任务进队列
		return nil, fmt.Errorf("检查任务重复性失败: %w", err)
	}
	if isDuplicate {
		logger.Info().
			Str("md5", inputMD5).
			Str("existing_task", existingUUID).
			Msg("检测到重复的任务输入，返回已有任务")
		return &TailorRunResponse{
			TaskUUID: existingUUID,
			Status:   constants.TaskStatusDuplicate,
		}, nil
	}

	// 3. 登记PENDING状态
	now := time.Now()
	outputName := strings.TrimSpace(req.OutputName)
	if outputName == "" {
		outputName = fmt.Sprintf("%s/%s%s", req.UserID, taskUUID, h.documentExtension())
	}
	status := &storage.TailorTaskStatus{
		TaskUUID:    taskUUID,
		UserID:      req.UserID,
		Status:      constants.TaskStatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := h.storage.Redis.SetTailorTaskStatus(ctx, status, constants.TaskStatusTTL); err != nil {
		return nil, fmt.Errorf("登记任务状态失败: %w", err)
	}

	// 4. 发布任务消息，消息持久化
	task := &storage.TailorTask{
		TaskUUID:    taskUUID,
		UserID:      req.UserID,
		JobText:     req.JobText,
		ResumeText:  req.ResumeText,
		Template:    req.Template,
		OutputName:  outputName,
		SubmittedAt: now,
	}
	if err := h.storage.RabbitMQ.PublishTailorTask(ctx, task); err != nil {
		return nil, fmt.Errorf("发布任务消息失败: %w", err)
	}

	metrics.TasksTotal.WithLabelValues(constants.TaskStatusPending).Inc()
	logger.Info().
		Str("task_uuid", taskUUID).
		Str("user_id", req.UserID).
		Str("output_name", outputName).
		Msg("定制任务已提交")

	return &TailorRunResponse{
		TaskUUID: taskUUID,
		Status:   constants.TaskStatusPending,
	}, nil
}

func (h *TailorHandler) documentExtension() string {
	if ext := h.cfg.Artifacts.DocumentExtension; ext != "" {
		return ext
	}
	return ".tex"
}

// HandleGetTaskStatus 查询任务状态。
// GET /api/v1/tailor/tasks/:task_uuid
func (h *TailorHandler) HandleGetTaskStatus(ctx context.Context, c *app.RequestContext) {
	taskUUID := c.Param("task_uuid")
	if taskUUID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "task_uuid 不能为空"})
		return
	}
	if h.storage == nil || h.storage.Redis == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "Redis组件未就绪"})
		return
	}

	status, err := h.storage.Redis.GetTailorTaskStatus(ctx, taskUUID)
	if err != nil {
		if storage.IsNotFoundErr(err) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": fmt.Sprintf("任务 %s 不存在", taskUUID)})
			return
		}
		logger.Error().Err(err).Str("task_uuid", taskUUID).Msg("查询任务状态失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询任务状态失败"})
		return
	}
	c.JSON(consts.StatusOK, status)
}

// StartTailorConsumer 启动定制任务消费者。
// 流水线阶段的确定性失败记为FAILED并确认消息，避免重投风暴；
// 产物持久化等基础设施错误不落终态，消息重新入队等待重试。
func (h *TailorHandler) StartTailorConsumer(ctx context.Context) error {
	if h.pipeline == nil {
		return errors.New("流水线组件未初始化")
	}
	if h.storage == nil || h.storage.RabbitMQ == nil {
		return errors.New("RabbitMQ组件未就绪，无法启动消费者")
	}
	return h.storage.RabbitMQ.StartTailorTaskConsumer(ctx, func(data []byte) bool {
		return h.consumeTailorTask(ctx, data)
	})
}

// consumeTailorTask 处理单条任务消息，返回值语义与StartConsumer的约定一致
func (h *TailorHandler) consumeTailorTask(ctx context.Context, data []byte) bool {
	var task storage.TailorTask
	if err := json.Unmarshal(data, &task); err != nil {
		logger.Error().Err(err).Msg("解析定制任务消息失败")
		return true // 消息本身损坏，重投无法恢复
	}
	if task.TaskUUID == "" {
		logger.Error().Msg("任务消息缺少task_uuid，丢弃")
		return true
	}

	metrics.TasksActive.Inc()
	defer metrics.TasksActive.Dec()

	h.writeTaskStatus(ctx, &storage.TailorTaskStatus{
		TaskUUID:    task.TaskUUID,
		UserID:      task.UserID,
		Status:      constants.TaskStatusRunning,
		SubmittedAt: task.SubmittedAt,
	})

	template := task.Template
	if strings.TrimSpace(template) == "" {
		template = h.defaultTemplate
	}
	outputName := task.OutputName
	if outputName == "" {
		outputName = fmt.Sprintf("%s/%s%s", task.UserID, task.TaskUUID, h.documentExtension())
	}

	doc, err := h.pipeline.RunFull(ctx, task.JobText, task.ResumeText, template, outputName)
	if err != nil {
		stage, deterministic := classifyPipelineError(err)
		if !deterministic {
			logger.Error().
				Err(err).
				Str("task_uuid", task.TaskUUID).
				Msg("任务处理遇到基础设施错误，消息重新入队")
			return false
		}
		logger.Error().
			Err(err).
			Str("task_uuid", task.TaskUUID).
			Str("stage", stage).
			Msg("任务处理失败")
		h.writeTaskStatus(ctx, &storage.TailorTaskStatus{
			TaskUUID:    task.TaskUUID,
			UserID:      task.UserID,
			Status:      constants.TaskStatusFailed,
			Stage:       stage,
			Error:       err.Error(),
			SubmittedAt: task.SubmittedAt,
		})
		metrics.TasksTotal.WithLabelValues(constants.TaskStatusFailed).Inc()
		return true
	}

	h.writeTaskStatus(ctx, &storage.TailorTaskStatus{
		TaskUUID:    task.TaskUUID,
		UserID:      task.UserID,
		Status:      constants.TaskStatusCompleted,
		DocumentKey: doc.DocumentPath,
		SnapshotKey: doc.SnapshotPath,
		SubmittedAt: task.SubmittedAt,
	})
	metrics.TasksTotal.WithLabelValues(constants.TaskStatusCompleted).Inc()
	logger.Info().
		Str("task_uuid", task.TaskUUID).
		Str("document_key", doc.DocumentPath).
		Str("snapshot_key", doc.SnapshotPath).
		Msg("定制任务完成")
	return true
}

// classifyPipelineError 区分确定性失败与基础设施错误。
// 带阶段信息的模型错误属于前者，返回出错的阶段名。
func classifyPipelineError(err error) (string, bool) {
	var extractErr *types.ExtractionError
	if errors.As(err, &extractErr) {
		return extractErr.Stage, true
	}
	var genErr *types.GenerationError
	if errors.As(err, &genErr) {
		return genErr.Stage, true
	}
	return "", false
}

// writeTaskStatus 刷新任务状态记录，写失败仅告警不阻断任务流程
func (h *TailorHandler) writeTaskStatus(ctx context.Context, status *storage.TailorTaskStatus) {
	if h.storage == nil || h.storage.Redis == nil {
		logger.Warn().
			Str("task_uuid", status.TaskUUID).
			Str("status", status.Status).
			Msg("Redis组件未就绪，任务状态未记录")
		return
	}
	status.UpdatedAt = time.Now()
	if err := h.storage.Redis.SetTailorTaskStatus(ctx, status, constants.TaskStatusTTL); err != nil {
		logger.Warn().
			Err(err).
			Str("task_uuid", status.TaskUUID).
			Str("status", status.Status).
			Msg("更新任务状态失败")
	}
}
