package constants

import "time"

const (
	// MinMeaningfulTextLength 可选文本（JD、反馈）被视为"实际存在"的最小长度。
	// 去除首尾空白后长度必须大于该值，恰好50视为不存在。
	MinMeaningfulTextLength = 50

	// DefaultChunkSize 文本分块的目标窗口大小（字符数）
	DefaultChunkSize = 1000
	// DefaultChunkOverlap 相邻分块的重叠字符数，避免边界处丢失上下文
	DefaultChunkOverlap = 200

	// DefaultRetrievalK 检索时返回的最近邻分块数
	DefaultRetrievalK = 5

	// MaxSuggestions 建议生成器最多返回的条数
	MaxSuggestions = 5
	// MinSuggestionLength 去掉列表标记后建议的最小保留长度，不大于该值按噪声丢弃
	MinSuggestionLength = 10

	// SourceExcerptLength 生成结果附带的来源分块摘录长度
	SourceExcerptLength = 200

	// SuggestionResumeLimit 建议生成时简历文本的截断长度
	SuggestionResumeLimit = 3000
	// SuggestionJobLimit 建议生成时JD文本的截断长度
	SuggestionJobLimit = 2000

	// TemplatePlaceholder 静态模板中被渲染内容替换的占位符
	TemplatePlaceholder = "{{CONTENT}}"

	// SnapshotSuffix 分析快照产物的文件名后缀（替换渲染产物的扩展名得到）
	SnapshotSuffix = "_analysis.json"

	// TailorEventsExchange 裁剪任务交换机
	TailorEventsExchange = "tailor.events"
	// TailorTasksQueue 裁剪任务队列
	TailorTasksQueue = "tailor.tasks"
	// TailorSubmittedRoutingKey 任务提交路由键
	TailorSubmittedRoutingKey = "tailor.submitted"

	// TaskStatusTTL 任务状态记录在Redis中的保留时间
	TaskStatusTTL = 7 * 24 * time.Hour

	// UserLockTTL 单用户RAG操作锁的过期时间
	UserLockTTL = 30 * time.Second

	// ChatSessionTTL 聊天会话历史在Redis中的保留时间
	ChatSessionTTL = 24 * time.Hour
)

// 任务处理状态
const (
	TaskStatusPending   = "PENDING"
	TaskStatusRunning   = "RUNNING"
	TaskStatusCompleted = "COMPLETED"
	TaskStatusFailed    = "FAILED"
	TaskStatusDuplicate = "DUPLICATE"
)

// 上下文分块的来源标记
const (
	ChunkSourceResume         = "resume"
	ChunkSourceJobDescription = "job_description"
	ChunkSourceFeedback       = "feedback"
)

// 分块类型标记（source描述来源，type描述内容类别，二者在简历/反馈场景下同名）
const (
	ChunkTypeResume   = "resume"
	ChunkTypeJD       = "jd"
	ChunkTypeFeedback = "feedback"
)
