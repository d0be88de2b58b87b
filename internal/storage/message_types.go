package storage

import "time"

// TailorTask 异步裁剪任务的队列消息
type TailorTask struct {
	TaskUUID    string    `json:"task_uuid"`    // 任务UUID，UUIDv7
	UserID      string    `json:"user_id"`      // 提交用户
	JobText     string    `json:"job_text"`     // 职位描述原文
	ResumeText  string    `json:"resume_text"`  // 简历原文
	Template    string    `json:"template"`     // 渲染模板，含占位符
	OutputName  string    `json:"output_name"`  // 渲染产物名
	SubmittedAt time.Time `json:"submitted_at"` // 提交时间
}

// TailorTaskStatus Redis中跟踪的任务状态记录。
// 状态流转: PENDING -> RUNNING -> COMPLETED / FAILED
type TailorTaskStatus struct {
	TaskUUID    string    `json:"task_uuid"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	DocumentKey string    `json:"document_key,omitempty"` // COMPLETED时的文档产物键
	SnapshotKey string    `json:"snapshot_key,omitempty"` // COMPLETED时的快照产物键
	Stage       string    `json:"stage,omitempty"`        // FAILED时出错的阶段
	Error       string    `json:"error,omitempty"`        // FAILED时的错误信息
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
