package constants

import "fmt"

// Redis键命名规范：app:{模块}:{实体}:{唯一标识}
// 所有键必须通过本文件的辅助函数生成，禁止在业务代码中手写键名。
const (
	// KeyTailorTaskStatusFmt 裁剪任务状态，值为JSON编码的任务记录
	KeyTailorTaskStatusFmt = "app:tailor:status:%s" // task_uuid

	// KeyTailorDedupSet 已提交任务输入MD5集合，用于幂等去重
	KeyTailorDedupSet = "app:tailor:dedup_set"

	// KeyTailorInputMD5Fmt 输入MD5到任务UUID的映射，重复提交时返回原任务
	KeyTailorInputMD5Fmt = "app:tailor:input_md5:%s" // md5

	// KeyRAGUserLockFmt 单用户RAG写操作互斥锁
	KeyRAGUserLockFmt = "app:rag:lock:%s" // user_id

	// KeyChatSessionFmt 会话聊天记录（List，元素为JSON编码消息）
	KeyChatSessionFmt = "app:chat:session:%s" // session_id
)

// TailorTaskStatusKey 返回任务状态键
func TailorTaskStatusKey(taskUUID string) string {
	return fmt.Sprintf(KeyTailorTaskStatusFmt, taskUUID)
}

// TailorInputMD5Key 返回输入MD5映射键
func TailorInputMD5Key(md5 string) string {
	return fmt.Sprintf(KeyTailorInputMD5Fmt, md5)
}

// RAGUserLockKey 返回用户级RAG锁键
func RAGUserLockKey(userID string) string {
	return fmt.Sprintf(KeyRAGUserLockFmt, userID)
}

// ChatSessionKey 返回聊天会话键
func ChatSessionKey(sessionID string) string {
	return fmt.Sprintf(KeyChatSessionFmt, sessionID)
}
