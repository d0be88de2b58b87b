package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
)

// 定义摄入命令的命令行参数
var (
	ingestTimeout = flag.Duration("ingest-timeout", 120*time.Second, "摄入超时时间")
)

// 处理摄入命令：把简历（和可选的职位描述）分块后写入用户向量库
func handleIngestCommand() {
	ctx, cancel := context.WithTimeout(context.Background(), *ingestTimeout)
	defer cancel()

	rt := buildRuntime(ctx)
	resumeText := loadInputText(*resumeFile, "简历", sampleResumeText)

	// 职位描述可选，未提供时只摄入简历
	jobText := ""
	if *jobFile != "" {
		jobText = loadInputText(*jobFile, "职位描述", "")
	} else if *stubMode {
		jobText = sampleJobText
	}

	store := rt.buildContextStore()

	fmt.Printf("1. 开始为用户 %s 摄入文档...\n", *userID)
	startTime := time.Now()

	result := store.Ingest(ctx, *userID, resumeText, jobText)
	if !result.Success {
		fmt.Printf("摄入失败: %s\n", result.Error)
		os.Exit(1)
	}
	fmt.Printf("摄入完成! 耗时: %v\n", time.Since(startTime))

	fmt.Println("\n===== 摄入结果 =====")
	fmt.Printf("分块数: %d\n", result.ChunksCreated)
	fmt.Printf("含职位描述: %v\n", result.HasJobDescription)
	fmt.Printf("向量库路径: %s\n", result.VectorStorePath)

	fmt.Println("\n摄入完成。")
}
