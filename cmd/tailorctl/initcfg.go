package main

import (
	"fmt"
	"os"

	"resume-agent-go/internal/config"
)

// 处理init命令：在 -config 指定的路径生成示例配置文件
func handleInitCommand() {
	path := *configPath
	if path == "" {
		path = "config.yaml"
	}

	if err := config.CreateSampleConfig(path); err != nil {
		fmt.Printf("生成示例配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("请编辑配置文件，填入真实的模型API密钥后再运行其他命令。")
}
