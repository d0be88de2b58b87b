// Package schema 持有三种结构化记录的JSON Schema并提供严格校验。
// 模型返回的记录必须整体通过校验才能进入下游阶段，禁止传播部分字段的记录。
package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Kind 结构化记录的模式类别
type Kind string

const (
	// KindJobRequirements 岗位要求记录
	KindJobRequirements Kind = "job_requirements"
	// KindResumeFacts 简历事实记录
	KindResumeFacts Kind = "resume_facts"
	// KindTailoringStrategy 裁剪策略记录
	KindTailoringStrategy Kind = "tailoring_strategy"
)

//go:embed schemas/job_requirements.json
var jobRequirementsSchema []byte

//go:embed schemas/resume_facts.json
var resumeFactsSchema []byte

//go:embed schemas/tailoring_strategy.json
var tailoringStrategySchema []byte

var compiled = map[Kind]*gojsonschema.Schema{
	KindJobRequirements:   mustCompile(jobRequirementsSchema),
	KindResumeFacts:       mustCompile(resumeFactsSchema),
	KindTailoringStrategy: mustCompile(tailoringStrategySchema),
}

// mustCompile 编译内嵌模式，内嵌资产编译失败属于程序错误，直接panic
func mustCompile(raw []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("schema: compile embedded schema: %v", err))
	}
	return s
}

// Validate 校验JSON文档是否符合指定模式，不符合时返回逐条错误描述
func Validate(kind Kind, document []byte) error {
	s, ok := compiled[kind]
	if !ok {
		return fmt.Errorf("unknown schema kind: %s", kind)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("document does not conform to %s schema: %s", kind, strings.Join(errs, "; "))
	}

	return nil
}
