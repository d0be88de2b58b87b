package types

// JobRequirements 从职位描述中抽取的结构化要求
type JobRequirements struct {
	RequiredSkills      []string `json:"required_skills"`
	NiceToHaveSkills    []string `json:"nice_to_have_skills"`
	EducationRequired   string   `json:"education_required"`
	ExperienceLevel     string   `json:"experience_level"`
	KeyResponsibilities []string `json:"key_responsibilities"`
	ImportantKeywords   []string `json:"important_keywords"`
	CompanyCulture      string   `json:"company_culture"`
}

// ContactInfo 简历联系方式，任意字段可为空
type ContactInfo struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Location  string `json:"location"`
	LinkedIn  string `json:"linkedin"`
	GitHub    string `json:"github"`
	Portfolio string `json:"portfolio"`
}

// ExperienceEntry 一段工作经历
type ExperienceEntry struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	Duration         string   `json:"duration"`
	Responsibilities []string `json:"responsibilities"`
}

// EducationEntry 一条教育经历
type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
	Details     string `json:"details"`
}

// ResumeFacts 从简历文本中抽取的结构化事实
type ResumeFacts struct {
	Name                      string            `json:"name"`
	ContactInfo               ContactInfo       `json:"contact_info"`
	Summary                   string            `json:"summary"`
	Skills                    []string          `json:"skills"`
	TechnicalSkills           []string          `json:"technical_skills"`
	SoftSkills                []string          `json:"soft_skills"`
	Experience                []ExperienceEntry `json:"experience"`
	Education                 []EducationEntry  `json:"education"`
	Projects                  []string          `json:"projects"`
	Achievements              []string          `json:"achievements"`
	Certifications            []string          `json:"certifications"`
	ExtracurricularActivities []string          `json:"extracurricular_activities"`
}

// StrongMatch 强匹配项及其呈现策略
type StrongMatch struct {
	SkillOrExperience string `json:"skill_or_experience"`
	Evidence          string `json:"evidence"`
	Strategy          string `json:"strategy"`
}

// PartialMatch 部分匹配项及其包装方式
type PartialMatch struct {
	Requirement  string `json:"requirement"`
	CandidateHas string `json:"candidate_has"`
	Strategy     string `json:"strategy"`
}

// Gap 缺口项及其缓解措施
type Gap struct {
	Missing    string `json:"missing"`
	Severity   string `json:"severity"` // critical / moderate / minor
	Mitigation string `json:"mitigation"`
}

// SkillEmphasis 需要突出的技能和呈现位置
type SkillEmphasis struct {
	Skill  string `json:"skill"`
	Reason string `json:"reason"`
	How    string `json:"how"`
}

// ExperienceHighlight 需要突出的经历
type ExperienceHighlight struct {
	Experience      string   `json:"experience"`
	Why             string   `json:"why"`
	KeyAchievements []string `json:"key_achievements"`
}

// StructuralRecommendations 简历结构调整建议
type StructuralRecommendations struct {
	SummaryFocus      string   `json:"summary_focus"`
	SkillsSection     string   `json:"skills_section"`
	ExperienceOrder   string   `json:"experience_order"`
	WhatToDeemphasize []string `json:"what_to_deemphasize"`
}

// EnhancedElements 增强字段（GitHub、作品集、课外活动）的利用策略
type EnhancedElements struct {
	GitHubStrategy           string `json:"github_strategy"`
	PortfolioStrategy        string `json:"portfolio_strategy"`
	ExtracurricularsStrategy string `json:"extracurriculars_strategy"`
}

// TailoringStrategy 针对一个(岗位要求, 简历事实)对的匹配与裁剪计划
type TailoringStrategy struct {
	OverallMatchScore         int                       `json:"overall_match_score"` // 0-100
	MatchSummary              string                    `json:"match_summary"`
	StrongMatches             []StrongMatch             `json:"strong_matches"`
	PartialMatches            []PartialMatch            `json:"partial_matches"`
	Gaps                      []Gap                     `json:"gaps"`
	SkillsToEmphasize         []SkillEmphasis           `json:"skills_to_emphasize"`
	ExperienceToHighlight     []ExperienceHighlight     `json:"experience_to_highlight"`
	KeywordsToAdd             []string                  `json:"keywords_to_add"`
	StructuralRecommendations StructuralRecommendations `json:"structural_recommendations"`
	EnhancedElements          EnhancedElements          `json:"enhanced_elements"`
	DifferentiationStrategy   string                    `json:"differentiation_strategy"`
	SpecificActions           []string                  `json:"specific_actions"`
}

// AnalysisBundle 分析阶段的完整输出（run_analysis的返回值），
// 序列化后即为分析快照产物
type AnalysisBundle struct {
	Job      *JobRequirements   `json:"job_analysis"`
	Resume   *ResumeFacts       `json:"resume_data"`
	Strategy *TailoringStrategy `json:"strategy"`
}

// RenderedDocument 渲染阶段的终端产物
type RenderedDocument struct {
	Content      string          `json:"content"`       // 模板合并后的完整文档
	Body         string          `json:"body"`          // 模型生成的内容部分，合并前
	DocumentPath string          `json:"document_path"` // 渲染产物的存储路径
	SnapshotPath string          `json:"snapshot_path"` // 分析快照的存储路径
	Analysis     *AnalysisBundle `json:"analysis,omitempty"`
}

// Normalize 将解码后可能为nil的切片统一为空切片，保证下游序列化始终输出数组
func (j *JobRequirements) Normalize() {
	j.RequiredSkills = ensureSlice(j.RequiredSkills)
	j.NiceToHaveSkills = ensureSlice(j.NiceToHaveSkills)
	j.KeyResponsibilities = ensureSlice(j.KeyResponsibilities)
	j.ImportantKeywords = ensureSlice(j.ImportantKeywords)
}

// Normalize 同上，处理简历事实中的全部切片字段
func (r *ResumeFacts) Normalize() {
	r.Skills = ensureSlice(r.Skills)
	r.TechnicalSkills = ensureSlice(r.TechnicalSkills)
	r.SoftSkills = ensureSlice(r.SoftSkills)
	r.Projects = ensureSlice(r.Projects)
	r.Achievements = ensureSlice(r.Achievements)
	r.Certifications = ensureSlice(r.Certifications)
	r.ExtracurricularActivities = ensureSlice(r.ExtracurricularActivities)
	if r.Experience == nil {
		r.Experience = []ExperienceEntry{}
	}
	for i := range r.Experience {
		r.Experience[i].Responsibilities = ensureSlice(r.Experience[i].Responsibilities)
	}
	if r.Education == nil {
		r.Education = []EducationEntry{}
	}
}

// Normalize 同上，处理策略中的全部切片字段
func (s *TailoringStrategy) Normalize() {
	if s.StrongMatches == nil {
		s.StrongMatches = []StrongMatch{}
	}
	if s.PartialMatches == nil {
		s.PartialMatches = []PartialMatch{}
	}
	if s.Gaps == nil {
		s.Gaps = []Gap{}
	}
	if s.SkillsToEmphasize == nil {
		s.SkillsToEmphasize = []SkillEmphasis{}
	}
	if s.ExperienceToHighlight == nil {
		s.ExperienceToHighlight = []ExperienceHighlight{}
	}
	s.KeywordsToAdd = ensureSlice(s.KeywordsToAdd)
	s.StructuralRecommendations.WhatToDeemphasize = ensureSlice(s.StructuralRecommendations.WhatToDeemphasize)
	s.SpecificActions = ensureSlice(s.SpecificActions)
}

func ensureSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
