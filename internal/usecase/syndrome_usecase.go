package usecase

import (
	"strings"
	"triage_service/internal/domain"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type syndromeUseCase struct {
	log *logrus.Logger
}

func NewSyndromeUseCase(logger *logrus.Logger) domain.SyndromeUseCase {
	return &syndromeUseCase{log: logger}
}

type requiredScore struct {
	field string
	label string
	value func(domain.SyndromeForm) string
}

// Order matches the key indicator panel.
var requiredScores = []requiredScore{
	{"cmsss", "CMSSS评分", func(f domain.SyndromeForm) string { return string(f.CMSSS) }},
	{"dlqi", "DLQI评分", func(f domain.SyndromeForm) string { return string(f.DLQI) }},
	{"bsa_score", "BSA评分", func(f domain.SyndromeForm) string { return string(f.BSA) }},
	{"pasi_score", "PASI评分", func(f domain.SyndromeForm) string { return string(f.PASI) }},
	{"scca", "SCCA值", func(f domain.SyndromeForm) string { return string(f.SCCA) }},
}

// Analyze maps every complete form onto the blood-stasis profile. The scores
// are not interpreted beyond checking that they were filled in.
func (uc *syndromeUseCase) Analyze(form domain.SyndromeForm) (*domain.SyndromeReport, error) {
	missing := lo.FilterMap(requiredScores, func(s requiredScore, _ int) (string, bool) {
		return s.field, strings.TrimSpace(s.value(form)) == ""
	})
	if len(missing) > 0 {
		uc.log.Warnf("Use Case: Syndrome form incomplete, missing %v", missing)
		return nil, domain.NewValidationError("required scores are missing", missing...)
	}

	report := bloodStasisProfile()
	report.KeyIndicators = lo.Map(requiredScores, func(s requiredScore, _ int) domain.Indicator {
		return domain.Indicator{Name: s.label, Value: strings.TrimSpace(s.value(form))}
	})
	uc.log.Infof("Use Case: Syndrome analysis produced %s", report.Code)
	return &report, nil
}

func bloodStasisProfile() domain.SyndromeReport {
	return domain.SyndromeReport{
		Code:        "blood_stasis",
		Syndrome:    "血瘀证",
		Description: "血瘀证是中医辨证分型中的一种证型，主要表现为血液运行不畅，瘀滞于体内所致的一系列症候。",
		Symptoms: []string{
			"皮损颜色紫暗",
			"皮损固定不移",
			"皮损反复发作",
			"瘙痒或刺痛",
			"舌质紫暗或有瘀点",
			"脉象涩或细涩",
		},
		Treatment: []string{"活血化瘀", "行气止痛", "养血通络"},
		Recommendations: []string{
			"保持情绪稳定，避免精神紧张",
			"适当运动，促进血液循环",
			"避免辛辣刺激性食物",
			"保持作息规律，避免熬夜",
			"可配合中药外敷治疗",
		},
		Disclaimer: "以上辨证分析结果仅供参考，建议在专业中医师指导下进行规范治疗。",
	}
}
