package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"triage_service/internal/domain"

	"github.com/samber/lo"
)

// Labels may be Chinese or English, optionally wrapped in markdown bold.
const labelSep = `[*\s]*[：:][*\s]*`

var (
	diseasePattern         = regexp.MustCompile(`(?i)(?:疾病类型|诊断结果|disease(?:\s+type)?|diagnosis)` + labelSep + `([^\n]+)`)
	confidencePattern      = regexp.MustCompile(`(?i)(?:置信度|确信度|confidence)` + labelSep + `(\d+)\s*[%％]`)
	severityPattern        = regexp.MustCompile(`(?i)(?:严重程度|severity)` + labelSep + `(轻度|中度|重度|mild|moderate|severe)`)
	symptomsPattern        = regexp.MustCompile(`(?i)(?:主要症状|symptoms)` + labelSep + `([^\n]+)`)
	affectedAreasPattern   = regexp.MustCompile(`(?i)(?:受影响的身体部位|受影响部位|affected\s+areas?)` + labelSep + `([^\n]+)`)
	recommendationsPattern = regexp.MustCompile(`(?i)(?:治疗建议|recommendations?)` + labelSep + `([^\n]+)`)

	listSeparator     = regexp.MustCompile(`[、,，;；]`)
	sentenceSeparator = regexp.MustCompile(`。|;|；|\.\s+`)
)

var severityWords = map[string]domain.Severity{
	"轻度":       domain.SeverityMild,
	"中度":       domain.SeverityModerate,
	"重度":       domain.SeveritySevere,
	"mild":     domain.SeverityMild,
	"moderate": domain.SeverityModerate,
	"severe":   domain.SeveritySevere,
}

// ParseDiagnosis extracts a structured result from the model's free-text
// answer. Absent fields take their defaults: unknown disease, confidence 0,
// moderate severity and empty lists. ID, timestamp and image URLs are left
// for the caller.
func ParseDiagnosis(text string) domain.DiagnosisResult {
	result := domain.DiagnosisResult{
		Disease:    domain.DiseaseUnknown,
		Confidence: 0,
		Details: domain.DiagnosisDetails{
			Symptoms:        []string{},
			Severity:        domain.SeverityModerate,
			AffectedAreas:   []string{},
			Recommendations: []string{},
		},
		ImageURLs:  []string{},
		AIResponse: text,
	}

	if m := diseasePattern.FindStringSubmatch(text); m != nil {
		result.Disease = ClassifyDisease(m[1])
	} else {
		result.Disease = ClassifyDisease(text)
	}

	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		result.Confidence = parseConfidence(m[1])
	}

	if m := severityPattern.FindStringSubmatch(text); m != nil {
		if sev, ok := severityWords[strings.ToLower(m[1])]; ok {
			result.Details.Severity = sev
		}
	}

	if m := symptomsPattern.FindStringSubmatch(text); m != nil {
		result.Details.Symptoms = splitList(m[1], listSeparator)
	}
	if m := affectedAreasPattern.FindStringSubmatch(text); m != nil {
		result.Details.AffectedAreas = splitList(m[1], listSeparator)
	}
	if m := recommendationsPattern.FindStringSubmatch(text); m != nil {
		result.Details.Recommendations = splitList(m[1], sentenceSeparator)
	}

	return result
}

// ClassifyDisease maps a disease mention onto the supported vocabulary.
// Psoriasis wins when both tokens appear.
func ClassifyDisease(mention string) domain.Disease {
	lower := strings.ToLower(mention)
	switch {
	case strings.Contains(lower, "银屑"), strings.Contains(lower, "psoriasis"):
		return domain.DiseasePsoriasis
	case strings.Contains(lower, "皮炎"), strings.Contains(lower, "湿疹"),
		strings.Contains(lower, "eczema"), strings.Contains(lower, "dermatitis"):
		return domain.DiseaseEczema
	default:
		return domain.DiseaseUnknown
	}
}

func parseConfidence(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		// more digits than fit in an int
		return 100
	}
	return lo.Clamp(n, 0, 100)
}

func splitList(raw string, sep *regexp.Regexp) []string {
	parts := lo.Map(sep.Split(raw, -1), func(s string, _ int) string {
		return strings.Trim(strings.TrimSpace(s), "*.。")
	})
	return lo.Compact(parts)
}
