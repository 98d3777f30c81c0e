package usecase

import (
	"errors"
	"testing"
	"triage_service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeForm() domain.SyndromeForm {
	return domain.SyndromeForm{
		TongueDiagnosis: "舌质紫暗",
		PASI:            "12.4",
		BSA:             "8",
		SCCA:            "2.1",
		DLQI:            "14",
		CMSSS:           "21",
	}
}

func TestSyndrome_CompleteFormYieldsBloodStasis(t *testing.T) {
	uc := NewSyndromeUseCase(quietLogger())

	report, err := uc.Analyze(completeForm())
	require.NoError(t, err)
	assert.Equal(t, "blood_stasis", report.Code)
	assert.Equal(t, "血瘀证", report.Syndrome)
	assert.Len(t, report.Symptoms, 6)
	assert.Equal(t, []string{"活血化瘀", "行气止痛", "养血通络"}, report.Treatment)
	assert.Len(t, report.Recommendations, 5)
	assert.NotEmpty(t, report.Disclaimer)
	assert.Equal(t, []domain.Indicator{
		{Name: "CMSSS评分", Value: "21"},
		{Name: "DLQI评分", Value: "14"},
		{Name: "BSA评分", Value: "8"},
		{Name: "PASI评分", Value: "12.4"},
		{Name: "SCCA值", Value: "2.1"},
	}, report.KeyIndicators)

	other := completeForm()
	other.PASI = "1"
	other.IL17 = "300"
	second, err := uc.Analyze(other)
	require.NoError(t, err)
	assert.Equal(t, report.Syndrome, second.Syndrome)
	assert.Equal(t, report.Symptoms, second.Symptoms)
}

func TestSyndrome_MissingRequiredScores(t *testing.T) {
	uc := NewSyndromeUseCase(quietLogger())

	form := completeForm()
	form.PASI = ""
	form.CMSSS = "  "
	_, err := uc.Analyze(form)

	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.ElementsMatch(t, []string{"pasi_score", "cmsss"}, vErr.Fields)

	_, err = uc.Analyze(domain.SyndromeForm{})
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Fields, 5)
}

func TestTreatmentCatalog(t *testing.T) {
	c := NewTreatmentCatalog()

	all := c.List()
	require.Len(t, all, 3)
	assert.Equal(t, "blood_stasis", c.Recommended().Code)

	byCode, err := c.Get("blood_heat")
	require.NoError(t, err)
	assert.Equal(t, "决银颗粒", byCode.Prescription.Name)

	byName, err := c.Get("血燥证")
	require.NoError(t, err)
	assert.Equal(t, "养血解毒颗粒", byName.Prescription.Name)
	assert.Len(t, byName.Prescription.Medicines, 10)

	_, err = c.Get("wind_cold")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all[0].Prescription.Medicines[0].Amount = "999g"
	again, _ := c.Get("blood_heat")
	assert.Equal(t, "30g", again.Prescription.Medicines[0].Amount)
}
