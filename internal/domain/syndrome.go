package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Score is a form value that may arrive as a JSON string or number.
type Score string

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Score(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = Score(n.String())
	return nil
}

// SyndromeForm holds the clinical indices collected by the scoring form.
// Values are kept as entered; they are opaque inputs to a fixed lookup.
type SyndromeForm struct {
	TongueDiagnosis string `json:"tongue_diagnosis"`
	PulseDiagnosis  string `json:"pulse_diagnosis"`

	PASI Score `json:"pasi_score"`
	BSA  Score `json:"bsa_score"`

	SCCA     Score `json:"scca"`
	TNFAlpha Score `json:"tnf_alpha"`
	IL23     Score `json:"il_23"`
	IL17     Score `json:"il_17"`

	VAS   Score `json:"vas"`
	DLQI  Score `json:"dlqi"`
	CSS   Score `json:"css"`
	SAS   Score `json:"sas"`
	SDS   Score `json:"sds"`
	XQ    Score `json:"xq"`
	CMSSS Score `json:"cmsss"`
}

type Indicator struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SyndromeReport struct {
	Code            string      `json:"code"`
	Syndrome        string      `json:"syndrome"`
	Description     string      `json:"description"`
	Symptoms        []string    `json:"symptoms"`
	Treatment       []string    `json:"treatment"`
	Recommendations []string    `json:"recommendations"`
	KeyIndicators   []Indicator `json:"keyIndicators"`
	Disclaimer      string      `json:"disclaimer"`
}

type SyndromeUseCase interface {
	Analyze(form SyndromeForm) (*SyndromeReport, error)
}
