package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"triage_service/internal/domain"
	"triage_service/internal/repository"
	"triage_service/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeVision struct {
	analyze func(ctx context.Context, image domain.Image) (string, error)
}

func (f *fakeVision) AnalyzeImage(ctx context.Context, image domain.Image) (string, error) {
	return f.analyze(ctx, image)
}

func replyWith(text string, err error) *fakeVision {
	return &fakeVision{analyze: func(context.Context, domain.Image) (string, error) { return text, err }}
}

func newTestRouter(vision *fakeVision, apiKeySet bool) *gin.Engine {
	log := quietLogger()
	return NewRouter(RouterConfig{
		Auth:          usecase.NewAuthUseCase(repository.NewMemoryUserRepository(log), repository.NewMemorySessionStore(log), log),
		Patients:      usecase.NewPatientUseCase(repository.NewMemoryPatientRepository(log), log),
		Diagnosis:     usecase.NewDiagnosisUseCase(vision, nil, 2, log),
		Syndrome:      usecase.NewSyndromeUseCase(log),
		Treatments:    usecase.NewTreatmentCatalog(),
		APIKeySet:     apiKeySet,
		MaxImageBytes: 1 << 20,
	}, log)
}

func doJSON(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type upload struct {
	field, filename string
	data            []byte
}

func doMultipart(r http.Handler, path string, fields map[string]string, files ...upload) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for _, f := range files {
		fw, _ := mw.CreateFormFile(f.field, f.filename)
		_, _ = fw.Write(f.data)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func registerAndLogin(t *testing.T, r http.Handler, email, phone string) string {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{"email": email, "password": "pw1", "name": "测试", "phone": phone})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func TestAuthEndpoints(t *testing.T) {
	r := newTestRouter(replyWith("", nil), true)

	registerAndLogin(t, r, "a@b.com", "13800138000")

	w := doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "a@b.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	token := body["token"].(string)
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@b.com", user["email"])
	assert.NotContains(t, w.Body.String(), "PasswordHash")

	w = doJSON(r, http.MethodGet, "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["authenticated"])

	w = doJSON(r, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodGet, "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthEndpoints_Errors(t *testing.T) {
	r := newTestRouter(replyWith("", nil), true)
	registerAndLogin(t, r, "a@b.com", "13800138000")

	w := doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{"email": "a@b.com", "password": "x", "name": "n"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{"email": "c@d.com", "password": "x", "name": "n", "phone": "13800138000"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{"email": "c@d.com", "password": "x", "name": "n", "phone": "555"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "a@b.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "13800138000", "password": "pw1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPatientEndpoints(t *testing.T) {
	r := newTestRouter(replyWith("", nil), true)
	u1 := registerAndLogin(t, r, "u1@x.com", "")
	u2 := registerAndLogin(t, r, "u2@x.com", "")

	w := doJSON(r, http.MethodPost, "/api/patients", "", gin.H{"idNumber": "11010119900307001X", "name": "张三"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/patients", u1, gin.H{
		"idNumber":  "11010119900307001X",
		"name":      "张三",
		"birthDate": "1990-03-07",
		"phone":     "13912345678",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	patient := body["patient"].(map[string]any)
	assert.NotEmpty(t, patient["age"])
	assert.NotEmpty(t, patient["lastUpdated"])

	w = doJSON(r, http.MethodPost, "/api/patients", u1, gin.H{"idNumber": "12345", "name": "李四"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = doJSON(r, http.MethodGet, "/api/patients/11010119900307001X", u1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "张三", decode(t, w)["name"])

	w = doJSON(r, http.MethodGet, "/api/patients/11010119900307001X", u2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/patients/latest", u1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "11010119900307001X", decode(t, w)["idNumber"])

	w = doJSON(r, http.MethodGet, "/api/patients/latest", u2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/patients", u1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])
}

func TestDiagnoseImage(t *testing.T) {
	answer := "疾病类型：银屑病\n置信度：91%\n严重程度：重度"
	r := newTestRouter(replyWith(answer, nil), true)

	w := doMultipart(r, "/api/diagnosis/image", map[string]string{"userId": "u1"}, upload{"image", "lesion.png", pngBytes})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "psoriasis", body["disease"])
	assert.EqualValues(t, 91, body["confidence"])
	assert.Equal(t, answer, body["aiResponse"])
	assert.NotEmpty(t, body["timestamp"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "u1", result["userId"])
	assert.Equal(t, "severe", result["details"].(map[string]any)["severity"])
}

func TestDiagnoseImage_RequestErrors(t *testing.T) {
	r := newTestRouter(replyWith("", nil), true)

	w := doMultipart(r, "/api/diagnosis/image", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No image file provided")

	w = doMultipart(r, "/api/diagnosis/image", nil, upload{"image", "notes.txt", []byte("plain text, not an image")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 1<<20)...)
	w = doMultipart(r, "/api/diagnosis/image", nil, upload{"image", "big.png", big})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	noKey := newTestRouter(replyWith("", nil), false)
	w = doMultipart(noKey, "/api/diagnosis/image", nil, upload{"image", "a.png", pngBytes})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "API key not configured")
}

func TestDiagnoseImage_UpstreamFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"timeout", fmt.Errorf("%w: deadline", domain.ErrGatewayTimeout), http.StatusGatewayTimeout, "Gateway Timeout"},
		{"unreachable", fmt.Errorf("%w: refused", domain.ErrBadGateway), http.StatusBadGateway, "Bad Gateway"},
		{"relayed", &domain.UpstreamError{StatusCode: 402, Body: []byte(`{"error":"Insufficient Balance"}`)}, 402, `{"error":"Insufficient Balance"}`},
		{"malformed", fmt.Errorf("%w: no choices", domain.ErrMalformedResponse), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(replyWith("", tc.err), true)
			w := doMultipart(r, "/api/diagnosis/image", nil, upload{"image", "a.png", pngBytes})
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func TestDiagnoseBatch(t *testing.T) {
	vision := &fakeVision{analyze: func(_ context.Context, image domain.Image) (string, error) {
		if strings.HasPrefix(image.Filename, "down") {
			return "", domain.ErrBadGateway
		}
		return "Diagnosis: eczema\nConfidence: 55%", nil
	}}
	r := newTestRouter(vision, true)

	w := doMultipart(r, "/api/diagnosis/batch", nil,
		upload{"images", "one.png", pngBytes},
		upload{"images", "notes.txt", []byte("hello")},
		upload{"images", "down.png", pngBytes},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Results []BatchItemResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 3)

	assert.Equal(t, "one.png", body.Results[0].Filename)
	assert.Equal(t, http.StatusOK, body.Results[0].Status)
	require.NotNil(t, body.Results[0].Result)
	assert.Equal(t, domain.DiseaseEczema, body.Results[0].Result.Disease)

	assert.Equal(t, http.StatusBadRequest, body.Results[1].Status)
	assert.Nil(t, body.Results[1].Result)

	assert.Equal(t, http.StatusBadGateway, body.Results[2].Status)
	require.NotNil(t, body.Results[2].Error)

	w = doMultipart(r, "/api/diagnosis/batch", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyndromeAndTreatments(t *testing.T) {
	r := newTestRouter(replyWith("", nil), true)

	w := doJSON(r, http.MethodPost, "/api/syndrome/analysis", "", gin.H{"pasi_score": 12.5, "bsa_score": "10"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	details := decode(t, w)["details"].([]any)
	assert.ElementsMatch(t, []any{"scca", "dlqi", "cmsss"}, details)

	w = doJSON(r, http.MethodPost, "/api/syndrome/analysis", "", gin.H{
		"pasi_score": 12.5, "bsa_score": "10", "scca": "1.8", "dlqi": 9, "cmsss": "17", "tongue_diagnosis": "舌紫暗",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "血瘀证", body["syndrome"])
	assert.Len(t, body["keyIndicators"], 5)

	w = doJSON(r, http.MethodGet, "/api/treatments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["treatments"], 3)

	w = doJSON(r, http.MethodGet, "/api/treatments/blood_stasis", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["recommended"])

	w = doJSON(r, http.MethodGet, "/api/treatments/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(replyWith("", nil), false)
	w := doJSON(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.Equal(t, false, decode(t, w)["aiUpstream"])
}
