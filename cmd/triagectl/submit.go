package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	grpcHandler "triage_service/internal/delivery/grpc"

	"google.golang.org/grpc/status"
)

type outcome struct {
	File   string          `json:"file"`
	Status int             `json:"status,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type submitter interface {
	// Submit returns the raw diagnosis JSON and, for HTTP, the response status.
	Submit(ctx context.Context, filename string, data []byte) (json.RawMessage, int, error)
}

type httpSubmitter struct {
	endpoint string
	client   *http.Client
}

func newHTTPSubmitter(baseURL string, timeout time.Duration) *httpSubmitter {
	return &httpSubmitter{
		endpoint: strings.TrimRight(baseURL, "/") + "/diagnosis/image",
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *httpSubmitter) Submit(ctx context.Context, filename string, data []byte) (json.RawMessage, int, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, 0, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, 0, err
	}
	if err := mw.Close(); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("server answered %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !json.Valid(raw) {
		return nil, resp.StatusCode, fmt.Errorf("server answered with non-JSON body")
	}
	return raw, resp.StatusCode, nil
}

type grpcSubmitter struct {
	client *grpcHandler.DiagnosisClient
}

func (s *grpcSubmitter) Submit(ctx context.Context, filename string, data []byte) (json.RawMessage, int, error) {
	res, err := s.client.Diagnose(ctx, &grpcHandler.DiagnoseRequest{Filename: filename, Data: data})
	if err != nil {
		st := status.Convert(err)
		return nil, 0, fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, 0, err
	}
	return raw, 0, nil
}
