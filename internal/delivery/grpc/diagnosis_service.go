package grpc

import (
	"context"
	"triage_service/internal/domain"
	"triage_service/internal/usecase"

	"github.com/sirupsen/logrus"
	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	serviceName           = "triage.v1.DiagnosisService"
	diagnoseMethod        = "/" + serviceName + "/Diagnose"
	analyzeSyndromeMethod = "/" + serviceName + "/AnalyzeSyndrome"
)

type DiagnoseRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType,omitempty"`
	Data     []byte `json:"data"`
	UserID   string `json:"userId,omitempty"`
}

type DiagnosisServiceServer interface {
	Diagnose(ctx context.Context, req *DiagnoseRequest) (*domain.DiagnosisResult, error)
	AnalyzeSyndrome(ctx context.Context, form *domain.SyndromeForm) (*domain.SyndromeReport, error)
}

// DiagnosisServiceDesc is registered by hand; messages travel as JSON.
var DiagnosisServiceDesc = grpcgo.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DiagnosisServiceServer)(nil),
	Methods: []grpcgo.MethodDesc{
		{MethodName: "Diagnose", Handler: diagnoseHandler},
		{MethodName: "AnalyzeSyndrome", Handler: analyzeSyndromeHandler},
	},
	Streams:  []grpcgo.StreamDesc{},
	Metadata: "triage/v1/diagnosis",
}

// MaxMessageSize is the largest Diagnose request an image of maxImageBytes
// produces: base64 inside JSON plus room for the other fields.
func MaxMessageSize(maxImageBytes int64) int {
	return int(maxImageBytes*4/3) + 64<<10
}

// ServerOptions raises the receive limit so images up to maxImageBytes get
// through to the handler, where the size check proper happens.
func ServerOptions(maxImageBytes int64) []grpcgo.ServerOption {
	return []grpcgo.ServerOption{grpcgo.MaxRecvMsgSize(MaxMessageSize(maxImageBytes))}
}

func RegisterDiagnosisServiceServer(s grpcgo.ServiceRegistrar, srv DiagnosisServiceServer) {
	s.RegisterService(&DiagnosisServiceDesc, srv)
}

func diagnoseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcgo.UnaryServerInterceptor) (any, error) {
	in := new(DiagnoseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiagnosisServiceServer).Diagnose(ctx, in)
	}
	info := &grpcgo.UnaryServerInfo{Server: srv, FullMethod: diagnoseMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiagnosisServiceServer).Diagnose(ctx, req.(*DiagnoseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func analyzeSyndromeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcgo.UnaryServerInterceptor) (any, error) {
	in := new(domain.SyndromeForm)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiagnosisServiceServer).AnalyzeSyndrome(ctx, in)
	}
	info := &grpcgo.UnaryServerInfo{Server: srv, FullMethod: analyzeSyndromeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiagnosisServiceServer).AnalyzeSyndrome(ctx, req.(*domain.SyndromeForm))
	}
	return interceptor(ctx, in, info, handler)
}

type DiagnosisHandler struct {
	diagnosis     domain.DiagnosisUseCase
	syndrome      domain.SyndromeUseCase
	maxImageBytes int64
	log           *logrus.Logger
}

func NewDiagnosisHandler(diagnosis domain.DiagnosisUseCase, syndrome domain.SyndromeUseCase, maxImageBytes int64, logger *logrus.Logger) *DiagnosisHandler {
	return &DiagnosisHandler{
		diagnosis:     diagnosis,
		syndrome:      syndrome,
		maxImageBytes: maxImageBytes,
		log:           logger,
	}
}

func (h *DiagnosisHandler) Diagnose(ctx context.Context, req *DiagnoseRequest) (*domain.DiagnosisResult, error) {
	h.log.Infof("gRPC Handler: Received Diagnose request for %s (%d bytes)", req.Filename, len(req.Data))

	image, err := usecase.PrepareImage(req.Filename, req.Data, req.MimeType, h.maxImageBytes)
	if err != nil {
		h.log.Warnf("gRPC Handler: Diagnose rejected %s: %v", req.Filename, err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := h.diagnosis.Diagnose(ctx, image)
	if err != nil {
		st := StatusFromError(err)
		h.log.Errorf("gRPC Handler: Diagnose failed with %s: %v", st.Code(), err)
		return nil, st.Err()
	}
	result.UserID = req.UserID

	h.log.Infof("gRPC Handler: Diagnose successful for %s, disease %s", req.Filename, result.Disease)
	return result, nil
}

func (h *DiagnosisHandler) AnalyzeSyndrome(ctx context.Context, form *domain.SyndromeForm) (*domain.SyndromeReport, error) {
	h.log.Info("gRPC Handler: Received AnalyzeSyndrome request")

	report, err := h.syndrome.Analyze(*form)
	if err != nil {
		h.log.Warnf("gRPC Handler: AnalyzeSyndrome failed: %v", err)
		return nil, StatusFromError(err).Err()
	}
	return report, nil
}

// DiagnosisClient calls DiagnosisService over any connection; the JSON
// content-subtype is always requested.
type DiagnosisClient struct {
	cc grpcgo.ClientConnInterface
}

func NewDiagnosisClient(cc grpcgo.ClientConnInterface) *DiagnosisClient {
	return &DiagnosisClient{cc: cc}
}

func (c *DiagnosisClient) Diagnose(ctx context.Context, in *DiagnoseRequest, opts ...grpcgo.CallOption) (*domain.DiagnosisResult, error) {
	out := new(domain.DiagnosisResult)
	opts = append(opts, grpcgo.CallContentSubtype(JSONCodecName))
	if err := c.cc.Invoke(ctx, diagnoseMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DiagnosisClient) AnalyzeSyndrome(ctx context.Context, in *domain.SyndromeForm, opts ...grpcgo.CallOption) (*domain.SyndromeReport, error) {
	out := new(domain.SyndromeReport)
	opts = append(opts, grpcgo.CallContentSubtype(JSONCodecName))
	if err := c.cc.Invoke(ctx, analyzeSyndromeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
