// Package grpc implements the gRPC transport for narrator.
//
// The server exposes the standard grpc.health.v1 service and a unary
// narrator.v1.Narrator/CreateAudiobook method. Audiobook messages are plain
// Go structs carried by a JSON codec, so clients call with the "json"
// content subtype and no generated stubs are needed.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/narrator/internal/chunk"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/transport"
	"github.com/nadzzz/narrator/internal/tts"
)

const (
	serviceName      = "narrator.v1.Narrator"
	createMethodPath = "/" + serviceName + "/CreateAudiobook"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals messages as JSON under the "json" content subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

// AudiobookRequest is the CreateAudiobook input.
type AudiobookRequest struct {
	FileName string `json:"file_name"`
	Document []byte `json:"document"`
	// Settings is a partial job.Settings object. Fields it names override
	// the configured defaults; absent fields keep them.
	Settings json.RawMessage `json:"settings,omitempty"`
}

// AudiobookResponse is the CreateAudiobook output.
type AudiobookResponse struct {
	RunID          string    `json:"run_id"`
	OutputFilename string    `json:"output_filename"`
	ContentType    string    `json:"content_type"`
	Audio          []byte    `json:"audio"`
	Stats          job.Stats `json:"stats"`
}

// narratorServer is the service implementation contract checked by
// grpc.Server.RegisterService.
type narratorServer interface {
	CreateAudiobook(ctx context.Context, req *AudiobookRequest) (*AudiobookResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*narratorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAudiobook", Handler: createAudiobookHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "narrator/v1/narrator",
}

func createAudiobookHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AudiobookRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(narratorServer).CreateAudiobook(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: createMethodPath}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(narratorServer).CreateAudiobook(ctx, req.(*AudiobookRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port      int
	maxMsg    int
	defaults  job.Settings
	catalogue tts.Catalogue
	server    *grpc.Server
	health    *health.Server
}

// New creates a new gRPC transport on the given port. maxMessageMB bounds
// request and response sizes; catalogue resolves accent names to domains.
func New(port, maxMessageMB int, defaults job.Settings, catalogue tts.Catalogue) *Transport {
	if maxMessageMB <= 0 {
		maxMessageMB = 64
	}
	return &Transport{port: port, maxMsg: maxMessageMB << 20, defaults: defaults, catalogue: catalogue}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, handler)
}

// Serve runs the server on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(t.maxMsg),
		grpc.MaxSendMsgSize(t.maxMsg),
	)
	t.server.RegisterService(&serviceDesc, &service{handler: handler, defaults: t.defaults, catalogue: t.catalogue})

	t.health = health.NewServer()
	healthpb.RegisterHealthServer(t.server, t.health)
	t.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(t.server)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.health != nil {
		t.health.Shutdown()
	}
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

type service struct {
	handler   transport.Handler
	defaults  job.Settings
	catalogue tts.Catalogue
}

// settings overlays the fields present in raw onto the configured defaults.
func (s *service) settings(raw json.RawMessage) (job.Settings, error) {
	set := s.defaults
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &set); err != nil {
			return set, err
		}
	}
	set.RewriteChunkSize = chunk.ClampSize(set.RewriteChunkSize, chunk.RewriteMaxSize)
	set.TLD = s.catalogue.AccentTLD(set.TLD)
	return set, nil
}

// CreateAudiobook runs one document through the pipeline and returns the audio inline.
func (s *service) CreateAudiobook(ctx context.Context, in *AudiobookRequest) (*AudiobookResponse, error) {
	if in.FileName == "" || len(in.Document) == 0 {
		return nil, status.Error(codes.InvalidArgument, "file_name and document are required")
	}
	settings, err := s.settings(in.Settings)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid settings: %v", err)
	}

	req := &job.Request{
		FileName:  in.FileName,
		Document:  in.Document,
		Settings:  settings,
		Timestamp: time.Now(),
	}
	st, err := s.handler(ctx, req)
	defer func() {
		if cerr := st.Cleanup(); cerr != nil {
			slog.Warn("temp file cleanup failed", "run_id", req.ID, "error", cerr)
		}
	}()
	if err != nil {
		eb := transport.NewErrorBody(err)
		return nil, status.Errorf(codeFor(eb.Kind), "%s: %s", eb.Stage, eb.Error)
	}

	audio, err := os.ReadFile(st.Artifact.Path)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "reading artifact: %v", err)
	}
	return &AudiobookResponse{
		RunID:          req.ID,
		OutputFilename: st.OutputFilename,
		ContentType:    st.Artifact.ContentType,
		Audio:          audio,
		Stats:          st.Stats,
	}, nil
}

// codeFor maps an error kind to a gRPC status code.
func codeFor(kind string) codes.Code {
	switch kind {
	case "validation", "unsupported_format":
		return codes.InvalidArgument
	case "credential":
		return codes.Unauthenticated
	case "extraction":
		return codes.FailedPrecondition
	case "rewrite", "synthesis":
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
