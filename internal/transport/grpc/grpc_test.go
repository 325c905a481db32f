package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/pipeline"
	"github.com/nadzzz/narrator/internal/transport"
	"github.com/nadzzz/narrator/internal/tts"
)

// testDefaults mirrors a configured daemon.
var testDefaults = job.Settings{
	Engine:           "gtts",
	Style:            "storytelling",
	Creativity:       0.7,
	RewriteChunkSize: 4000,
	Language:         "en",
	TLD:              "com",
	Rate:             150,
	Volume:           1.0,
	Gender:           "female",
}

func startServer(t *testing.T, handler transport.Handler) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	tr := New(0, 4, testDefaults, tts.DefaultCatalogue())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Serve(ctx, lis, handler)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return conn
}

func TestCreateAudiobook(t *testing.T) {
	var got *job.Request
	conn := startServer(t, func(_ context.Context, req *job.Request) (*pipeline.State, error) {
		got = req
		req.ID = "run-7"
		path := filepath.Join(t.TempDir(), "out.wav")
		if err := os.WriteFile(path, []byte("RIFFwav"), 0o600); err != nil {
			return &pipeline.State{Request: req}, err
		}
		return &pipeline.State{
			Request:        req,
			Artifact:       tts.NewArtifact(path, tts.EngineOffline),
			OutputFilename: "notes_audiobook_20260301_120000.wav",
			Stats:          job.Stats{WordCount: 3},
			TempFiles:      []string{path},
		}, nil
	})

	in := &AudiobookRequest{FileName: "notes.txt", Document: []byte("Some notes here.")}
	var out AudiobookResponse
	err := conn.Invoke(context.Background(), createMethodPath, in, &out, grpc.CallContentSubtype("json"))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if string(out.Audio) != "RIFFwav" || out.ContentType != "audio/wav" || out.RunID != "run-7" {
		t.Fatalf("unexpected response %+v", out)
	}
	if got.Settings.Engine != "gtts" || string(got.Document) != "Some notes here." {
		t.Fatalf("expected defaults applied, got %+v", got)
	}
}

func TestCreateAudiobookOverlaysPartialSettings(t *testing.T) {
	var got job.Settings
	conn := startServer(t, func(_ context.Context, req *job.Request) (*pipeline.State, error) {
		got = req.Settings
		return &pipeline.State{Request: req}, errors.New("stop after capture")
	})

	in := &AudiobookRequest{
		FileName: "notes.txt",
		Document: []byte("Some notes here."),
		Settings: json.RawMessage(`{"engine":"pyttsx3","tld":"UK English","rewrite_chunk_size":50}`),
	}
	_ = conn.Invoke(context.Background(), createMethodPath, in, &AudiobookResponse{}, grpc.CallContentSubtype("json"))

	if got.Engine != "pyttsx3" {
		t.Fatalf("expected engine override, got %q", got.Engine)
	}
	if got.Volume != 1.0 || got.Rate != 150 || got.Gender != "female" {
		t.Fatalf("expected offline defaults kept, got %+v", got)
	}
	if got.Creativity != 0.7 || got.Style != "storytelling" {
		t.Fatalf("expected rewrite defaults kept, got %+v", got)
	}
	if got.TLD != "co.uk" {
		t.Fatalf("expected accent name resolved to co.uk, got %q", got.TLD)
	}
	if got.RewriteChunkSize != 1000 {
		t.Fatalf("expected chunk size clamped to 1000, got %d", got.RewriteChunkSize)
	}
}

func TestCreateAudiobookRejectsMalformedSettings(t *testing.T) {
	called := false
	conn := startServer(t, func(_ context.Context, req *job.Request) (*pipeline.State, error) {
		called = true
		return &pipeline.State{Request: req}, nil
	})

	in := &AudiobookRequest{FileName: "a.txt", Document: []byte("text"), Settings: json.RawMessage(`{"volume":"loud"}`)}
	err := conn.Invoke(context.Background(), createMethodPath, in, &AudiobookResponse{}, grpc.CallContentSubtype("json"))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if called {
		t.Fatal("pipeline should not run with malformed settings")
	}
}

func TestCreateAudiobookMapsErrors(t *testing.T) {
	conn := startServer(t, func(_ context.Context, req *job.Request) (*pipeline.State, error) {
		return &pipeline.State{Request: req}, &pipeline.StageError{
			Stage: pipeline.StageRewritten,
			Err:   fmt.Errorf("%w: OpenAI API key required", job.ErrCredential),
		}
	})

	in := &AudiobookRequest{FileName: "a.txt", Document: []byte("text"), Settings: json.RawMessage(`{"engine":"gtts","rewrite":true}`)}
	err := conn.Invoke(context.Background(), createMethodPath, in, &AudiobookResponse{}, grpc.CallContentSubtype("json"))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	err = conn.Invoke(context.Background(), createMethodPath, &AudiobookRequest{}, &AudiobookResponse{}, grpc.CallContentSubtype("json"))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for empty request, got %v", err)
	}
}

func TestHealthService(t *testing.T) {
	conn := startServer(t, func(context.Context, *job.Request) (*pipeline.State, error) {
		return &pipeline.State{}, errors.New("unused")
	})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestCodeFor(t *testing.T) {
	cases := map[string]codes.Code{
		"validation":         codes.InvalidArgument,
		"unsupported_format": codes.InvalidArgument,
		"extraction":         codes.FailedPrecondition,
		"synthesis":          codes.Unavailable,
		"internal":           codes.Internal,
	}
	for kind, want := range cases {
		if got := codeFor(kind); got != want {
			t.Errorf("codeFor(%q) = %v, want %v", kind, got, want)
		}
	}
}
