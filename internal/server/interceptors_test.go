package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const reflectionMethod = "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"

func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

// stubStream carries only a context.
type stubStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubStream) Context() context.Context { return s.ctx }

func authCtx(pairs ...string) context.Context {
	if len(pairs) == 0 {
		return context.Background()
	}
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

func TestAuthInterceptor(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		method string
		ctx    context.Context
		want   codes.Code
	}{
		{"disabled", "", reflectionMethod, authCtx(), codes.OK},
		{"health exempt", "secret", "/grpc.health.v1.Health/Check", authCtx(), codes.OK},
		{"missing metadata", "secret", reflectionMethod, authCtx(), codes.Unauthenticated},
		{"missing header", "secret", reflectionMethod, authCtx("other", "value"), codes.Unauthenticated},
		{"wrong token", "secret", reflectionMethod, authCtx("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"basic scheme", "secret", reflectionMethod, authCtx("authorization", "Basic secret"), codes.Unauthenticated},
		{"correct token", "secret", reflectionMethod, authCtx("authorization", "Bearer secret"), codes.OK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := AuthInterceptor(tc.token)(tc.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, stubHandler)
			if got := status.Code(err); got != tc.want {
				t.Fatalf("unary code = %v, want %v", got, tc.want)
			}
			if tc.want == codes.OK && resp != "ok" {
				t.Fatalf("expected 'ok', got %v", resp)
			}

			called := false
			err = StreamAuthInterceptor(tc.token)(nil, &stubStream{ctx: tc.ctx}, &grpc.StreamServerInfo{FullMethod: tc.method},
				func(any, grpc.ServerStream) error {
					called = true
					return nil
				})
			if got := status.Code(err); got != tc.want {
				t.Fatalf("stream code = %v, want %v", got, tc.want)
			}
			if called != (tc.want == codes.OK) {
				t.Fatalf("stream handler called = %v", called)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"no header", "secret", "", http.StatusUnauthorized},
		{"wrong token", "secret", "Bearer wrong", http.StatusUnauthorized},
		{"basic scheme", "secret", "Basic secret", http.StatusUnauthorized},
		{"correct token", "secret", "Bearer secret", http.StatusOK},
		{"disabled", "", "", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthMiddleware(tc.token, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodPost, "/v1/crawl", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d; body: %s", tc.want, rec.Code, rec.Body.String())
			}
			if tc.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("401 without WWW-Authenticate")
			}
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	_, err := RecoveryInterceptor(quietLogger())(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(context.Context, any) (any, error) { panic("boom") })
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}
