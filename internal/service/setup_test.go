package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/appdevjohn/Social-Network-Backend/internal/attachments"
	"github.com/appdevjohn/Social-Network-Backend/internal/auth"
	"github.com/appdevjohn/Social-Network-Backend/internal/groups"
	"github.com/appdevjohn/Social-Network-Backend/internal/messaging"
	"github.com/appdevjohn/Social-Network-Backend/internal/middleware"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/internal/storage/sqlite"
	"github.com/appdevjohn/Social-Network-Backend/internal/tasks"
)

const testURLPrefix = "/uploads/"

type testServer struct {
	url     string
	store   *sqlite.SQLiteStore
	jwt     *auth.JWTManager
	authn   *auth.PasswordAuthenticator
	uploads *attachments.DiskStore
}

// setupTestServer serves every RPC service plus the upload endpoints over a
// fresh database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	disk, err := attachments.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create disk store: %v", err)
	}

	runner := tasks.NewRunner(4, time.Second, nil)
	t.Cleanup(runner.Close)

	logger := slog.New(slog.DiscardHandler)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authn := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	releaser := attachments.NewReleaser(runner, disk)

	groupSvc := groups.NewService(store, releaser, logger)
	msgSvc := messaging.NewService(store, runner, messaging.WithReleaser(releaser), messaging.WithLogger(logger))

	authed := connect.WithInterceptors(middleware.RequireAuth(jwtManager), ValidationInterceptor())
	optional := connect.WithInterceptors(middleware.OptionalAuth(jwtManager), ValidationInterceptor())

	mux := http.NewServeMux()
	mux.Handle(NewAuthServiceHandler(NewAuthService(authn, jwtManager, store, testURLPrefix, logger), optional))
	mux.Handle(NewGroupServiceHandler(NewGroupService(groupSvc, testURLPrefix, logger), authed))
	mux.Handle(NewMessageServiceHandler(NewMessageService(msgSvc, groupSvc, testURLPrefix, logger), authed))

	uploadHandler := NewUploadHandler(disk, store, jwtManager, 1<<20, testURLPrefix, logger)
	mux.HandleFunc("POST /upload", uploadHandler.Upload)
	mux.HandleFunc("GET /uploads/{ref}", uploadHandler.Serve)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{url: server.URL, store: store, jwt: jwtManager, authn: authn, uploads: disk}
}

// register creates an account and returns it with a valid token.
func (ts *testServer) register(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	user, err := ts.authn.Register(context.Background(), auth.Registration{
		Username: username,
		Email:    username + "@example.com",
	}, "password123")
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	token, err := ts.jwt.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return user, token
}

// call invokes procedure as the holder of token; an empty token sends no
// Authorization header.
func call[Res, Req any](t *testing.T, ts *testServer, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](http.DefaultClient, ts.url+procedure, ClientOptions()...)
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Fatalf("expected code %v, got %v (%v)", code, got, err)
	}
}
