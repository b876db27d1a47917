package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
	"github.com/appdevjohn/Social-Network-Backend/internal/auth"
	"github.com/appdevjohn/Social-Network-Backend/pkg/api"
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         auth.UserStorage
	conv          converter
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users auth.UserStorage, urlPrefix string, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		conv:          converter{urlPrefix: urlPrefix},
		logger:        logger,
	}
}

// NewAuthServiceHandler returns the mount path and handler of the service.
// Register and Login are public, so opts should carry OptionalAuth rather
// than RequireAuth.
func NewAuthServiceHandler(s *AuthService, opts ...connect.HandlerOption) (string, http.Handler) {
	o := handlerOptions(opts)
	mux := http.NewServeMux()
	handle(mux, api.AuthServiceRegisterProcedure, s.Register, o)
	handle(mux, api.AuthServiceLoginProcedure, s.Login, o)
	handle(mux, api.AuthServiceGetCurrentUserProcedure, s.GetCurrentUser, o)
	handle(mux, api.AuthServiceCanMessageUserProcedure, s.CanMessageUser, o)
	return "/" + api.AuthServiceName + "/", mux
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	s.logger.Info("Register request", "email", req.Msg.Email, "username", req.Msg.Username)

	user, err := s.authenticator.Register(ctx, auth.Registration{
		Username:  req.Msg.Username,
		Email:     req.Msg.Email,
		FirstName: req.Msg.FirstName,
		LastName:  req.Msg.LastName,
	}, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Registration failed", "email", req.Msg.Email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists), errors.Is(err, auth.ErrUsernameExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, toConnectError(s.logger, "Register", err)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "username", user.Username)
	return connect.NewResponse(&api.RegisterResponse{User: s.conv.user(user), Token: token}), nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	s.logger.Info("Login request", "email", req.Msg.Email)

	user, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Msg.Email, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID)
	return connect.NewResponse(&api.LoginResponse{User: s.conv.user(user), Token: token}), nil
}

// GetCurrentUser returns the authenticated user's profile.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, toConnectError(s.logger, "GetCurrentUser", err)
	}
	return connect.NewResponse(&api.GetCurrentUserResponse{User: s.conv.user(user)}), nil
}

// CanMessageUser reports whether a username resolves to an account that a
// conversation can be addressed to.
func (s *AuthService) CanMessageUser(ctx context.Context, req *connect.Request[api.CanMessageUserRequest]) (*connect.Response[api.CanMessageUserResponse], error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}

	_, err := s.users.GetUserByUsername(ctx, req.Msg.Username)
	if err != nil && !apperr.Is(err, apperr.NotFound) {
		return nil, toConnectError(s.logger, "CanMessageUser", err)
	}
	return connect.NewResponse(&api.CanMessageUserResponse{
		Username:   req.Msg.Username,
		CanMessage: err == nil,
	}), nil
}
