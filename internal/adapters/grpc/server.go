package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

const serviceName = "credential.v1.SessionInternalService"

// SessionInternalService is the internal RPC surface used by sibling services.
type SessionInternalService interface {
	ValidateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeactivateUserSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateCredentials(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// SessionBackend is the application surface behind SessionInternalServer.
type SessionBackend interface {
	GetSession(ctx context.Context, sessionID string) (application.SessionInfo, error)
	GetAccount(ctx context.Context, userID uuid.UUID) (application.UserInfo, error)
	DeactivateAllSessions(ctx context.Context, userID uuid.UUID) (int64, error)
	ValidateByEmail(ctx context.Context, email, password string) (uuid.UUID, error)
}

type SessionInternalServer struct {
	backend SessionBackend
}

func NewSessionInternalServer(backend SessionBackend) *SessionInternalServer {
	return &SessionInternalServer{backend: backend}
}

func Register(server grpc.ServiceRegistrar, svc SessionInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*SessionInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "ValidateSession", Handler: unaryHandler("ValidateSession", svc.ValidateSession)},
			{MethodName: "GetUser", Handler: unaryHandler("GetUser", svc.GetUser)},
			{MethodName: "DeactivateUserSessions", Handler: unaryHandler("DeactivateUserSessions", svc.DeactivateUserSessions)},
			{MethodName: "ValidateCredentials", Handler: unaryHandler("ValidateCredentials", svc.ValidateCredentials)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "credential/v1/session_internal.proto",
	}, svc)
}

// ValidateSession answers valid=false for unknown, inactive and expired sessions.
// Only malformed requests and store failures surface as RPC errors.
func (s *SessionInternalServer) ValidateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sessionID := stringField(req, "session_id")
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing session_id")
	}

	info, err := s.backend.GetSession(ctx, sessionID)
	if err != nil {
		if isInvalidSession(err) {
			return newStruct(map[string]any{"valid": false, "session_id": sessionID})
		}
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"valid":      true,
		"session_id": info.SessionID,
		"user_id":    info.UserID.String(),
		"expires_at": info.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *SessionInternalServer) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uuidField(req, "user_id")
	if err != nil {
		return nil, err
	}
	user, err := s.backend.GetAccount(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"user_id":     user.UserID.String(),
		"email":       user.Email,
		"name":        user.Name,
		"profile_url": user.ProfileURL,
	})
}

func (s *SessionInternalServer) DeactivateUserSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uuidField(req, "user_id")
	if err != nil {
		return nil, err
	}
	n, err := s.backend.DeactivateAllSessions(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"deactivated_count": n})
}

func (s *SessionInternalServer) ValidateCredentials(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email := stringField(req, "email")
	password := stringField(req, "password")
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	userID, err := s.backend.ValidateByEmail(ctx, email, password)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"user_id": userID.String()})
}

func isInvalidSession(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrSessionInactive) ||
		errors.Is(err, domain.ErrSessionExpired)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInfrastructure):
		return status.Error(codes.Unavailable, "internal server error")
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrSessionInactive),
		errors.Is(err, domain.ErrSessionExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrAccountLocked):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrTokenConsumed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func stringField(req *structpb.Struct, key string) string {
	v := req.GetFields()[key]
	if v == nil {
		return ""
	}
	return v.GetStringValue()
}

func uuidField(req *structpb.Struct, key string) (uuid.UUID, error) {
	raw := stringField(req, key)
	if raw == "" {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "missing %s", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s", key)
	}
	return id, nil
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

type unaryMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a struct-in/struct-out method to grpc.MethodDesc, honouring interceptors.
func unaryHandler(method string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
