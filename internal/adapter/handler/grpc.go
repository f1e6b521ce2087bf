package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScoringServiceName is the fully qualified gRPC service name. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the REST API.
const ScoringServiceName = "dometrics.v1.Scoring"

const (
	computeScoresMethod = "/" + ScoringServiceName + "/ComputeScores"
	getLatestMethod     = "/" + ScoringServiceName + "/GetLatest"
)

// ScoringServer is implemented by GrpcServer and registered through ScoringServiceDesc.
type ScoringServer interface {
	// ComputeScores takes a DomainAttributes object plus an optional "mode" of
	// "sync" or "async" and answers with DomainScores.
	ComputeScores(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetLatest takes {"domain": "name.tld"} and answers with the newest ScoreSnapshot.
	GetLatest(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ScoringServiceDesc = grpc.ServiceDesc{
	ServiceName: ScoringServiceName,
	HandlerType: (*ScoringServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ComputeScores", Handler: computeScoresHandler},
		{MethodName: "GetLatest", Handler: getLatestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dometrics/v1/scoring.proto",
}

// RegisterScoringServer attaches srv to a grpc.Server.
func RegisterScoringServer(s grpc.ServiceRegistrar, srv ScoringServer) {
	s.RegisterService(&ScoringServiceDesc, srv)
}

func computeScoresHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScoringServer).ComputeScores(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: computeScoresMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScoringServer).ComputeScores(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getLatestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScoringServer).GetLatest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getLatestMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScoringServer).GetLatest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type GrpcServer struct {
	scorer ScoreEngine
	repo   ports.ScoreRepository
	log    zerolog.Logger
}

func NewGrpcServer(scorer ScoreEngine, repo ports.ScoreRepository, log zerolog.Logger) *GrpcServer {
	return &GrpcServer{
		scorer: scorer,
		repo:   repo,
		log:    log.With().Str("component", "grpc").Logger(),
	}
}

func (s *GrpcServer) ComputeScores(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()

	mode, _ := fields["mode"].(string)
	delete(fields, "mode")
	if mode != "" && mode != "sync" && mode != "async" {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported mode %q", mode)
	}

	var attrs domain.DomainAttributes
	if err := fromMap(fields, &attrs); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid domain attributes: %v", err)
	}
	if strings.TrimSpace(attrs.Name) == "" {
		return nil, status.Error(codes.InvalidArgument, "name cannot be empty")
	}

	var scores domain.DomainScores
	if mode == "sync" {
		scores = s.scorer.ComputeScoresSync(attrs)
	} else {
		scores = s.scorer.ComputeScores(ctx, attrs)
	}

	out, err := toStruct(scores)
	if err != nil {
		s.log.Error().Err(err).Str("domain", attrs.FQDN()).Msg("failed to encode scores")
		return nil, status.Error(codes.Internal, "failed to encode scores")
	}
	return out, nil
}

func (s *GrpcServer) GetLatest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unavailable, "snapshot storage not configured")
	}

	value := req.GetFields()["domain"].GetStringValue()
	name, tld, ok := parseFQDN(value)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "domain must be of the form name.tld")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	snapshot, err := s.repo.FindLatest(ctx, name, tld)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "no scores for %s.%s", name, tld)
		}
		s.log.Error().Err(err).Str("domain", name+"."+tld).Msg("failed to load latest snapshot")
		return nil, status.Error(codes.Internal, "failed to query snapshots")
	}

	out, err := toStruct(snapshot)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode snapshot")
	}
	return out, nil
}

// UnaryLoggingInterceptor logs one line per call with its status code and latency.
func UnaryLoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info().
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("rpc")
		return resp, err
	}
}

// ScoringClient is the client side of ScoringServiceDesc.
type ScoringClient struct {
	cc grpc.ClientConnInterface
}

func NewScoringClient(cc grpc.ClientConnInterface) *ScoringClient {
	return &ScoringClient{cc: cc}
}

// ComputeScores scores attrs remotely. mode is "sync", "async" or empty.
func (c *ScoringClient) ComputeScores(ctx context.Context, attrs domain.DomainAttributes, mode string, opts ...grpc.CallOption) (domain.DomainScores, error) {
	var scores domain.DomainScores

	in, err := toStruct(attrs)
	if err != nil {
		return scores, err
	}
	if mode != "" {
		in.Fields["mode"] = structpb.NewStringValue(mode)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, computeScoresMethod, in, out, opts...); err != nil {
		return scores, err
	}
	return scores, fromMap(out.AsMap(), &scores)
}

// GetLatest fetches the newest snapshot of fqdn.
func (c *ScoringClient) GetLatest(ctx context.Context, fqdn string, opts ...grpc.CallOption) (domain.ScoreSnapshot, error) {
	var snapshot domain.ScoreSnapshot

	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"domain": structpb.NewStringValue(fqdn),
	}}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getLatestMethod, in, out, opts...); err != nil {
		return snapshot, err
	}
	return snapshot, fromMap(out.AsMap(), &snapshot)
}

// toStruct converts v through its JSON form, so Struct payloads match the REST bodies.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return structpb.NewStruct(fields)
}

func fromMap(fields map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return json.Unmarshal(raw, v)
}
