package server

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/game/rules"
)

// GameServiceName is the gRPC service name. Requests and responses are
// google.protobuf.Struct messages carrying the JSON shapes of the HTTP API.
const GameServiceName = "commander.v1.GameService"

// GameServiceServer is the handler type of the game service.
type GameServiceServer interface {
	CreateGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SubmitAction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetDecision(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExportGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListGames(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(req *structpb.Struct, stream grpc.ServerStream) error
}

// GameService drives the manager over gRPC.
type GameService struct {
	manager  *game.Manager
	hub      *Hub
	settings game.Settings
	logger   *zap.Logger
}

func NewGameService(manager *game.Manager, hub *Hub, settings game.Settings, logger *zap.Logger) *GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameService{manager: manager, hub: hub, settings: settings, logger: logger}
}

type gameRequest struct {
	GameID   string         `json:"game_id"`
	Setup    *game.Setup    `json:"setup,omitempty"`
	Settings *game.Settings `json:"settings,omitempty"`
	Action   *game.Action   `json:"action,omitempty"`
	Since    uint64         `json:"since,omitempty"`
}

func (s *GameService) CreateGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	if in.Setup == nil {
		return nil, status.Error(codes.InvalidArgument, "setup is required")
	}
	settings := s.settings
	if in.Settings != nil {
		settings = *in.Settings
	}
	id, d, err := s.manager.Create(ctx, *in.Setup, settings)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return encodeResponse(CreateGameResponse{GameID: id, Decision: d})
}

func (s *GameService) SubmitAction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	if in.Action == nil {
		return nil, status.Error(codes.InvalidArgument, "action is required")
	}
	d, err := s.manager.Submit(ctx, in.GameID, *in.Action)
	if !game.Accepted(err) {
		return nil, toStatus(err)
	}
	resp := SubmitResponse{Decision: d}
	if err != nil {
		resp.Warning = err.Error()
	}
	return encodeResponse(resp)
}

func (s *GameService) GetDecision(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	d, err := s.manager.Decision(in.GameID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeResponse(map[string]any{"decision": d})
}

func (s *GameService) ExportGame(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.manager.Export(in.GameID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeResponse(map[string]any{"state": snapshot})
}

func (s *GameService) ListGames(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return encodeResponse(map[string]any{"games": s.manager.List()})
}

// WatchEvents sends the events after since, then follows the game live
// until the client goes away.
func (s *GameService) WatchEvents(req *structpb.Struct, stream grpc.ServerStream) error {
	in, err := decodeRequest(req)
	if err != nil {
		return err
	}
	sub := s.hub.Subscribe(in.GameID)
	if sub == nil {
		return status.Error(codes.Unavailable, "event hub stopped")
	}
	defer s.hub.Unsubscribe(sub)

	backlog, err := s.manager.Events(in.GameID, in.Since)
	if err != nil {
		return toStatus(err)
	}
	var last uint64
	for _, ev := range backlog {
		if err := sendEvent(stream, in.GameID, ev); err != nil {
			return err
		}
		last = ev.Seq
	}

	// Live events already covered by the backlog are skipped once.
	catchingUp := last > 0
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if catchingUp && ev.Seq <= last {
				continue
			}
			catchingUp = false
			if err := sendEvent(stream, in.GameID, ev); err != nil {
				return err
			}
		}
	}
}

func sendEvent(stream grpc.ServerStream, gameID string, ev rules.Event) error {
	msg, err := eventStruct(gameID, ev)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(msg)
}

func decodeRequest(req *structpb.Struct) (gameRequest, error) {
	var in gameRequest
	data, err := protojson.Marshal(req)
	if err != nil {
		return in, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return in, nil
}

func encodeResponse(v any) (*structpb.Struct, error) {
	var fields map[string]any
	if err := toMap(v, &fields); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	_, code := errorCode(err)
	return status.Error(code, err.Error())
}

func unaryMethod(name string, call func(GameServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := methodPath(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GameServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(GameServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var gameServiceDesc = grpc.ServiceDesc{
	ServiceName: GameServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateGame", GameServiceServer.CreateGame),
		unaryMethod("SubmitAction", GameServiceServer.SubmitAction),
		unaryMethod("GetDecision", GameServiceServer.GetDecision),
		unaryMethod("ExportGame", GameServiceServer.ExportGame),
		unaryMethod("ListGames", GameServiceServer.ListGames),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "WatchEvents",
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(GameServiceServer).WatchEvents(in, stream)
			},
			ServerStreams: true,
		},
	},
	Metadata: "commander/v1/game.proto",
}

// RegisterGameService registers the game service on srv.
func RegisterGameService(srv grpc.ServiceRegistrar, svc GameServiceServer) {
	srv.RegisterService(&gameServiceDesc, svc)
}

// methodPath returns the full gRPC path of a game service method.
func methodPath(name string) string {
	return "/" + GameServiceName + "/" + name
}
