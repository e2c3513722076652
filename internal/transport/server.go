package transport

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dotclock/internal/codec"
	"dotclock/internal/replica"
	"dotclock/internal/storage"
)

// Server implements ClockServer on top of a node clock and a sibling store.
type Server struct {
	clock  *replica.Clock
	store  storage.Store
	logger *zap.Logger
}

var _ ClockServer = (*Server)(nil)

// NewServer creates a new gRPC server instance.
func NewServer(c *replica.Clock, store storage.Store, logger *zap.Logger) *Server {
	return &Server{
		clock:  c,
		store:  store,
		logger: logger,
	}
}

// Sync handles anti-entropy requests.
func (s *Server) Sync(ctx context.Context, req *codec.SyncRequest) (*codec.SyncReply, error) {
	if req.From == "" {
		return nil, status.Error(codes.InvalidArgument, "sender id cannot be empty")
	}

	merged, rel := s.clock.Observe(req.Clock)
	s.logger.Debug("Sync request",
		zap.String("from", req.From),
		zap.Stringer("remote", req.Clock),
		zap.Stringer("relation", rel))

	return &codec.SyncReply{
		From:  s.clock.ID(),
		Clock: merged,
		Keys:  s.store.Keys(),
	}, nil
}

// Seen handles dot membership queries. Any replica ID is accepted, the empty
// one included, as Sync accepts it in clocks.
func (s *Server) Seen(ctx context.Context, req *codec.SeenRequest) (*codec.SeenReply, error) {
	snapshot := s.clock.Snapshot()
	return &codec.SeenReply{
		Seen:  snapshot.DescendsDot(req.Dot),
		Clock: snapshot,
	}, nil
}

// Put handles write requests. Every accepted write is one event on the node
// clock, and the returned dot is that event.
func (s *Server) Put(ctx context.Context, req *codec.PutRequest) (*codec.PutReply, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "key cannot be empty")
	}

	// The client context is remote knowledge; observing it first keeps the
	// new dot ahead of anything the context already covers.
	if req.Context.Len() > 0 {
		s.clock.Observe(req.Context)
	}
	dot, keyContext := s.store.Put(req.Key, req.Value, req.Context, req.Deleted)

	s.logger.Debug("Put request",
		zap.String("key", req.Key),
		zap.Bool("deleted", req.Deleted),
		zap.Stringer("dot", dot))

	return &codec.PutReply{Dot: dot, Context: keyContext}, nil
}

// Get handles read requests. A missing key is not an error.
func (s *Server) Get(ctx context.Context, req *codec.GetRequest) (*codec.GetReply, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "key cannot be empty")
	}

	v := s.store.Get(req.Key)
	if v == nil {
		return &codec.GetReply{Found: false}, nil
	}

	siblings := make([]codec.Sibling, len(v.Siblings))
	for i, sib := range v.Siblings {
		siblings[i] = codec.Sibling{Dot: sib.Dot, Value: sib.Value, Deleted: sib.Deleted}
	}
	return &codec.GetReply{
		Found:    true,
		Context:  v.Context,
		Siblings: siblings,
	}, nil
}
