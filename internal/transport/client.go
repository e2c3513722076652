package transport

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"dotclock/internal/codec"
)

// Client is the client API for the dotclock.Clock service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Sync sends our clock and returns the peer's merged clock and key list.
func (c *Client) Sync(ctx context.Context, req *codec.SyncRequest) (*codec.SyncReply, error) {
	out := new(codec.SyncReply)
	if err := c.conn.Invoke(ctx, SyncMethod, req, out, grpc.CallContentSubtype(codec.Name)); err != nil {
		return nil, err
	}
	return out, nil
}

// Seen asks the peer whether it has observed a dot.
func (c *Client) Seen(ctx context.Context, req *codec.SeenRequest) (*codec.SeenReply, error) {
	out := new(codec.SeenReply)
	if err := c.conn.Invoke(ctx, SeenMethod, req, out, grpc.CallContentSubtype(codec.Name)); err != nil {
		return nil, err
	}
	return out, nil
}

// Put writes a value on the peer.
func (c *Client) Put(ctx context.Context, req *codec.PutRequest) (*codec.PutReply, error) {
	out := new(codec.PutReply)
	if err := c.conn.Invoke(ctx, PutMethod, req, out, grpc.CallContentSubtype(codec.Name)); err != nil {
		return nil, err
	}
	return out, nil
}

// Get reads a key from the peer.
func (c *Client) Get(ctx context.Context, req *codec.GetRequest) (*codec.GetReply, error) {
	out := new(codec.GetReply)
	if err := c.conn.Invoke(ctx, GetMethod, req, out, grpc.CallContentSubtype(codec.Name)); err != nil {
		return nil, err
	}
	return out, nil
}

// ClientManager manages gRPC clients to peer nodes.
type ClientManager struct {
	mu      sync.RWMutex
	conns   map[string]*grpc.ClientConn
	clients map[string]*Client
	opts    []grpc.DialOption
}

// NewClientManager creates a new client manager. Extra dial options are
// appended to the defaults (insecure transport credentials).
func NewClientManager(opts ...grpc.DialOption) *ClientManager {
	return &ClientManager{
		conns:   make(map[string]*grpc.ClientConn),
		clients: make(map[string]*Client),
		opts:    opts,
	}
}

// GetClient returns a client for the given node address.
// Creates a new connection if one doesn't exist; connections are lazy, so
// an unreachable peer only fails on first use.
func (cm *ClientManager) GetClient(addr string) (*Client, error) {
	cm.mu.RLock()
	client, exists := cm.clients[addr]
	cm.mu.RUnlock()

	if exists {
		return client, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := cm.clients[addr]; exists {
		return client, nil
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, cm.opts...)

	conn, err := grpc.NewClient("passthrough:///"+addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}

	client = NewClient(conn)
	cm.conns[addr] = conn
	cm.clients[addr] = client
	return client, nil
}

// Close closes all connections.
func (cm *ClientManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var firstErr error
	for addr, conn := range cm.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", addr, err)
		}
	}
	cm.conns = make(map[string]*grpc.ClientConn)
	cm.clients = make(map[string]*Client)
	return firstErr
}
