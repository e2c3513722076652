package quorum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPerPeerTimeout is the default timeout for each peer RPC.
	DefaultPerPeerTimeout = 2 * time.Second
)

var (
	// ErrNoPeers is returned when a fan-out has nobody to talk to.
	ErrNoPeers = errors.New("quorum: no peers provided")
	// ErrInvalidQuorum is returned when more responses are required than
	// there are peers.
	ErrInvalidQuorum = errors.New("quorum: required count exceeds peer count")
	// ErrQuorumNotMet is returned when too few peers responded.
	ErrQuorumNotMet = errors.New("quorum: not met")
)

// PushResult represents the result of a quorum push.
type PushResult struct {
	Success  bool
	Acks     int
	Required int
	Peers    int
	Err      error
}

// PullResult represents the result of a quorum pull.
type PullResult[T any] struct {
	Success   bool
	Responses int
	Required  int
	Peers     int
	// Values maps peer to the value it returned. Failed peers are absent.
	Values map[string]T
	Err    error
}

// SendFunc performs a call to a single peer that returns nothing.
type SendFunc func(ctx context.Context, peer string) error

// FetchFunc performs a call to a single peer and returns its answer.
type FetchFunc[T any] func(ctx context.Context, peer string) (T, error)

// Push sends to all peers in parallel and succeeds when required acks are
// received.
func Push(ctx context.Context, peers []string, required int, timeout time.Duration, send SendFunc) PushResult {
	result := Pull(ctx, peers, required, timeout, func(ctx context.Context, peer string) (struct{}, error) {
		return struct{}{}, send(ctx, peer)
	})
	return PushResult{
		Success:  result.Success,
		Acks:     result.Responses,
		Required: result.Required,
		Peers:    result.Peers,
		Err:      result.Err,
	}
}

// Pull fans fetch out to all peers in parallel and succeeds when required
// responses are received. Required <= 0 means a majority. Every peer gets its
// own timeout and Pull waits for all of them.
func Pull[T any](ctx context.Context, peers []string, required int, timeout time.Duration, fetch FetchFunc[T]) PullResult[T] {
	if len(peers) == 0 {
		return PullResult[T]{Err: ErrNoPeers}
	}

	if required <= 0 {
		required = (len(peers) / 2) + 1 // default: majority
	}

	if required > len(peers) {
		return PullResult[T]{
			Required: required,
			Peers:    len(peers),
			Err:      fmt.Errorf("%w: required=%d peers=%d", ErrInvalidQuorum, required, len(peers)),
		}
	}

	if timeout <= 0 {
		timeout = DefaultPerPeerTimeout
	}

	var (
		mu     sync.Mutex
		values = make(map[string]T, len(peers))
		errs   []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			peerCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			value, err := fetch(peerCtx, peer)
			mu.Lock()
			defer mu.Unlock()

			// A failed peer is recorded, not returned: returning it would
			// cancel the peers still in flight.
			if err != nil {
				errs = append(errs, fmt.Errorf("peer %s: %w", peer, err))
				return nil
			}
			values[peer] = value
			return nil
		})
	}
	_ = g.Wait()

	result := PullResult[T]{
		Responses: len(values),
		Required:  required,
		Peers:     len(peers),
		Values:    values,
	}
	if err := ctx.Err(); err != nil && len(values) < required {
		result.Err = fmt.Errorf("context cancelled: %w", err)
		return result
	}
	if len(values) >= required {
		result.Success = true
		return result
	}

	result.Err = fmt.Errorf("%w: responses=%d required=%d peers=%d", ErrQuorumNotMet, len(values), required, len(peers))
	if len(errs) > 0 {
		result.Err = errors.Join(result.Err, errors.Join(errs[:min(3, len(errs))]...))
	}
	return result
}
