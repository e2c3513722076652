package quorum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func peerNames(n int) []string {
	peers := make([]string, n)
	for i := 0; i < n; i++ {
		peers[i] = "peer" + string(rune('0'+i))
	}
	return peers
}

func indexOf(peers []string, peer string) int {
	for i, p := range peers {
		if p == peer {
			return i
		}
	}
	return -1
}

// TestQuorum_PushSuccessIffAcksGEQRequired tests that a push succeeds iff acks >= required
func TestQuorum_PushSuccessIffAcksGEQRequired(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		required      int
		successAcks   int
		shouldSucceed bool
	}{
		{"W=2, 2 acks, should succeed", 3, 2, 2, true},
		{"W=2, 1 ack, should fail", 3, 2, 1, false},
		{"W=2, 3 acks, should succeed", 3, 2, 3, true},
		{"W=3, 2 acks, should fail", 3, 3, 2, false},
		{"W=3, 3 acks, should succeed", 3, 3, 3, true},
		{"W=1, 1 ack, should succeed", 3, 1, 1, true},
		{"majority of 5, 3 acks, should succeed", 5, 0, 3, true},
		{"majority of 5, 2 acks, should fail", 5, 0, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peers := peerNames(tt.total)

			send := func(ctx context.Context, peer string) error {
				if indexOf(peers, peer) < tt.successAcks {
					return nil
				}
				return errors.New("simulated failure")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			result := Push(ctx, peers, tt.required, 0, send)

			if result.Success != tt.shouldSucceed {
				t.Errorf("Expected success=%v, got %v (acks=%d, required=%d)",
					tt.shouldSucceed, result.Success, tt.successAcks, tt.required)
			}
			if result.Acks != tt.successAcks {
				t.Errorf("Expected %d acks, got %d", tt.successAcks, result.Acks)
			}
		})
	}
}

// TestQuorum_PullSuccessIffResponsesGEQRequired tests that a pull succeeds iff responses >= required
func TestQuorum_PullSuccessIffResponsesGEQRequired(t *testing.T) {
	tests := []struct {
		name             string
		total            int
		required         int
		successResponses int
		shouldSucceed    bool
	}{
		{"R=2, 2 responses, should succeed", 3, 2, 2, true},
		{"R=2, 1 response, should fail", 3, 2, 1, false},
		{"R=3, 2 responses, should fail", 3, 3, 2, false},
		{"R=3, 3 responses, should succeed", 3, 3, 3, true},
		{"R=1, 1 response, should succeed", 3, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peers := peerNames(tt.total)

			fetch := func(ctx context.Context, peer string) (int, error) {
				idx := indexOf(peers, peer)
				if idx < tt.successResponses {
					return idx, nil
				}
				return 0, errors.New("simulated failure")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			result := Pull(ctx, peers, tt.required, 0, fetch)

			if result.Success != tt.shouldSucceed {
				t.Errorf("Expected success=%v, got %v (responses=%d, R=%d)",
					tt.shouldSucceed, result.Success, tt.successResponses, tt.required)
			}
			if len(result.Values) != tt.successResponses {
				t.Errorf("Expected %d values, got %d", tt.successResponses, len(result.Values))
			}
		})
	}
}

// TestQuorum_CallsEveryPeer tests that every peer is contacted exactly once
func TestQuorum_CallsEveryPeer(t *testing.T) {
	peers := peerNames(5)

	var mu sync.Mutex
	calls := make(map[string]int)
	send := func(ctx context.Context, peer string) error {
		mu.Lock()
		calls[peer]++
		mu.Unlock()
		return nil
	}

	result := Push(context.Background(), peers, 3, 0, send)

	if !result.Success {
		t.Error("Expected success")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, p := range peers {
		if calls[p] != 1 {
			t.Errorf("Expected 1 call to %s, got %d", p, calls[p])
		}
	}
}

// TestQuorum_AllFailures tests that all failures result in failure
func TestQuorum_AllFailures(t *testing.T) {
	peers := peerNames(3)

	send := func(ctx context.Context, peer string) error {
		return errors.New("all peers failed")
	}

	result := Push(context.Background(), peers, 2, 0, send)

	if result.Success {
		t.Error("Expected failure when all peers fail")
	}
	if !errors.Is(result.Err, ErrQuorumNotMet) {
		t.Errorf("Expected ErrQuorumNotMet, got %v", result.Err)
	}
}
