package clock

import "fmt"

// Dot identifies a single event: the Counter-th event originated at ReplicaID.
// A dot is a snapshot; it does not follow later changes to the vector it was
// taken from. Dot{ReplicaID: r} (counter 0) means no event observed yet.
type Dot struct {
	ReplicaID string
	Counter   int64
}

// NewDot creates a dot for the given replica and counter.
func NewDot(replicaID string, counter int64) Dot {
	return Dot{ReplicaID: replicaID, Counter: counter}
}

// DescendsVector reports whether the dot is at least as advanced, for its own
// replica, as what vv has recorded.
func (d Dot) DescendsVector(vv VersionVector) bool {
	return d.Counter >= vv.Get(d.ReplicaID)
}

// Descends reports whether d descends other. Dots from different replicas are
// never comparable and always return false.
func (d Dot) Descends(other Dot) bool {
	return d.ReplicaID == other.ReplicaID && d.Counter >= other.Counter
}

// String returns "replica:counter".
func (d Dot) String() string {
	return fmt.Sprintf("%s:%d", d.ReplicaID, d.Counter)
}

// Vector returns the smallest vector that has observed d. A zero dot yields
// an empty vector.
func (d Dot) Vector() VersionVector {
	if d.Counter <= 0 {
		return VersionVector{}
	}
	return VersionVector{counters: map[string]int64{d.ReplicaID: d.Counter}}
}
