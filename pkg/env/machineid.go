package env

import (
	"hash/fnv"

	"github.com/denisbrodbeck/machineid"
)

const appID = "trackside"

// NodeID derives a stable node name from the machine, without exposing
// the raw machine ID.
func NodeID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		panic(err)
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// SeedFor derives a non-zero backoff seed from a node ID, so nodes
// started together do not share their random sequence.
func SeedFor(nodeID string) uint16 {
	h := fnv.New32a()
	h.Write([]byte(nodeID))
	sum := h.Sum32()
	seed := uint16(sum) ^ uint16(sum>>16)
	if seed == 0 {
		seed = 1
	}
	return seed
}
