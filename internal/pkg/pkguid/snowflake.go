package pkguid

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates numeric IDs using the Snowflake algorithm.
type Snowflake struct {
	node *snowflake.Node
}

func generateRandomNodeID() (int64, error) {
	var nodeID int64
	err := binary.Read(rand.Reader, binary.BigEndian, &nodeID)
	if err != nil {
		return 0, err
	}

	return nodeID & (1<<10 - 1), nil // Limiting to 10 bits for node ID
}

// NewSnowflake constructs a Snowflake generator with a random node ID.
func NewSnowflake() (*Snowflake, error) {
	nodeID, err := generateRandomNodeID()
	if err != nil {
		return nil, err
	}

	snowflake.Epoch = 1764522000000 // Mon Dec 01 2025 00:00:00.000 WIB

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

// Generate returns a new unique numeric ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

// SnowflakeString adapts Snowflake to StringID. The IDs sort by creation
// time, which is what job IDs derived from the submission timestamp need.
type SnowflakeString struct {
	node *snowflake.Node
}

// NewSnowflakeString constructs a StringID generator backed by Snowflake.
func NewSnowflakeString() (*SnowflakeString, error) {
	s, err := NewSnowflake()
	if err != nil {
		return nil, err
	}

	return &SnowflakeString{node: s.node}, nil
}

// Generate returns a new unique decimal ID.
func (s *SnowflakeString) Generate() string {
	return s.node.Generate().String()
}

// IssuedAt extracts the submission time encoded in an ID produced by
// SnowflakeString. ok is false when id is not a snowflake.
func IssuedAt(id string) (time.Time, bool) {
	sid, err := snowflake.ParseString(id)
	if err != nil {
		return time.Time{}, false
	}

	return time.UnixMilli(sid.Time()), true
}
