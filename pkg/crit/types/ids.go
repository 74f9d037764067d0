package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ServerID names a single table-server actor, unique within the process
// that owns it. Two servers in the same segment refer to each other by
// ServerID in their peer sets.
type ServerID string

// Token identifies a single pending write from the caller's point of
// view. The ack aggregator tracks remaining peers per Token.
type Token string

// Alias is an ephemeral, recipient-owned destination address used to
// route replication traffic to a specific server at a specific point
// in segment time. See spec.md §4.3.3.
type Alias string

// JoinRef is the opaque identity of the most recent successful join
// within a segment. Every member of a segment shares one value.
type JoinRef string

// generateUID returns a random lowercase hex identifier. Grounded on
// the teacher's pkg/mcast/helper.GenerateUID, whose source was not
// retrieved with the pack but whose call sites (test/testing.go,
// core/peer.go) fix its shape: a short, printable, collision-free
// token minted with no external input.
func generateUID() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crit: failed generating random id: %v", err))
	}
	return hex.EncodeToString(buf)
}

// NewToken mints a fresh pending-write token.
func NewToken() Token { return Token(generateUID()) }

// NewAlias mints a fresh destination alias.
func NewAlias() Alias { return Alias(generateUID()) }

// NewJoinRef mints a fresh join reference.
func NewJoinRef() JoinRef { return JoinRef(generateUID()) }

// NewServerID mints a server identity for a given logical name, keeping
// the name as a readable prefix the way the teacher composes
// "<name>-<uid>" partition identities in test/testing.go.
func NewServerID(name string) ServerID {
	return ServerID(fmt.Sprintf("%s-%s", name, generateUID()))
}
