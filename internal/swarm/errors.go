package swarm

import "errors"

var (
	// ErrAlreadyJoined is returned by Join when the node is already a
	// swarm member.
	ErrAlreadyJoined = errors.New("swarm: already joined")

	// ErrNotJoined is returned by operations that require swarm membership.
	ErrNotJoined = errors.New("swarm: not joined")

	// ErrSwarmFull is returned when connecting would exceed the configured
	// peer limit.
	ErrSwarmFull = errors.New("swarm: peer limit reached")

	// ErrSelfConnect is returned when a node attempts to connect to itself.
	ErrSelfConnect = errors.New("swarm: cannot connect to self")
)
