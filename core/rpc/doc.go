// Package rpc abstracts the channel the SDK uses to talk to the runtime.
//
// A [Channel] offers two call shapes:
//
//   - Call: one request, one response (commits, subscriptions).
//   - Connect: a bidirectional [Stream] of frames (event handler reverse calls).
//
// Frames are opaque bytes. The typed helpers [Unary], [Send], [Recv],
// [HandleUnary] and [HandleStream] encode the messages of the contracts
// package as JSON on top of that.
//
// The runtime side registers handlers on a [Mux]. [MemoryChannel] connects a
// client directly to a Mux in-process; adapters/nats and adapters/grpc carry
// the same frames over the network.
//
// Every blocking operation honors its context. A canceled call returns an
// error matching context.Canceled (or context.DeadlineExceeded), never a
// remote failure.
package rpc
