// Package publish drains tracking results from a queue.Latest and writes
// them to a network sink.
//
// Each payload is one JSON object. Stream-oriented sinks (TCP, serial)
// terminate records with a newline; datagram sinks send one record per
// packet; the gRPC stream carries each record as a google.protobuf.Struct.
package publish
