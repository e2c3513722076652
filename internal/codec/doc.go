// Package codec implements the wire format for version vectors, dots and the
// dotclock RPC messages. Encoding follows the protobuf wire format so any
// protobuf implementation can read it with this schema:
//
//	message VersionVector { repeated Entry entries = 1; }
//	message Entry         { string replica_id = 1; int64 counter = 2; }
//	message Dot           { string replica_id = 1; int64 counter = 2; }
//	message SyncRequest   { string from = 1; VersionVector clock = 2; }
//	message SyncReply     { string from = 1; VersionVector clock = 2; repeated string keys = 3; }
//	message SeenRequest   { Dot dot = 1; }
//	message SeenReply     { bool seen = 1; VersionVector clock = 2; }
//	message PutRequest    { string key = 1; bytes value = 2; VersionVector context = 3; bool deleted = 4; }
//	message PutReply      { Dot dot = 1; VersionVector context = 2; }
//	message GetRequest    { string key = 1; }
//	message GetReply      { bool found = 1; VersionVector context = 2; repeated Sibling siblings = 3; }
//	message Sibling       { Dot dot = 1; bytes value = 2; bool deleted = 3; }
//
// Zero counters are never written. Vector entries are written in replica
// order so equal vectors encode to equal bytes.
package codec
