// Package mongosink provides a MongoDB output component for streaming
// data-integration flows, built around a row-to-document transformation core.
//
// # Overview
//
// MongoSink consumes typed tabular rows from NATS subjects and writes them
// into a MongoDB collection. A declarative field-mapping schema binds each
// incoming column to a dot-notation path in the target document; per row the
// core produces one of three artifacts:
//
//   - a complete insert/upsert document (full replacement),
//   - a query document (the match criteria for an update/upsert), or
//   - a modifier update document ($set / $push / $inc ... keyed by
//     dot-notation paths).
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        output/mongodb               │  Component lifecycle,
//	│  (config, ports, write strategies)  │  batching, metrics
//	└─────────────────────────────────────┘
//	           ↓ builds documents via
//	┌─────────────────────────────────────┐
//	│     mapping / document / builder    │  Path compiler, value
//	│      (the transformation core)      │  coercion, tree builders
//	└─────────────────────────────────────┘
//	           ↓ writes through
//	┌─────────────────────────────────────┐
//	│          mongoclient                │  Connection, existence
//	│   (driver wrapper, index adjunct)   │  probe, index management
//	└─────────────────────────────────────┘
//
// Rows arrive as JSON envelopes on NATS subjects (see output/mongodb for the
// envelope format). The compiled mapping schema is immutable after
// initialization and shared safely across workers; all per-row builder state
// is row-local.
//
// # Packages
//
//   - row: row metadata contract, typed cell accessors, variable interpolation
//   - mapping: field mappings, dot-notation path compiler, top-level classifier
//   - document: value coercion onto BSON values, ordered document nodes
//   - builder: insert/upsert, query, and modifier update builders
//   - mongoclient: driver wrapper, replica-set discovery, index management
//   - output/mongodb: the output component
//   - component, natsclient, metric, errors, pkg/retry: framework plumbing
package mongosink
