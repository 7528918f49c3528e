// Package mongodb provides a MongoDB output component for writing mapped
// row documents to a collection.
//
// # Overview
//
// The MongoDB output consumes row envelopes from NATS subjects, transforms
// each row into a document through the field-mapping core, and writes the
// result using one of four strategies:
//
//   - insert: full documents, batched through InsertMany
//   - upsert: full-document replace with upsert against the match query
//   - multi-update: modifier update applied to every matching document
//   - modifier-update: modifier update ($set/$push/$inc/...) applied to the
//     first matching document
//
// # Row envelope format
//
// Rows arrive as JSON envelopes declaring column metadata alongside the
// ordered value tuple:
//
//	{
//	  "columns": [
//	    {"name": "sku", "type": "string"},
//	    {"name": "qty", "type": "integer"},
//	    {"name": "seen", "type": "date"}
//	  ],
//	  "values": ["A-100", 3, "2025-06-01T09:30:00Z"]
//	}
//
// Supported column types: string, boolean, integer, number, date (RFC 3339),
// binary (base64), bignumber (decimal string), serializable (always
// rejected at coercion time).
//
// # Field mappings
//
// Each mapping binds an incoming column to a dot-notation document path;
// see the mapping package for the path dialect. Mappings marked as match
// fields form the query half of update strategies and never appear in the
// update body.
//
// Rows whose relevant cells are all null produce no document and are
// skipped silently, counted in the rows_skipped_total metric.
//
// # Modifier upserts and match fields
//
// On a modifier upsert the server materializes the query paths into the
// freshly created document before the modifier operators run. Numeric
// segments of a query path (a.0.b) become literal field names rather than
// array indices, so a subsequent $push against the same array fails with a
// "cannot apply $push to non-array" error. The builder therefore never
// duplicates match fields into the modifier update document; a modifier
// upsert whose query reaches into arrays cannot create those arrays on
// insert.
//
// # Configuration
//
// Example:
//
//	{
//	  "ports": {"inputs": [{"name": "input", "type": "nats", "subject": "rows.orders"}]},
//	  "hosts": ["db1:27017", "db2"],
//	  "database": "shop",
//	  "collection": "orders",
//	  "strategy": "modifier-update",
//	  "upsert": true,
//	  "fields": [
//	    {"incoming_name": "order_id", "doc_path": "", "append_incoming_name": true, "is_match_field": true},
//	    {"incoming_name": "status", "doc_path": "state", "append_incoming_name": false, "modifier_op": "$set"}
//	  ],
//	  "indexes": [{"path_to_fields": "order_id:1", "unique": true}]
//	}
//
// Hosts without an explicit port use the MongoDB default 27017. Index
// operations run at startup; when the collection is truncated in the same
// run, index drops are skipped as redundant.
package mongodb
