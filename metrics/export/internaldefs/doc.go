// Package internaldefs holds the metric names and bucket boundaries shared
// by the exporters.
//
// Both the Prometheus and OTel exporters read their definitions from here,
// so a rename applies to every exporter at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
