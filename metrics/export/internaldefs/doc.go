// Package internaldefs holds the metric names, help strings and bucket
// boundaries shared by the exporter packages.
//
// Both the Prometheus and OTel exporters read these tables, so a rename here
// changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
