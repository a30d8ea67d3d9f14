// Package internaldefs holds the stable metric name table shared by the
// exporter implementations.
//
// Counter definitions live here so the Prometheus and OTel exporters always
// publish identical names; a rename in this table changes every backend at
// once.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
