// Package internaldefs holds the metric name and bucket definitions shared by
// exporter implementations.
//
// Counter and histogram definitions live here so that the Prometheus and OTel
// exporters expose identical metric names and bucket boundaries. Changes here
// affect all exporters simultaneously.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
