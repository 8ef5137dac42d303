// ABOUTME: Package traffic provides the road-traffic query tools served by the gateway.
// ABOUTME: Tools read lane and sensor readings from MongoDB through the Source interface.

// Package traffic registers the traffic analytics tools. Lane-level readings
// live in the traffic database and sensor-level measurements in the
// measurements database; any tool whose name mentions sensors or flow reads
// the latter.
package traffic
