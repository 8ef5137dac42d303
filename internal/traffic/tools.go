// ABOUTME: Registers the traffic and measurement tool set with a toolbox.Registry.
// ABOUTME: Each tool is a thin query over a Source returning JSON-safe values.

package traffic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/tool-gateway/internal/toolbox"
)

// Default database layout.
const (
	DefaultTrafficDatabase      = "traffic_db"
	DefaultMeasurementsDatabase = "measurements_db"
	DefaultCollection           = "data"

	laneDataCollection = "lane_data"
	defaultTopN        = 5
)

// Metrics accepted by get_lanes_by_metric.
var laneMetrics = []string{"occupancy", "density", "speed", "entered", "waiting_time"}

// Metrics accepted by generate_timeseries_chart_data.
var chartMetrics = []string{"speed", "flow", "occupancy", "entered", "waiting_time"}

// Databases excluded from get_database_schema.
var systemDatabases = map[string]bool{"admin": true, "config": true, "local": true}

// Config selects where the tools read from.
type Config struct {
	TrafficDatabase      string
	MeasurementsDatabase string
	Collection           string
	Logger               *slog.Logger
}

// Toolset holds the dependencies shared by every traffic tool.
type Toolset struct {
	source   Source
	registry *toolbox.Registry
	cfg      Config
	logger   *slog.Logger
}

// Register adds every traffic tool to reg in a fixed order.
func Register(reg *toolbox.Registry, src Source, cfg Config) (*Toolset, error) {
	if cfg.TrafficDatabase == "" {
		cfg.TrafficDatabase = DefaultTrafficDatabase
	}
	if cfg.MeasurementsDatabase == "" {
		cfg.MeasurementsDatabase = DefaultMeasurementsDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ts := &Toolset{
		source:   src,
		registry: reg,
		cfg:      cfg,
		logger:   logger.With("component", "traffic"),
	}

	for _, def := range ts.definitions() {
		if err := reg.Register(def.name, def.description, def.params, def.fn); err != nil {
			return nil, fmt.Errorf("registering %s: %w", def.name, err)
		}
	}
	return ts, nil
}

type definition struct {
	name        string
	description string
	params      []toolbox.ParameterSpec
	fn          toolbox.Func
}

func (ts *Toolset) definitions() []definition {
	str := toolbox.TypeString
	num := toolbox.TypeInteger
	return []definition{
		{
			name:        "list_available_tools",
			description: "Returns a JSON-encoded list of all available tools (name, description, parameters).",
			fn:          ts.listAvailableTools,
		},
		{
			name:        "get_lanes_by_metric",
			description: "Ranks lanes by a metric (occupancy, speed, density, entered, waiting_time).",
			params: []toolbox.ParameterSpec{
				toolbox.EnumParam("metric", laneMetrics, toolbox.Required, "Metric to rank lanes by."),
				toolbox.EnumParam("order", []string{"highest", "lowest"}, "highest", "Sort direction."),
				toolbox.Param("top_n", num, defaultTopN, "Number of lanes to return."),
			},
			fn: ts.getLanesByMetric,
		},
		{
			name:        "get_sensors_with_highest_flow",
			description: "Top N sensors by average flow (measurements_db).",
			params: []toolbox.ParameterSpec{
				toolbox.Param("top_n", num, defaultTopN, "Number of sensors to return."),
			},
			fn: ts.getSensorsWithHighestFlow,
		},
		{
			name:        "get_peak_traffic_times",
			description: "Find time intervals (timestamps) with highest total flow.",
			params: []toolbox.ParameterSpec{
				toolbox.Param("top_n", num, defaultTopN, "Number of timestamps to return."),
			},
			fn: ts.getPeakTrafficTimes,
		},
		{
			name:        "summarize_lane_activity",
			description: "Summary for a lane: total entered, avg speed, avg occupancy, total waiting time, data points.",
			params: []toolbox.ParameterSpec{
				toolbox.RequiredParam("lane_id", str, "Lane to summarize."),
			},
			fn: ts.summarizeLaneActivity,
		},
		{
			name:        "get_average_flow_by_hour",
			description: "Average flow for a given hour (0-23).",
			params: []toolbox.ParameterSpec{
				toolbox.RequiredParam("hour", num, "Hour of day, 0-23."),
			},
			fn: ts.getAverageFlowByHour,
		},
		{
			name:        "get_average_speed_for_sensor",
			description: "Average speed for a specific sensor_id.",
			params: []toolbox.ParameterSpec{
				toolbox.RequiredParam("sensor_id", str, "Sensor to average."),
			},
			fn: ts.getAverageSpeedForSensor,
		},
		{
			name:        "get_sensor_data_in_time_range",
			description: "All records for sensor_id between start_ts & end_ts (ISO format).",
			params: []toolbox.ParameterSpec{
				toolbox.RequiredParam("sensor_id", str, "Sensor to read."),
				toolbox.RequiredParam("start_ts", str, "Range start, ISO-8601."),
				toolbox.RequiredParam("end_ts", str, "Range end, ISO-8601."),
			},
			fn: ts.getSensorDataInTimeRange,
		},
		{
			name:        "get_peak_flow_timestamp",
			description: "Timestamp with the single highest average flow.",
			fn:          ts.getPeakFlowTimestamp,
		},
		{
			name:        "generate_timeseries_chart_data",
			description: "Chart-ready labels & datasets for a time-series metric.",
			params: []toolbox.ParameterSpec{
				toolbox.EnumParam("metric", chartMetrics, toolbox.Required, "Metric to chart."),
				toolbox.RequiredParam("ids", toolbox.TypeArray, "Sensor ids for speed/flow, lane ids otherwise."),
				toolbox.Param("start_time_iso", str, nil, "Optional range start, ISO-8601."),
				toolbox.Param("end_time_iso", str, nil, "Optional range end, ISO-8601."),
			},
			fn: ts.generateTimeseriesChartData,
		},
		{
			name:        "count_all_lanes",
			description: "Distinct lane count + up to 10 sample lane_ids.",
			fn:          ts.countAllLanes,
		},
		{
			name:        "count_all_sensors",
			description: "Distinct sensor count + up to 10 sample sensor_ids.",
			fn:          ts.countAllSensors,
		},
		{
			name:        "no_op",
			description: "Call this tool when the user is not asking a question about the database but is just chatting or asking what you can do.",
			params: []toolbox.ParameterSpec{
				toolbox.RequiredParam("reason", str, "The reason for not calling a database tool."),
			},
			fn: ts.noOp,
		},
		{
			name:        "get_database_schema",
			description: "Scans the entire MongoDB instance and returns a list of all databases and the collections within each one. Use this for broad questions about what data is available.",
			fn:          ts.getDatabaseSchema,
		},
		{
			name: "find",
			description: "Finds documents in a collection. IMPORTANT: In the 'lane_data' collection, " +
				"'timestamp' is a top-level field, but 'lane_id' is nested inside 'metadata'. " +
				"Also, 'lane_id' values may start with a colon ':'. " +
				"Example filter: {'timestamp': '...', 'metadata.lane_id': ':...'}",
			params: []toolbox.ParameterSpec{
				toolbox.RequiredParam("database_name", str, "The database name, e.g., 'traffic_data'."),
				toolbox.RequiredParam("collection_name", str, "The collection name, e.g., 'lane_data' or 'measurements'."),
				toolbox.Param("filter", toolbox.TypeObject, map[string]any{}, "The query filter. Defaults to {} to find all."),
				toolbox.Param("limit", num, 5, "The maximum number of documents to return."),
			},
			fn: ts.find,
		},
		{
			name:        "get_lane_summary",
			description: "Calculates the average speed, density, and time loss for a specific lane_id from the 'lane_data' collection.",
			params: []toolbox.ParameterSpec{
				toolbox.RequiredParam("database_name", str, "The database containing lane data, e.g., 'traffic_data'."),
				toolbox.RequiredParam("lane_id", str, "The specific lane_id to summarize, e.g., '13445139_0' or ':13445139_0'."),
			},
			fn: ts.getLaneSummary,
		},
	}
}

// databaseFor picks the database a tool reads: anything about sensors or flow
// lives in the measurements database.
func (ts *Toolset) databaseFor(toolName string) string {
	if strings.Contains(toolName, "sensor") || strings.Contains(toolName, "flow") {
		return ts.cfg.MeasurementsDatabase
	}
	return ts.cfg.TrafficDatabase
}

// topN reads top_n, falling back to the default when it is not a positive integer.
func topN(args toolbox.Args) int {
	n, err := args.Int("top_n")
	if err != nil || n <= 0 {
		return defaultTopN
	}
	return n
}

func errorResult(format string, a ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, a...)}
}

func messageResult(format string, a ...any) map[string]any {
	return map[string]any{"message": fmt.Sprintf(format, a...)}
}

func dataResult(v any) map[string]any {
	return map[string]any{"data": v}
}

func (ts *Toolset) noOp(_ context.Context, args toolbox.Args) (any, error) {
	reason, err := args.String("reason")
	if err != nil {
		return nil, err
	}
	ts.logger.Debug("no_op called", "reason", reason)
	return map[string]any{
		"message": "I can help you query the traffic database. You can ask me to 'get the database schema', 'find documents', or 'get a summary for a specific lane'.",
	}, nil
}

func (ts *Toolset) listAvailableTools(_ context.Context, _ toolbox.Args) (any, error) {
	entries := ts.registry.Manifest()
	tools := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		params := make([]map[string]any, 0, len(e.Parameters))
		for _, p := range e.Parameters {
			params = append(params, map[string]any{
				"name":    p.Name,
				"type":    p.Type,
				"default": p.Default,
			})
		}
		tools = append(tools, map[string]any{
			"name":        e.Name,
			"description": e.Description,
			"parameters":  params,
		})
	}
	return tools, nil
}
