// ABOUTME: Aggregation-backed implementations of the traffic tools.
// ABOUTME: Data problems come back as {"error"} or {"message"} payloads; store failures as errors.

package traffic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/2389/tool-gateway/internal/toolbox"
)

const (
	timeRangeLimit = 1000
	sampleIDLimit  = 10
)

// isoLayouts are tried in order when parsing caller-supplied timestamps.
// Values without an offset are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid isoformat string: '%s'", s)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (ts *Toolset) aggregate(ctx context.Context, tool string, pipeline mongo.Pipeline) ([]bson.M, error) {
	rows, err := ts.source.Aggregate(ctx, ts.databaseFor(tool), ts.cfg.Collection, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	return rows, nil
}

func (ts *Toolset) getLanesByMetric(ctx context.Context, args toolbox.Args) (any, error) {
	metric, err := args.String("metric")
	if err != nil {
		return nil, err
	}
	if !contains(laneMetrics, metric) {
		return errorResult("Invalid metric '%s'. Must be one of [%s].", metric, strings.Join(laneMetrics, ", ")), nil
	}
	order, err := args.String("order")
	if err != nil {
		return nil, err
	}
	direction := -1
	if order == "lowest" {
		direction = 1
	}
	limit := topN(args)
	field := "avg_" + metric

	rows, err := ts.aggregate(ctx, "get_lanes_by_metric", mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$lane_id"},
			{Key: field, Value: bson.D{{Key: "$avg", Value: "$" + metric}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: field, Value: direction}}}},
		{{Key: "$limit", Value: limit}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return messageResult("No data for metric '%s'.", metric), nil
	}
	return dataResult(rows), nil
}

func (ts *Toolset) getSensorsWithHighestFlow(ctx context.Context, args toolbox.Args) (any, error) {
	limit := topN(args)
	rows, err := ts.aggregate(ctx, "get_sensors_with_highest_flow", mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$sensor_id"},
			{Key: "average_flow", Value: bson.D{{Key: "$avg", Value: "$flow"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "average_flow", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return messageResult("No sensor flow data found."), nil
	}
	return dataResult(rows), nil
}

func (ts *Toolset) getPeakTrafficTimes(ctx context.Context, args toolbox.Args) (any, error) {
	limit := topN(args)
	rows, err := ts.aggregate(ctx, "get_peak_traffic_times", mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$timestamp"},
			{Key: "total_flow", Value: bson.D{{Key: "$sum", Value: "$flow"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total_flow", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return messageResult("No traffic flow data found."), nil
	}
	return dataResult(rows), nil
}

func (ts *Toolset) summarizeLaneActivity(ctx context.Context, args toolbox.Args) (any, error) {
	laneID, err := args.String("lane_id")
	if err != nil {
		return nil, err
	}
	rows, err := ts.aggregate(ctx, "summarize_lane_activity", mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "lane_id", Value: laneID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$lane_id"},
			{Key: "total_entered", Value: bson.D{{Key: "$sum", Value: "$entered"}}},
			{Key: "avg_speed", Value: bson.D{{Key: "$avg", Value: "$speed"}}},
			{Key: "avg_occupancy", Value: bson.D{{Key: "$avg", Value: "$occupancy"}}},
			{Key: "total_waiting_time", Value: bson.D{{Key: "$sum", Value: "$waiting_time"}}},
			{Key: "data_points", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return messageResult("No data for lane '%s'.", laneID), nil
	}
	return dataResult(rows[0]), nil
}

func (ts *Toolset) getAverageFlowByHour(ctx context.Context, args toolbox.Args) (any, error) {
	hour, err := args.Int("hour")
	if err != nil {
		return nil, err
	}
	if hour < 0 || hour > 23 {
		return errorResult("Hour must be between 0 and 23."), nil
	}
	rows, err := ts.aggregate(ctx, "get_average_flow_by_hour", mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{{Key: "ts_date", Value: bson.D{{Key: "$toDate", Value: "$timestamp"}}}}}},
		{{Key: "$addFields", Value: bson.D{{Key: "hour_of_day", Value: bson.D{{Key: "$hour", Value: "$ts_date"}}}}}},
		{{Key: "$match", Value: bson.D{{Key: "hour_of_day", Value: hour}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: hour},
			{Key: "avg_flow", Value: bson.D{{Key: "$avg", Value: "$flow"}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return messageResult("No flow data for hour %d.", hour), nil
	}
	return dataResult(rows[0]), nil
}

func (ts *Toolset) getAverageSpeedForSensor(ctx context.Context, args toolbox.Args) (any, error) {
	sensorID, err := args.String("sensor_id")
	if err != nil {
		return nil, err
	}
	rows, err := ts.aggregate(ctx, "get_average_speed_for_sensor", mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "sensor_id", Value: sensorID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$sensor_id"},
			{Key: "avg_speed", Value: bson.D{{Key: "$avg", Value: "$speed"}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return messageResult("No data for sensor '%s'.", sensorID), nil
	}
	return dataResult(rows[0]), nil
}

func (ts *Toolset) getSensorDataInTimeRange(ctx context.Context, args toolbox.Args) (any, error) {
	sensorID, err := args.String("sensor_id")
	if err != nil {
		return nil, err
	}
	startRaw, err := args.String("start_ts")
	if err != nil {
		return nil, err
	}
	endRaw, err := args.String("end_ts")
	if err != nil {
		return nil, err
	}
	start, err := parseISO(startRaw)
	if err != nil {
		return errorResult("Timestamp parse error: %v", err), nil
	}
	end, err := parseISO(endRaw)
	if err != nil {
		return errorResult("Timestamp parse error: %v", err), nil
	}

	rows, err := ts.aggregate(ctx, "get_sensor_data_in_time_range", mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{{Key: "ts_date", Value: bson.D{
			{Key: "$dateFromString", Value: bson.D{{Key: "dateString", Value: "$timestamp"}}},
		}}}}},
		{{Key: "$match", Value: bson.D{
			{Key: "sensor_id", Value: sensorID},
			{Key: "ts_date", Value: bson.D{{Key: "$gte", Value: start}, {Key: "$lte", Value: end}}},
		}}},
		{{Key: "$limit", Value: timeRangeLimit}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return messageResult("No data for sensor '%s' in that range.", sensorID), nil
	}
	return dataResult(rows), nil
}

func (ts *Toolset) getPeakFlowTimestamp(ctx context.Context, _ toolbox.Args) (any, error) {
	rows, err := ts.aggregate(ctx, "get_peak_flow_timestamp", mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$timestamp"},
			{Key: "avg_flow", Value: bson.D{{Key: "$avg", Value: "$flow"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avg_flow", Value: -1}}}},
		{{Key: "$limit", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return messageResult("No flow data available."), nil
	}
	return dataResult(rows[0]), nil
}

// generateTimeseriesChartData groups readings per id into a line chart.
// Speed and flow are per-sensor measurements; the other metrics are per-lane.
func (ts *Toolset) generateTimeseriesChartData(ctx context.Context, args toolbox.Args) (any, error) {
	metric, err := args.String("metric")
	if err != nil {
		return nil, err
	}
	if !contains(chartMetrics, metric) {
		return errorResult("Invalid metric '%s'. Must be one of [%s].", metric, strings.Join(chartMetrics, ", ")), nil
	}
	ids, err := args.StringSlice("ids")
	if err != nil {
		return nil, err
	}

	bySensor := metric == "speed" || metric == "flow"
	idField := "lane_id"
	database := ts.cfg.TrafficDatabase
	if bySensor {
		idField = "sensor_id"
		database = ts.cfg.MeasurementsDatabase
	}

	match := bson.D{{Key: idField, Value: bson.D{{Key: "$in", Value: ids}}}}
	startRaw, hasStart, err := args.OptionalString("start_time_iso")
	if err != nil {
		return nil, err
	}
	endRaw, hasEnd, err := args.OptionalString("end_time_iso")
	if err != nil {
		return nil, err
	}
	if hasStart && hasEnd && startRaw != "" && endRaw != "" {
		start, err := parseISO(startRaw)
		if err != nil {
			return errorResult("Timestamp parse error: %v", err), nil
		}
		end, err := parseISO(endRaw)
		if err != nil {
			return errorResult("Timestamp parse error: %v", err), nil
		}
		match = append(match, bson.E{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: start}, {Key: "$lte", Value: end}}})
	}

	rows, err := ts.source.Aggregate(ctx, database, ts.cfg.Collection, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + idField},
			{Key: "labels", Value: bson.D{{Key: "$push", Value: "$timestamp"}}},
			{Key: "data", Value: bson.D{{Key: "$push", Value: "$" + metric}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("generate_timeseries_chart_data: %w", err)
	}
	if len(rows) > len(ids) {
		rows = rows[:len(ids)]
	}
	if len(rows) == 0 {
		return errorResult("No data for given IDs/time range."), nil
	}

	datasets := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		datasets = append(datasets, map[string]any{
			"label": row["_id"],
			"data":  row["data"],
			"fill":  false,
		})
	}
	return map[string]any{
		"chart": map[string]any{
			"type": "line",
			"data": map[string]any{
				"labels":   rows[0]["labels"],
				"datasets": datasets,
			},
		},
	}, nil
}

func (ts *Toolset) countDistinct(ctx context.Context, tool, field, totalKey, idsKey string) (any, error) {
	ids, err := ts.source.Distinct(ctx, ts.databaseFor(tool), ts.cfg.Collection, field)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	sample := ids
	if len(sample) > sampleIDLimit {
		sample = sample[:sampleIDLimit]
	}
	if sample == nil {
		sample = []any{}
	}
	return map[string]any{totalKey: len(ids), idsKey: sample}, nil
}

func (ts *Toolset) countAllLanes(ctx context.Context, _ toolbox.Args) (any, error) {
	return ts.countDistinct(ctx, "count_all_lanes", "lane_id", "total_lanes", "lane_ids")
}

func (ts *Toolset) countAllSensors(ctx context.Context, _ toolbox.Args) (any, error) {
	return ts.countDistinct(ctx, "count_all_sensors", "sensor_id", "total_sensors", "sensor_ids")
}

// getDatabaseSchema maps every user database to its collection names.
// Failures are reported in the payload so the caller still gets a result.
func (ts *Toolset) getDatabaseSchema(ctx context.Context, _ toolbox.Args) (any, error) {
	names, err := ts.source.ListDatabaseNames(ctx)
	if err != nil {
		return errorResult("Failed to retrieve database schema: %v", err), nil
	}
	schema := make(map[string]any, len(names))
	for _, name := range names {
		if systemDatabases[name] {
			continue
		}
		collections, err := ts.source.ListCollectionNames(ctx, name)
		if err != nil {
			return errorResult("Failed to retrieve database schema: %v", err), nil
		}
		if collections == nil {
			collections = []string{}
		}
		schema[name] = collections
	}
	return schema, nil
}

// find runs a raw query. A limit of zero or less returns every match.
func (ts *Toolset) find(ctx context.Context, args toolbox.Args) (any, error) {
	database, err := args.String("database_name")
	if err != nil {
		return nil, err
	}
	collection, err := args.String("collection_name")
	if err != nil {
		return nil, err
	}
	filter, err := args.Object("filter")
	if err != nil {
		return nil, err
	}
	limit, err := args.Int("limit")
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		limit = 0
	}

	ts.logger.Debug("find", "database", database, "collection", collection, "limit", limit)
	docs, err := ts.source.Find(ctx, database, collection, bson.M(filter), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("find on %s.%s: %w", database, collection, err)
	}
	if docs == nil {
		docs = []bson.M{}
	}
	return docs, nil
}

// getLaneSummary matches the lane with and without its leading colon, since
// both spellings appear in lane_data.
func (ts *Toolset) getLaneSummary(ctx context.Context, args toolbox.Args) (any, error) {
	database, err := args.String("database_name")
	if err != nil {
		return nil, err
	}
	laneID, err := args.String("lane_id")
	if err != nil {
		return nil, err
	}
	withColon := laneID
	if !strings.HasPrefix(withColon, ":") {
		withColon = ":" + laneID
	}
	withoutColon := strings.TrimLeft(laneID, ":")

	rows, err := ts.source.Aggregate(ctx, database, laneDataCollection, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "metadata.lane_id", Value: withColon}},
			bson.D{{Key: "metadata.lane_id", Value: withoutColon}},
		}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$metadata.lane_id"},
			{Key: "avg_speed", Value: bson.D{{Key: "$avg", Value: "$measurement.speed"}}},
			{Key: "avg_density", Value: bson.D{{Key: "$avg", Value: "$measurement.density"}}},
			{Key: "avg_time_loss", Value: bson.D{{Key: "$avg", Value: "$measurement.time_loss"}}},
			{Key: "record_count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$limit", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("get_lane_summary: %w", err)
	}
	if rows == nil {
		rows = []bson.M{}
	}
	return rows, nil
}
