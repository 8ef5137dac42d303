// ABOUTME: Tests for the traffic tool set against an in-memory Source.
// ABOUTME: Verifies routing between databases, result shapes and pipeline construction.

package traffic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/2389/tool-gateway/internal/toolbox"
)

type aggregateCall struct {
	database   string
	collection string
	pipeline   mongo.Pipeline
}

// fakeSource answers queries from canned data and records what it was asked.
type fakeSource struct {
	mu          sync.Mutex
	rows        []bson.M
	distinct    []any
	docs        []bson.M
	databases   []string
	collections map[string][]string
	err         error

	aggregates []aggregateCall
	distincts  []string
	finds      []int64
	lastFilter any
}

func (f *fakeSource) Aggregate(_ context.Context, database, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregates = append(f.aggregates, aggregateCall{database, collection, pipeline})
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeSource) Distinct(_ context.Context, database, collection, field string) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.distincts = append(f.distincts, database+"."+collection+":"+field)
	if f.err != nil {
		return nil, f.err
	}
	return f.distinct, nil
}

func (f *fakeSource) Find(_ context.Context, _, _ string, filter any, limit int64) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds = append(f.finds, limit)
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func (f *fakeSource) ListDatabaseNames(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.databases, nil
}

func (f *fakeSource) ListCollectionNames(_ context.Context, database string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.collections[database], nil
}

func (f *fakeSource) Ping(context.Context) error {
	return f.err
}

func (f *fakeSource) lastAggregate(t *testing.T) aggregateCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.aggregates, "expected an aggregate call")
	return f.aggregates[len(f.aggregates)-1]
}

func setup(t *testing.T, src *fakeSource) *toolbox.Dispatcher {
	t.Helper()
	reg := toolbox.NewRegistry(nil)
	_, err := Register(reg, src, Config{})
	require.NoError(t, err)
	reg.Seal()
	return toolbox.NewDispatcher(toolbox.DispatcherConfig{Registry: reg})
}

func invoke(t *testing.T, d *toolbox.Dispatcher, name string, args map[string]any) map[string]any {
	t.Helper()
	res := d.Invoke(context.Background(), toolbox.Request{ToolName: name, Arguments: args})
	require.True(t, res.OK(), "invoke %s: %v", name, res.Err)
	out, ok := res.Value.(map[string]any)
	require.True(t, ok, "expected object result, got %T", res.Value)
	return out
}

// stage returns the value of the named stage operator at index i.
func stage(t *testing.T, p mongo.Pipeline, i int, op string) any {
	t.Helper()
	require.Greater(t, len(p), i)
	require.Equal(t, op, p[i][0].Key)
	return p[i][0].Value
}

func TestRegisterOrderAndCount(t *testing.T) {
	reg := toolbox.NewRegistry(nil)
	_, err := Register(reg, &fakeSource{}, Config{})
	require.NoError(t, err)

	names := make([]string, 0, reg.Len())
	for _, tool := range reg.List() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		"list_available_tools",
		"get_lanes_by_metric",
		"get_sensors_with_highest_flow",
		"get_peak_traffic_times",
		"summarize_lane_activity",
		"get_average_flow_by_hour",
		"get_average_speed_for_sensor",
		"get_sensor_data_in_time_range",
		"get_peak_flow_timestamp",
		"generate_timeseries_chart_data",
		"count_all_lanes",
		"count_all_sensors",
		"no_op",
		"get_database_schema",
		"find",
		"get_lane_summary",
	}, names)
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := toolbox.NewRegistry(nil)
	_, err := Register(reg, &fakeSource{}, Config{})
	require.NoError(t, err)
	_, err = Register(reg, &fakeSource{}, Config{})
	assert.ErrorIs(t, err, toolbox.ErrDuplicateTool)
}

func TestDatabaseRouting(t *testing.T) {
	ts := &Toolset{cfg: Config{TrafficDatabase: "t", MeasurementsDatabase: "m"}}
	assert.Equal(t, "m", ts.databaseFor("get_sensors_with_highest_flow"))
	assert.Equal(t, "m", ts.databaseFor("get_average_flow_by_hour"))
	assert.Equal(t, "m", ts.databaseFor("count_all_sensors"))
	assert.Equal(t, "t", ts.databaseFor("get_lanes_by_metric"))
	assert.Equal(t, "t", ts.databaseFor("get_peak_traffic_times"))
	assert.Equal(t, "t", ts.databaseFor("count_all_lanes"))
}

func TestListAvailableTools(t *testing.T) {
	d := setup(t, &fakeSource{})
	res := d.Invoke(context.Background(), toolbox.Request{ToolName: "list_available_tools"})
	require.True(t, res.OK())

	tools, ok := res.Value.([]any)
	require.True(t, ok)
	require.Len(t, tools, 16)

	byName := map[string]map[string]any{}
	for _, item := range tools {
		entry := item.(map[string]any)
		byName[entry["name"].(string)] = entry
	}
	params := byName["get_lanes_by_metric"]["parameters"].([]any)
	require.Len(t, params, 3)
	metric := params[0].(map[string]any)
	assert.Equal(t, "metric", metric["name"])
	assert.Equal(t, "REQUIRED", metric["default"])
	topN := params[2].(map[string]any)
	assert.Equal(t, int64(5), topN["default"])
}

func TestGetLanesByMetric(t *testing.T) {
	src := &fakeSource{rows: []bson.M{{"_id": "lane_1", "avg_speed": 12.5}}}
	d := setup(t, src)

	out := invoke(t, d, "get_lanes_by_metric", map[string]any{"metric": "speed", "order": "lowest", "top_n": float64(3)})
	data := out["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "lane_1", data[0].(map[string]any)["_id"])

	call := src.lastAggregate(t)
	assert.Equal(t, DefaultTrafficDatabase, call.database)
	assert.Equal(t, DefaultCollection, call.collection)
	group := stage(t, call.pipeline, 0, "$group").(bson.D)
	assert.Equal(t, "avg_speed", group[1].Key)
	assert.Equal(t, bson.D{{Key: "avg_speed", Value: 1}}, stage(t, call.pipeline, 1, "$sort"))
	assert.Equal(t, 3, stage(t, call.pipeline, 2, "$limit"))
}

func TestGetLanesByMetricInvalidMetric(t *testing.T) {
	src := &fakeSource{}
	d := setup(t, src)

	out := invoke(t, d, "get_lanes_by_metric", map[string]any{"metric": "color"})
	assert.Equal(t, "Invalid metric 'color'. Must be one of [occupancy, density, speed, entered, waiting_time].", out["error"])
	assert.Empty(t, src.aggregates)
}

func TestGetLanesByMetricNoData(t *testing.T) {
	d := setup(t, &fakeSource{})
	out := invoke(t, d, "get_lanes_by_metric", map[string]any{"metric": "density"})
	assert.Equal(t, "No data for metric 'density'.", out["message"])
}

func TestTopNFallback(t *testing.T) {
	tests := []struct {
		name string
		args toolbox.Args
	}{
		{"missing", toolbox.Args{}},
		{"zero", toolbox.Args{"top_n": float64(0)}},
		{"negative", toolbox.Args{"top_n": float64(-2)}},
		{"garbage", toolbox.Args{"top_n": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, defaultTopN, topN(tt.args))
		})
	}
	assert.Equal(t, 7, topN(toolbox.Args{"top_n": "7"}))
}

func TestSensorsWithHighestFlowUsesMeasurements(t *testing.T) {
	src := &fakeSource{rows: []bson.M{{"_id": "s1", "average_flow": 40.0}}}
	d := setup(t, src)

	invoke(t, d, "get_sensors_with_highest_flow", nil)
	call := src.lastAggregate(t)
	assert.Equal(t, DefaultMeasurementsDatabase, call.database)
	assert.Equal(t, 5, stage(t, call.pipeline, 2, "$limit"))
}

func TestEmptyResultMessages(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"get_sensors_with_highest_flow", nil, "No sensor flow data found."},
		{"get_peak_traffic_times", nil, "No traffic flow data found."},
		{"summarize_lane_activity", map[string]any{"lane_id": "L1"}, "No data for lane 'L1'."},
		{"get_average_flow_by_hour", map[string]any{"hour": float64(8)}, "No flow data for hour 8."},
		{"get_average_speed_for_sensor", map[string]any{"sensor_id": "S9"}, "No data for sensor 'S9'."},
		{"get_peak_flow_timestamp", nil, "No flow data available."},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			d := setup(t, &fakeSource{})
			out := invoke(t, d, tt.tool, tt.args)
			assert.Equal(t, tt.want, out["message"])
		})
	}
}

func TestSummarizeLaneActivityReturnsFirstRow(t *testing.T) {
	src := &fakeSource{rows: []bson.M{{"_id": "L1", "total_entered": int32(12), "data_points": int32(3)}}}
	d := setup(t, src)

	out := invoke(t, d, "summarize_lane_activity", map[string]any{"lane_id": "L1"})
	data := out["data"].(map[string]any)
	assert.Equal(t, "L1", data["_id"])
	assert.Equal(t, int64(12), data["total_entered"])

	match := stage(t, src.lastAggregate(t).pipeline, 0, "$match")
	assert.Equal(t, bson.D{{Key: "lane_id", Value: "L1"}}, match)
}

func TestAverageFlowByHourRange(t *testing.T) {
	src := &fakeSource{}
	d := setup(t, src)

	for _, hour := range []float64{-1, 24} {
		out := invoke(t, d, "get_average_flow_by_hour", map[string]any{"hour": hour})
		assert.Equal(t, "Hour must be between 0 and 23.", out["error"])
	}
	assert.Empty(t, src.aggregates)

	src.rows = []bson.M{{"_id": int32(23), "avg_flow": 10.0}}
	out := invoke(t, d, "get_average_flow_by_hour", map[string]any{"hour": float64(23)})
	assert.Equal(t, 10.0, out["data"].(map[string]any)["avg_flow"])
	assert.Equal(t, bson.D{{Key: "hour_of_day", Value: 23}}, stage(t, src.lastAggregate(t).pipeline, 2, "$match"))
}

func TestSensorDataInTimeRange(t *testing.T) {
	src := &fakeSource{rows: []bson.M{{"sensor_id": "S1", "flow": 3.0}}}
	d := setup(t, src)

	out := invoke(t, d, "get_sensor_data_in_time_range", map[string]any{
		"sensor_id": "S1",
		"start_ts":  "2024-05-01T08:00:00",
		"end_ts":    "2024-05-01T09:00:00Z",
	})
	require.Len(t, out["data"], 1)

	call := src.lastAggregate(t)
	assert.Equal(t, DefaultMeasurementsDatabase, call.database)
	match := stage(t, call.pipeline, 1, "$match").(bson.D)
	assert.Equal(t, "S1", match[0].Value)
	assert.Equal(t, timeRangeLimit, stage(t, call.pipeline, 2, "$limit"))
}

func TestSensorDataInTimeRangeBadTimestamp(t *testing.T) {
	src := &fakeSource{}
	d := setup(t, src)

	out := invoke(t, d, "get_sensor_data_in_time_range", map[string]any{
		"sensor_id": "S1",
		"start_ts":  "yesterday",
		"end_ts":    "2024-05-01",
	})
	assert.Contains(t, out["error"], "Timestamp parse error:")
	assert.Empty(t, src.aggregates)
}

func TestParseISO(t *testing.T) {
	for _, in := range []string{
		"2024-05-01",
		"2024-05-01T08:30",
		"2024-05-01T08:30:15",
		"2024-05-01T08:30:15.250",
		"2024-05-01T08:30:15+02:00",
		"2024-05-01 08:30:15",
	} {
		_, err := parseISO(in)
		assert.NoError(t, err, in)
	}
	_, err := parseISO("05/01/2024")
	assert.Error(t, err)
}

func TestTimeseriesChart(t *testing.T) {
	src := &fakeSource{rows: []bson.M{
		{"_id": "S1", "labels": bson.A{"t1", "t2"}, "data": bson.A{1.0, 2.0}},
		{"_id": "S2", "labels": bson.A{"t1", "t2"}, "data": bson.A{3.0, 4.0}},
	}}
	d := setup(t, src)

	out := invoke(t, d, "generate_timeseries_chart_data", map[string]any{
		"metric": "flow",
		"ids":    []any{"S1", "S2"},
	})
	chart := out["chart"].(map[string]any)
	assert.Equal(t, "line", chart["type"])
	data := chart["data"].(map[string]any)
	assert.Equal(t, []any{"t1", "t2"}, data["labels"])
	datasets := data["datasets"].([]any)
	require.Len(t, datasets, 2)
	first := datasets[0].(map[string]any)
	assert.Equal(t, "S1", first["label"])
	assert.Equal(t, false, first["fill"])

	call := src.lastAggregate(t)
	assert.Equal(t, DefaultMeasurementsDatabase, call.database)
	match := stage(t, call.pipeline, 0, "$match").(bson.D)
	require.Len(t, match, 1)
	assert.Equal(t, "sensor_id", match[0].Key)
}

func TestTimeseriesChartLaneMetricWithRange(t *testing.T) {
	src := &fakeSource{}
	d := setup(t, src)

	out := invoke(t, d, "generate_timeseries_chart_data", map[string]any{
		"metric":         "occupancy",
		"ids":            []any{"L1"},
		"start_time_iso": "2024-05-01T00:00:00",
		"end_time_iso":   "2024-05-02T00:00:00",
	})
	assert.Equal(t, "No data for given IDs/time range.", out["error"])

	call := src.lastAggregate(t)
	assert.Equal(t, DefaultTrafficDatabase, call.database)
	match := stage(t, call.pipeline, 0, "$match").(bson.D)
	require.Len(t, match, 2)
	assert.Equal(t, "lane_id", match[0].Key)
	assert.Equal(t, "timestamp", match[1].Key)
}

func TestTimeseriesChartOnlyOneBoundIgnoresRange(t *testing.T) {
	src := &fakeSource{}
	d := setup(t, src)

	invoke(t, d, "generate_timeseries_chart_data", map[string]any{
		"metric":         "speed",
		"ids":            []any{"S1"},
		"start_time_iso": "2024-05-01T00:00:00",
	})
	match := stage(t, src.lastAggregate(t).pipeline, 0, "$match").(bson.D)
	assert.Len(t, match, 1)
}

func TestCountAll(t *testing.T) {
	ids := make([]any, 0, 14)
	for i := 0; i < 14; i++ {
		ids = append(ids, "id")
	}
	src := &fakeSource{distinct: ids}
	d := setup(t, src)

	lanes := invoke(t, d, "count_all_lanes", nil)
	assert.Equal(t, int64(14), lanes["total_lanes"])
	assert.Len(t, lanes["lane_ids"], sampleIDLimit)

	sensors := invoke(t, d, "count_all_sensors", nil)
	assert.Equal(t, int64(14), sensors["total_sensors"])

	assert.Equal(t, []string{
		DefaultTrafficDatabase + ".data:lane_id",
		DefaultMeasurementsDatabase + ".data:sensor_id",
	}, src.distincts)
}

func TestCountAllEmpty(t *testing.T) {
	d := setup(t, &fakeSource{})
	out := invoke(t, d, "count_all_lanes", nil)
	assert.Equal(t, int64(0), out["total_lanes"])
	assert.Equal(t, []any{}, out["lane_ids"])
}

func TestNoOp(t *testing.T) {
	d := setup(t, &fakeSource{})
	out := invoke(t, d, "no_op", map[string]any{"reason": "greeting"})
	assert.Contains(t, out["message"], "I can help you query the traffic database.")
}

func TestGetDatabaseSchema(t *testing.T) {
	src := &fakeSource{
		databases: []string{"admin", "config", "local", "traffic_data", "empty"},
		collections: map[string][]string{
			"traffic_data": {"lane_data", "measurements"},
		},
	}
	d := setup(t, src)

	out := invoke(t, d, "get_database_schema", nil)
	assert.Equal(t, map[string]any{
		"traffic_data": []any{"lane_data", "measurements"},
		"empty":        []any{},
	}, out)
}

func TestGetDatabaseSchemaError(t *testing.T) {
	d := setup(t, &fakeSource{err: errors.New("no reachable servers")})
	out := invoke(t, d, "get_database_schema", nil)
	assert.Equal(t, "Failed to retrieve database schema: no reachable servers", out["error"])
}

func TestFind(t *testing.T) {
	src := &fakeSource{docs: []bson.M{{"timestamp": "t1"}}}
	d := setup(t, src)

	res := d.Invoke(context.Background(), toolbox.Request{ToolName: "find", Arguments: map[string]any{
		"database_name":   "traffic_data",
		"collection_name": "lane_data",
		"filter":          map[string]any{"metadata.lane_id": ":L1"},
	}})
	require.True(t, res.OK())
	assert.Equal(t, []any{map[string]any{"timestamp": "t1"}}, res.Value)
	assert.Equal(t, []int64{5}, src.finds)
	assert.Equal(t, bson.M{"metadata.lane_id": ":L1"}, src.lastFilter)

	res = d.Invoke(context.Background(), toolbox.Request{ToolName: "find", Arguments: map[string]any{
		"database_name":   "traffic_data",
		"collection_name": "lane_data",
		"limit":           float64(0),
	}})
	require.True(t, res.OK())
	assert.Equal(t, []int64{5, 0}, src.finds)
}

func TestFindStoreFailure(t *testing.T) {
	d := setup(t, &fakeSource{err: errors.New("boom")})
	res := d.Invoke(context.Background(), toolbox.Request{ToolName: "find", Arguments: map[string]any{
		"database_name":   "db",
		"collection_name": "c",
	}})
	require.False(t, res.OK())
	assert.Equal(t, toolbox.KindInvocationFailed, res.Err.Kind)
	assert.Contains(t, res.Err.Message, "boom")
}

func TestGetLaneSummaryMatchesBothSpellings(t *testing.T) {
	for _, lane := range []string{"13445139_0", ":13445139_0"} {
		t.Run(lane, func(t *testing.T) {
			src := &fakeSource{}
			d := setup(t, src)

			res := d.Invoke(context.Background(), toolbox.Request{ToolName: "get_lane_summary", Arguments: map[string]any{
				"database_name": "traffic_data",
				"lane_id":       lane,
			}})
			require.True(t, res.OK())
			assert.Equal(t, []any{}, res.Value)

			call := src.lastAggregate(t)
			assert.Equal(t, "traffic_data", call.database)
			assert.Equal(t, laneDataCollection, call.collection)
			match := stage(t, call.pipeline, 0, "$match").(bson.D)
			assert.Equal(t, bson.A{
				bson.D{{Key: "metadata.lane_id", Value: ":13445139_0"}},
				bson.D{{Key: "metadata.lane_id", Value: "13445139_0"}},
			}, match[0].Value)
		})
	}
}

func TestMissingRequiredArgumentFails(t *testing.T) {
	d := setup(t, &fakeSource{})
	res := d.Invoke(context.Background(), toolbox.Request{ToolName: "summarize_lane_activity"})
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Err, toolbox.ErrMissingArgument)
}
