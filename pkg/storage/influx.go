package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/vjranagit/telemetry/pkg/types"
)

const influxMeasurement = "sensordata"

// influxStorage keeps sensor data in an InfluxDB v2 bucket. Each metric is a field of the
// sensordata measurement, tagged by owner, project and member.
type influxStorage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

func newInfluxStorage(cfg InfluxConfig) (*influxStorage, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influxdb storage needs url, org and bucket")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &influxStorage{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}, nil
}

// Write implements Storage.Write
func (s *influxStorage) Write(ctx context.Context, req *types.WriteRequest) error {
	for _, series := range req.Series {
		if len(series.Samples) == 0 {
			continue
		}
		if err := s.writeAPI.WritePoint(ctx, seriesPoints(req.Project, series)...); err != nil {
			return fmt.Errorf("influxdb write failed for %s: %w", series.Metric.Name, err)
		}
	}
	return nil
}

// seriesPoints turns one series into sensordata points, one per sample
func seriesPoints(project types.Project, series types.Series) []*write.Point {
	tags := map[string]string{
		"owner":   project.Owner,
		"project": project.Name,
		"member":  series.Metric.Member,
	}

	points := make([]*write.Point, 0, len(series.Samples))
	for _, sample := range series.Samples {
		fields := map[string]interface{}{series.Metric.Name: sample.Value}
		points = append(points, influxdb2.NewPoint(influxMeasurement, tags, fields, sample.Timestamp))
	}
	return points
}

// Query implements Storage.Query
func (s *influxStorage) Query(ctx context.Context, req *types.QueryRequest) (*types.QueryResult, error) {
	result, err := s.queryAPI.Query(ctx, buildFluxQuery(s.bucket, req))
	if err != nil {
		return nil, fmt.Errorf("influxdb query failed: %w", err)
	}
	defer result.Close()

	out := &types.QueryResult{}
	byMember := make(map[string]int)
	for result.Next() {
		record := result.Record()
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}
		member, _ := record.ValueByKey("member").(string)

		i, seen := byMember[member]
		if !seen {
			i = len(out.Series)
			byMember[member] = i
			out.Series = append(out.Series, types.Series{
				Metric: types.Metric{Name: req.Metric, Member: member},
			})
		}
		out.Series[i].Samples = append(out.Series[i].Samples, types.Sample{
			Timestamp: record.Time().UTC(),
			Value:     value,
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influxdb query failed: %w", err)
	}

	for _, series := range out.Series {
		sortSamples(series.Samples)
	}
	sort.Slice(out.Series, func(i, j int) bool {
		return out.Series[i].Metric.Member < out.Series[j].Metric.Member
	})
	return out, nil
}

// buildFluxQuery selects one field in [Start, End). Tag values are quoted as Flux strings.
func buildFluxQuery(bucket string, req *types.QueryRequest) string {
	query := fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s)
  |> filter(fn: (r) => r.owner == %s and r.project == %s)
  |> filter(fn: (r) => r._field == %s)`,
		strconv.Quote(bucket),
		req.Start.UTC().Format(time.RFC3339Nano),
		req.End.UTC().Format(time.RFC3339Nano),
		strconv.Quote(influxMeasurement),
		strconv.Quote(req.Project.Owner),
		strconv.Quote(req.Project.Name),
		strconv.Quote(req.Metric),
	)
	if req.Member != "" {
		query += fmt.Sprintf("\n  |> filter(fn: (r) => r.member == %s)", strconv.Quote(req.Member))
	}
	return query + "\n  |> sort(columns: [\"member\", \"_time\"])"
}

// Close implements Storage.Close
func (s *influxStorage) Close() error {
	s.client.Close()
	return nil
}
