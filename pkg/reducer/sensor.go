package reducer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/vjranagit/telemetry/pkg/storage"
	"github.com/vjranagit/telemetry/pkg/types"
)

// AllMembers selects every project member with data in any of a reducer's modes
const AllMembers = "*"

// Aggregations applied to the samples falling into one period
const (
	AggregateSum  = "sum"
	AggregateLast = "last"
)

// SensorSpec configures a reducer that reads one stored metric per mode
type SensorSpec struct {
	DefaultMode string     `yaml:"default_mode"`
	Modes       []ModeSpec `yaml:"modes"`
}

// ModeSpec maps a reducer mode to a stored metric
type ModeSpec struct {
	Name      string `yaml:"name"`
	Metric    string `yaml:"metric"`
	Aggregate string `yaml:"aggregate"`
	// Integral values are reported as integers
	Integral bool `yaml:"integral"`
}

// sensorReducer builds one stream per member from raw sensor samples.
// Params: [mode, member, cumulative], each optional; an empty string takes the default.
type sensorReducer struct {
	name        string
	store       storage.Storage
	defaultMode string
	modes       map[string]ModeSpec
}

func newSensorReducer(name string, store storage.Storage, spec *SensorSpec) (*sensorReducer, error) {
	if store == nil {
		return nil, fmt.Errorf("reducer %s needs a store", name)
	}
	if spec == nil || len(spec.Modes) == 0 {
		return nil, fmt.Errorf("reducer %s declares no modes", name)
	}

	r := &sensorReducer{
		name:        name,
		store:       store,
		defaultMode: spec.DefaultMode,
		modes:       make(map[string]ModeSpec, len(spec.Modes)),
	}
	for _, m := range spec.Modes {
		if m.Name == "" || m.Metric == "" {
			return nil, fmt.Errorf("reducer %s: mode needs a name and a metric", name)
		}
		switch m.Aggregate {
		case AggregateSum, AggregateLast:
		default:
			return nil, fmt.Errorf("reducer %s: mode %s has unknown aggregate %q", name, m.Name, m.Aggregate)
		}
		r.modes[m.Name] = m
	}
	if r.defaultMode == "" {
		r.defaultMode = spec.Modes[0].Name
	}
	if _, ok := r.modes[r.defaultMode]; !ok {
		return nil, fmt.Errorf("reducer %s: default mode %s is not declared", name, r.defaultMode)
	}
	return r, nil
}

type sensorParams struct {
	mode       ModeSpec
	member     string
	cumulative bool
}

func (r *sensorReducer) parseParams(params []string) (sensorParams, error) {
	if len(params) > 3 {
		return sensorParams{}, fmt.Errorf("%w: expected at most 3 parameters, got %d", ErrParameter, len(params))
	}
	param := func(def string, idx int) string {
		if idx < len(params) && params[idx] != "" {
			return params[idx]
		}
		return def
	}

	p := sensorParams{member: param(AllMembers, 1)}

	modeName := param(r.defaultMode, 0)
	mode, ok := r.modes[modeName]
	if !ok {
		return sensorParams{}, fmt.Errorf("%w: unknown mode %q", ErrParameter, modeName)
	}
	p.mode = mode

	cumulative, err := strconv.ParseBool(param("false", 2))
	if err != nil {
		return sensorParams{}, fmt.Errorf("%w: cumulative must be true or false, got %q", ErrParameter, params[2])
	}
	p.cumulative = cumulative
	return p, nil
}

// Compute implements Reducer
func (r *sensorReducer) Compute(ctx context.Context, project types.Project, interval types.Interval, params []string) (*types.StreamCollection, error) {
	p, err := r.parseParams(params)
	if err != nil {
		return nil, err
	}

	result := types.NewStreamCollection(r.name, project, interval)
	periods := interval.Periods()
	if len(periods) == 0 {
		return result, nil
	}

	members, err := r.load(ctx, project, periods, p)
	if err != nil {
		return nil, err
	}
	if p.member != AllMembers {
		if _, ok := members[p.member]; !ok {
			// a named member without data still gets an all-null stream
			members[p.member] = &memberData{active: make([]bool, len(periods))}
		}
	}

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		md := members[name]
		stream, err := buildStream(types.NewTag(name), periods, md.samples, md.active, p)
		if err != nil {
			return nil, err
		}
		if err := result.Add(stream); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// memberData holds one member's samples of the requested mode and the periods in which
// it reported any of the reducer's metrics
type memberData struct {
	samples []types.Sample
	active  []bool
}

// load reads every mode's metric so that members known to any mode share one member set
func (r *sensorReducer) load(ctx context.Context, project types.Project, periods []types.Period, p sensorParams) (map[string]*memberData, error) {
	members := make(map[string]*memberData)
	for _, mode := range r.modes {
		req := &types.QueryRequest{
			Project: project,
			Metric:  mode.Metric,
			Start:   periods[0].Start(),
			End:     periods[len(periods)-1].End(),
		}
		if p.member != AllMembers {
			req.Member = p.member
		}
		data, err := r.store.Query(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", mode.Metric, err)
		}

		for _, s := range data.Series {
			if len(s.Samples) == 0 {
				continue
			}
			md, ok := members[s.Metric.Member]
			if !ok {
				md = &memberData{active: make([]bool, len(periods))}
				members[s.Metric.Member] = md
			}
			markActive(md.active, periods, s.Samples)
			if mode.Name == p.mode.Name {
				md.samples = s.Samples
			}
		}
	}
	return members, nil
}

func markActive(active []bool, periods []types.Period, samples []types.Sample) {
	for _, sample := range samples {
		i := sort.Search(len(periods), func(i int) bool {
			return sample.Timestamp.Before(periods[i].End())
		})
		if i < len(periods) && !sample.Timestamp.Before(periods[i].Start()) {
			active[i] = true
		}
	}
}

// buildStream aggregates samples, sorted by time, into one point per period. A sum
// counts zero in a period where the member was active in another mode.
func buildStream(tag types.Tag, periods []types.Period, samples []types.Sample, active []bool, p sensorParams) (*types.Stream, error) {
	stream := types.NewStream(tag)

	var running float64
	seen := false
	i := 0
	for idx, period := range periods {
		start, end := period.Start(), period.End()
		for i < len(samples) && samples[i].Timestamp.Before(start) {
			i++
		}

		var value float64
		found := false
		for ; i < len(samples) && samples[i].Timestamp.Before(end); i++ {
			found = true
			if p.mode.Aggregate == AggregateLast {
				value = samples[i].Value
			} else {
				value += samples[i].Value
			}
		}

		if !found && p.mode.Aggregate == AggregateSum && active[idx] {
			found = true
		}

		if p.cumulative {
			if found {
				if p.mode.Aggregate == AggregateLast {
					running = value
				} else {
					running += value
				}
				seen = true
			}
			value, found = running, seen
		}

		dp := types.NullDataPoint(period)
		if found {
			dp = types.NewDataPoint(period, toNumber(value, p.mode.Integral))
		}
		if err := stream.Add(dp); err != nil {
			return nil, err
		}
	}
	return stream, nil
}

func toNumber(v float64, integral bool) types.Number {
	if integral && v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return types.Int(int64(v))
	}
	return types.Float(v)
}
