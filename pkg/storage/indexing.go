package storage

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/vjranagit/telemetry/pkg/types"
)

// Index maps sensor series to their storage ids
type Index struct {
	// Maps series fingerprint to series metadata
	series map[uint64]*seriesMeta
	// Inverted index: project/metric name -> series IDs
	byName map[string][]uint64
}

// seriesMeta is persisted next to the blocks so the index survives a restart
type seriesMeta struct {
	ID      uint64        `json:"id"`
	Project types.Project `json:"project"`
	Metric  types.Metric  `json:"metric"`
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		series: make(map[uint64]*seriesMeta),
		byName: make(map[string][]uint64),
	}
}

// AddSeries registers a series and reports whether it was new
func (idx *Index) AddSeries(project types.Project, metric types.Metric) (uint64, bool) {
	fingerprint := calculateFingerprint(project, metric)
	if _, exists := idx.series[fingerprint]; exists {
		return fingerprint, false
	}

	idx.insert(&seriesMeta{ID: fingerprint, Project: project, Metric: metric})
	return fingerprint, true
}

func (idx *Index) insert(meta *seriesMeta) {
	idx.series[meta.ID] = meta
	key := nameKey(meta.Project, meta.Metric.Name)
	idx.byName[key] = append(idx.byName[key], meta.ID)
}

func (idx *Index) remove(id uint64) {
	meta, ok := idx.series[id]
	if !ok {
		return
	}
	delete(idx.series, id)

	key := nameKey(meta.Project, meta.Metric.Name)
	ids := idx.byName[key]
	for i, other := range ids {
		if other == id {
			idx.byName[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// GetSeries retrieves series metadata by ID
func (idx *Index) GetSeries(id uint64) (*seriesMeta, bool) {
	meta, ok := idx.series[id]
	return meta, ok
}

// FindSeries returns the series of one metric in a project ordered by member.
// An empty member matches every member.
func (idx *Index) FindSeries(project types.Project, name, member string) []*seriesMeta {
	var result []*seriesMeta
	for _, id := range idx.byName[nameKey(project, name)] {
		meta := idx.series[id]
		if member == "" || meta.Metric.Member == member {
			result = append(result, meta)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Metric.Member < result[j].Metric.Member
	})
	return result
}

// SeriesCount returns the number of indexed series
func (idx *Index) SeriesCount() int {
	return len(idx.series)
}

func nameKey(project types.Project, name string) string {
	return project.Owner + "\x00" + project.Name + "\x00" + name
}

// calculateFingerprint hashes the series identity with NUL separators
func calculateFingerprint(project types.Project, metric types.Metric) uint64 {
	d := xxhash.New()
	for i, part := range []string{project.Owner, project.Name, metric.Name, metric.Member} {
		if i > 0 {
			_, _ = d.Write([]byte{0})
		}
		_, _ = d.WriteString(part)
	}
	return d.Sum64()
}
