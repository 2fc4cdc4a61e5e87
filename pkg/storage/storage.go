package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vjranagit/telemetry/pkg/types"
)

// Storage interface defines the contract for raw sensor-data storage
type Storage interface {
	// Write writes samples to storage. A sample at an existing timestamp replaces the stored one.
	Write(ctx context.Context, req *types.WriteRequest) error

	// Query returns the samples of one metric in [Start, End), one series per member
	Query(ctx context.Context, req *types.QueryRequest) (*types.QueryResult, error)

	// Close closes the storage
	Close() error
}

// Backend names
const (
	BackendBadger = "badger"
	BackendInflux = "influxdb"
)

// Config holds storage configuration
type Config struct {
	Backend          string
	Path             string
	CompressionLevel int
	// InMemory keeps badger data off disk; used by tests and the listing commands
	InMemory bool
	Influx   InfluxConfig
}

// InfluxConfig locates an InfluxDB v2 bucket
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:          BackendBadger,
		Path:             "./data",
		CompressionLevel: 2,
	}
}

// NewStorage creates the backend named by cfg.Backend
func NewStorage(cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "", BackendBadger:
		return newBadgerStorage(cfg)
	case BackendInflux:
		return newInfluxStorage(cfg.Influx)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

var (
	seriesPrefix = []byte("s/")
	blockPrefix  = []byte("b/")
)

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// badgerStorage implements Storage using BadgerDB. Samples are kept in one block per series and UTC day.
type badgerStorage struct {
	db    *badger.DB
	index *Index
	codec *Codec
	mu    sync.RWMutex
}

func newBadgerStorage(cfg *Config) (*badgerStorage, error) {
	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	codec, err := NewCodec(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}

	s := &badgerStorage{
		db:    db,
		index: NewIndex(),
		codec: codec,
	}
	if err := s.loadIndex(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// loadIndex rebuilds the in-memory index from persisted series metadata
func (s *badgerStorage) loadIndex() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: seriesPrefix, PrefetchValues: true})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var meta seriesMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return err
				}
				s.index.insert(&meta)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to load series %x: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
}

// Write implements Storage.Write
func (s *badgerStorage) Write(ctx context.Context, req *types.WriteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created []uint64
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, series := range req.Series {
			if err := ctx.Err(); err != nil {
				return err
			}

			seriesID, isNew := s.index.AddSeries(req.Project, series.Metric)
			if isNew {
				created = append(created, seriesID)
				meta, _ := s.index.GetSeries(seriesID)
				payload, err := json.Marshal(meta)
				if err != nil {
					return fmt.Errorf("failed to marshal series: %w", err)
				}
				if err := txn.Set(seriesKey(seriesID), payload); err != nil {
					return err
				}
			}

			for day, samples := range groupSamplesByDay(series.Samples) {
				if err := s.mergeBlock(txn, seriesID, day, samples); err != nil {
					return fmt.Errorf("failed to write block: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		for _, id := range created {
			s.index.remove(id)
		}
		return err
	}
	return nil
}

// groupSamplesByDay groups samples by UTC day number
func groupSamplesByDay(samples []types.Sample) map[int64][]types.Sample {
	blocks := make(map[int64][]types.Sample)
	for _, sample := range samples {
		day := dayOf(sample.Timestamp)
		blocks[day] = append(blocks[day], sample)
	}
	return blocks
}

func dayOf(t time.Time) int64 {
	ms := t.UnixMilli()
	day := ms / dayMillis
	if ms < 0 && ms%dayMillis != 0 {
		day--
	}
	return day
}

// mergeBlock combines samples with the stored block of the same day
func (s *badgerStorage) mergeBlock(txn *badger.Txn, seriesID uint64, day int64, samples []types.Sample) error {
	key := blockKey(seriesID, day)

	merged := make(map[int64]float64)
	existing, err := s.readBlock(txn, key)
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	for _, sample := range existing {
		merged[sample.Timestamp.UnixMilli()] = sample.Value
	}
	for _, sample := range samples {
		merged[sample.Timestamp.UnixMilli()] = sample.Value
	}

	out := make([]types.Sample, 0, len(merged))
	for ts, v := range merged {
		out = append(out, types.Sample{Timestamp: time.UnixMilli(ts).UTC(), Value: v})
	}
	sortSamples(out)

	return txn.Set(key, s.codec.Encode(out))
}

// Query implements Storage.Query
func (s *badgerStorage) Query(ctx context.Context, req *types.QueryRequest) (*types.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &types.QueryResult{}
	if !req.End.After(req.Start) {
		return result, nil
	}

	firstDay := dayOf(req.Start)
	lastDay := dayOf(req.End.Add(-time.Millisecond))

	err := s.db.View(func(txn *badger.Txn) error {
		for _, meta := range s.index.FindSeries(req.Project, req.Metric, req.Member) {
			if err := ctx.Err(); err != nil {
				return err
			}

			series := types.Series{Metric: meta.Metric}
			for day := firstDay; day <= lastDay; day++ {
				samples, err := s.readBlock(txn, blockKey(meta.ID, day))
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					return err
				}

				for _, sample := range samples {
					if !sample.Timestamp.Before(req.Start) && sample.Timestamp.Before(req.End) {
						series.Samples = append(series.Samples, sample)
					}
				}
			}

			if len(series.Samples) > 0 {
				result.Series = append(result.Series, series)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readBlock reads and decodes one block
func (s *badgerStorage) readBlock(txn *badger.Txn, key []byte) ([]types.Sample, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}

	var samples []types.Sample
	err = item.Value(func(val []byte) error {
		decoded, err := s.codec.Decode(val)
		samples = decoded
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode block %x: %w", key, err)
	}
	return samples, nil
}

// Close implements Storage.Close
func (s *badgerStorage) Close() error {
	s.codec.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func seriesKey(seriesID uint64) []byte {
	key := make([]byte, 0, len(seriesPrefix)+8)
	key = append(key, seriesPrefix...)
	return binary.BigEndian.AppendUint64(key, seriesID)
}

// blockKey is prefix, series ID and day number, big endian so keys sort by day
func blockKey(seriesID uint64, day int64) []byte {
	key := make([]byte, 0, len(blockPrefix)+16)
	key = append(key, blockPrefix...)
	key = binary.BigEndian.AppendUint64(key, seriesID)
	return binary.BigEndian.AppendUint64(key, uint64(day))
}

func sortSamples(samples []types.Sample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
}
