package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func TestStreamRejectsDuplicatePeriod(t *testing.T) {
	s := NewStream(NewTag("t"))
	require.NoError(t, s.Add(NewDataPoint(DayOf(day0), Int(1))))

	err := s.Add(NewDataPoint(DayOf(day0), Int(2)))
	require.ErrorIs(t, err, ErrDuplicatePeriod)

	dp, ok := s.Point(DayOf(day0))
	require.True(t, ok)
	v, _ := dp.Value()
	assert.True(t, v.Equal(Int(1)), "original point must survive")
}

func TestStreamRejectsMixedPeriodKinds(t *testing.T) {
	s := NewStream(NewTag("t"))
	require.NoError(t, s.Add(NewDataPoint(DayOf(day0), Int(1))))

	err := s.Add(NewDataPoint(WeekOf(day0.AddDate(0, 0, 7)), Int(1)))
	assert.ErrorIs(t, err, ErrPeriodKindMismatch)
	assert.Equal(t, 1, s.Len())
}

func TestStreamPointsAreOrdered(t *testing.T) {
	s := NewStream(NullTag())
	for _, offset := range []int{3, 0, 2, 1} {
		require.NoError(t, s.Add(NewDataPoint(DayOf(day0.AddDate(0, 0, offset)), Int(int64(offset)))))
	}

	points := s.Points()
	require.Len(t, points, 4)
	for i, dp := range points {
		assert.Equal(t, DayOf(day0.AddDate(0, 0, i)), dp.Period())
	}

	// the returned slice is a copy
	points[0] = NullDataPoint(DayOf(day0))
	first, _ := s.Point(DayOf(day0))
	assert.False(t, first.IsNull())
}

func TestNullDataPointIsNotZero(t *testing.T) {
	p := DayOf(day0)
	assert.False(t, NullDataPoint(p).Equal(NewDataPoint(p, Int(0))))
	assert.True(t, NullDataPoint(p).Equal(NullDataPoint(p)))
	assert.False(t, NewDataPoint(p, Int(2)).Equal(NewDataPoint(p, Float(2))))
}

func TestCollectionRejectsDuplicateTags(t *testing.T) {
	sc := NewStreamCollection("c", Project{Owner: "o", Name: "p"}, nil)
	require.NoError(t, sc.Add(NewStream(NewTag("a"))))
	require.ErrorIs(t, sc.Add(NewStream(NewTag("a"))), ErrDuplicateTag)

	require.NoError(t, sc.Add(NewStream(NullTag())))
	require.ErrorIs(t, sc.Add(NewStream(NullTag())), ErrDuplicateTag)

	assert.Equal(t, []Tag{NewTag("a"), NullTag()}, sc.Tags())
	assert.Equal(t, 2, sc.Len())
}

func TestCollectionFreezesStreams(t *testing.T) {
	s := NewStream(NewTag("a"))
	require.NoError(t, s.Add(NewDataPoint(DayOf(day0), Int(1))))

	sc := NewStreamCollection("c", Project{Owner: "o", Name: "p"}, nil)
	require.NoError(t, sc.Add(s))

	shared, ok := sc.Stream(NewTag("a"))
	require.True(t, ok)
	require.ErrorIs(t, shared.Add(NewDataPoint(DayOf(day0.AddDate(0, 0, 1)), Int(2))), ErrStreamFrozen)
	require.ErrorIs(t, sc.Streams()[0].Add(NewDataPoint(DayOf(day0.AddDate(0, 0, 1)), Int(2))), ErrStreamFrozen)
	assert.Equal(t, 1, s.Len())

	// a frozen stream can still join another collection
	other := NewStreamCollection("d", Project{Owner: "o", Name: "p"}, nil)
	require.NoError(t, other.Add(s))
}

func TestPeriodCompareAcrossKindsFails(t *testing.T) {
	_, err := DayOf(day0).Compare(WeekOf(day0))
	assert.ErrorIs(t, err, ErrPeriodKindMismatch)
	assert.False(t, DayOf(day0).Before(WeekOf(day0.AddDate(0, 1, 0))))
}

func TestPeriodNext(t *testing.T) {
	// 2024-03-04 is a Monday
	assert.Equal(t, WeekOf(day0), WeekOf(day0.AddDate(0, 0, 6)))
	assert.Equal(t, WeekOf(day0.AddDate(0, 0, 7)), WeekOf(day0).Next())
	assert.Equal(t, MonthOf(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)), MonthOf(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)).Next())
	assert.Equal(t, "Month 2024-03", MonthOf(day0).String())
}

func TestValueKinds(t *testing.T) {
	var nilCollection *StreamCollection
	assert.Equal(t, KindText, KindOf(Text("x")))
	assert.Equal(t, KindNumber, KindOf(Float(1.5)))
	assert.Equal(t, KindCollection, KindOf(NewStreamCollection("c", Project{}, nil)))
	assert.Equal(t, KindInvalid, KindOf(nilCollection))
	assert.Equal(t, KindInvalid, KindOf(nil))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "4", Int(4).String())
	assert.Equal(t, "4.5", Float(4.5).String())
	assert.True(t, Float(3).IsWholeValued())
	assert.False(t, Float(3.25).IsWholeValued())

	n, err := ParseNumber("12")
	require.NoError(t, err)
	assert.True(t, n.IsIntegral())

	n, err = ParseNumber("1.5")
	require.NoError(t, err)
	assert.False(t, n.IsIntegral())

	_, err = ParseNumber("abc")
	assert.Error(t, err)
}
