package repository

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"plantlab/internal/models"
)

func TestRangeQuery_InclusiveStop(t *testing.T) {
	q := rangeQuery("plantlab", "S1", 1700000000, 1700000059)

	assert.Contains(t, q, `from(bucket: "plantlab")`)
	assert.Contains(t, q, "range(start: 2023-11-14T22:13:20Z, stop: 2023-11-14T22:14:20Z)")
	assert.Contains(t, q, `r["_measurement"] == "soil_moisture"`)
	assert.Contains(t, q, `r["sensor_id"] == "S1"`)
	assert.Contains(t, q, "pivot(")
}

func TestLatestQuery_UsesLast(t *testing.T) {
	q := latestQuery("plantlab", "S2")

	assert.Contains(t, q, "last()")
	assert.Contains(t, q, `r["sensor_id"] == "S2"`)
}

func TestFluxString_Escapes(t *testing.T) {
	assert.Equal(t, `"S1"`, fluxString("S1"))
	assert.Equal(t, `"a\"b\\c"`, fluxString(`a"b\c`))
	assert.Equal(t, `"\${x}"`, fluxString("${x}"))
}

func TestRecordToReading(t *testing.T) {
	ts := time.Unix(1700000123, 0).UTC()
	rec := query.NewFluxRecord(0, map[string]interface{}{
		"_time":     ts,
		"sensor_id": "S1",
		"percent":   42.5,
		"adc":       int64(2100),
	})

	r := recordToReading(rec)

	assert.Equal(t, "S1", r.SensorID)
	assert.Equal(t, int64(1700000123), r.Timestamp)
	assert.Equal(t, 42.5, r.Percent)
	assert.Equal(t, 2100, r.RawADC)
}

func TestPoint_SameSecondReadingsStayDistinct(t *testing.T) {
	repo := NewInfluxDBRepository("http://localhost:8086", "token", "org", "plantlab", zap.NewNop())
	defer repo.Close()

	first := repo.point(models.Reading{SensorID: "S1", Timestamp: 1700000000, Percent: 10})
	second := repo.point(models.Reading{SensorID: "S1", Timestamp: 1700000000, Percent: 20})

	assert.NotEqual(t, first.Time(), second.Time())
	assert.True(t, first.Time().Before(second.Time()))
	assert.Equal(t, int64(1700000000), first.Time().Unix())
	assert.Equal(t, int64(1700000000), second.Time().Unix())

	rec := query.NewFluxRecord(0, map[string]interface{}{"_time": second.Time(), "sensor_id": "S1", "percent": 20.0})
	assert.Equal(t, int64(1700000000), recordToReading(rec).Timestamp)
}
