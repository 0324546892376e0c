package activity

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancerinf/garmin-importer/pkg/failures"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		activity NormalizedActivity
		wantErr  bool
	}{
		{"valid numeric id", NormalizedActivity{"beginTimestamp": Int(1), "activityId": Int(9)}, false},
		{"valid string id", NormalizedActivity{"beginTimestamp": Int(1), "activityId": String("9")}, false},
		{"missing timestamp", NormalizedActivity{"activityId": Int(9)}, true},
		{"missing id", NormalizedActivity{"beginTimestamp": Int(1)}, true},
		{"zero timestamp", NormalizedActivity{"beginTimestamp": Int(0), "activityId": Int(9)}, true},
		{"empty id", NormalizedActivity{"beginTimestamp": Int(1), "activityId": String("")}, true},
		{"string timestamp", NormalizedActivity{"beginTimestamp": String("1700000000000"), "activityId": Int(9)}, true},
		{"empty", NormalizedActivity{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.activity.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, failures.ErrInvalidActivity)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBeginTimestampAcceptsIntegralFloat(t *testing.T) {
	ts, ok := NormalizedActivity{"beginTimestamp": Float(1700000000000)}.BeginTimestamp()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000000), ts)

	_, ok = NormalizedActivity{"beginTimestamp": Float(1.5)}.BeginTimestamp()
	assert.False(t, ok)
}

func TestBeginTimestampRejectsFloatOutsideInt64(t *testing.T) {
	for _, f := range []float64{1e19, -1e19, math.Exp2(63), math.Inf(1), math.Inf(-1), math.NaN()} {
		a := NormalizedActivity{"activityId": String("1"), "beginTimestamp": Float(f)}

		_, ok := a.BeginTimestamp()
		assert.False(t, ok, "%v", f)
		assert.ErrorIs(t, a.Validate(), failures.ErrInvalidActivity, "%v", f)
	}

	ts, ok := NormalizedActivity{"beginTimestamp": Float(math.MinInt64)}.BeginTimestamp()
	assert.True(t, ok)
	assert.Equal(t, int64(math.MinInt64), ts)
}

func TestMarshalJSONKeepsNumericTypes(t *testing.T) {
	a := NormalizedActivity{
		"beginTimestamp": Int(1700000000000),
		"activityId":     String("123"),
		"distance":       Float(10.5),
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"beginTimestamp":1700000000000,"activityId":"123","distance":10.5}`, string(data))
}

func TestDecodeRawActivities(t *testing.T) {
	list, err := DecodeRawActivities(jsonReader(`[{"activityId": 1, "duration": 1.5, "ok": true, "x": null}, {"activityId": 2}]`))
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, Int(1), list[0]["activityId"])
	assert.Equal(t, Float(1.5), list[0]["duration"])
	assert.Equal(t, Bool(true), list[0]["ok"])
	assert.Equal(t, Null{}, list[0]["x"])
}

func TestDecodeRawActivitiesRejectsNonObjects(t *testing.T) {
	_, err := DecodeRawActivities(jsonReader(`[1, 2]`))
	assert.Error(t, err)
}

func TestArtifactObject(t *testing.T) {
	assert.Equal(t, "runner@example.com/1700000000000/123.zip", ArtifactObject("runner@example.com", 1700000000000, "123", "zip"))

	bucket, object, ok := ParseGCSURI(GCSURI("archive", "a/1/2.gpx"))
	require.True(t, ok)
	assert.Equal(t, "archive", bucket)
	assert.Equal(t, "a/1/2.gpx", object)

	_, _, ok = ParseGCSURI("s3://archive/a")
	assert.False(t, ok)
}

func jsonReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
