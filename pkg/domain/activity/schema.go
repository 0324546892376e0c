package activity

import "sync"

// Schema is an immutable allow-list of activity fields. A field either keeps
// its scalar value or, when it lists children, is flattened one level.
type Schema struct {
	fields map[string]map[string]struct{}
}

// NewSchema copies fields into a Schema. A nil or empty child slice marks a
// scalar field.
func NewSchema(fields map[string][]string) *Schema {
	s := &Schema{fields: make(map[string]map[string]struct{}, len(fields))}
	for name, children := range fields {
		var set map[string]struct{}
		if len(children) > 0 {
			set = make(map[string]struct{}, len(children))
			for _, c := range children {
				set[c] = struct{}{}
			}
		}
		s.fields[name] = set
	}
	return s
}

// Allows reports whether a top-level field is retained.
func (s *Schema) Allows(field string) bool {
	_, ok := s.fields[field]
	return ok
}

// AllowsNested reports whether child is retained when flattening parent.
func (s *Schema) AllowsNested(parent, child string) bool {
	children, ok := s.fields[parent]
	if !ok || children == nil {
		return false
	}
	_, ok = children[child]
	return ok
}

// Len returns the number of top-level fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// DefaultSchema returns the Garmin Connect activity allow-list. It is built
// once and shared; Schema has no mutators.
var DefaultSchema = sync.OnceValue(func() *Schema {
	return NewSchema(garminActivityFields)
})

var garminActivityFields = map[string][]string{
	"activityId":      nil,
	"startTimeLocal":  nil,
	"activityType":    {"typeId", "typeKey", "parentTypeId"},
	"startTimeGMT":    nil,
	"distance":        nil,
	"duration":        nil,
	"elapsedDuration": nil,
	"movingDuration":  nil,
	"elevationGain":   nil,
	"elevationLoss":   nil,
	"averageSpeed":    nil,
	"maxSpeed":        nil,
	"startLatitude":   nil,
	"startLongitude":  nil,
	"ownerId":         nil,
	"ownerFullName":   nil,
	"calories":        nil,
	"averageHR":       nil,
	"maxHR":           nil,

	"averageRunningCadenceInStepsPerMinute": nil,
	"maxRunningCadenceInStepsPerMinute":     nil,
	"averageBikingCadenceInRevPerMinute":    nil,
	"maxBikingCadenceInRevPerMinute":        nil,
	"averageSwimCadenceInStrokesPerMinute":  nil,
	"maxSwimCadenceInStrokesPerMinute":      nil,

	"steps":                   nil,
	"poolLength":              nil,
	"unitOfPoolLength":        nil,
	"timeZoneId":              nil,
	"beginTimestamp":          nil,
	"sportTypeId":             nil,
	"avgPower":                nil,
	"maxPower":                nil,
	"aerobicTrainingEffect":   nil,
	"anaerobicTrainingEffect": nil,
	"strokes":                 nil,
	"normPower":               nil,
	"leftBalance":             nil,
	"rightBalance":            nil,
	"avgLeftBalance":          nil,
	"max20MinPower":           nil,
	"avgVerticalOscillation":  nil,
	"avgGroundContactTime":    nil,
	"avgStrideLength":         nil,
	"avgFractionalCadence":    nil,
	"maxFractionalCadence":    nil,
	"trainingStressScore":     nil,
	"intensityFactor":         nil,
	"vO2MaxValue":             nil,
	"avgVerticalRatio":        nil,
	"avgGroundContactBalance": nil,
	"lactateThresholdBpm":     nil,
	"lactateThresholdSpeed":   nil,
	"maxFtp":                  nil,
	"avgStrokeDistance":       nil,
	"avgStrokeCadence":        nil,
	"maxStrokeCadence":        nil,
	"workoutId":               nil,
	"avgStrokes":              nil,
	"minStrokes":              nil,
	"deviceId":                nil,
	"minTemperature":          nil,
	"maxTemperature":          nil,
	"minElevation":            nil,
	"maxElevation":            nil,
	"avgVerticalSpeed":        nil,
	"maxVerticalSpeed":        nil,
	"floorsClimbed":           nil,
	"floorsDescended":         nil,
	"locationName":            nil,
	"lapCount":                nil,
	"endLatitude":             nil,
	"endLongitude":            nil,

	"maxAvgPower_1":     nil,
	"maxAvgPower_2":     nil,
	"maxAvgPower_5":     nil,
	"maxAvgPower_10":    nil,
	"maxAvgPower_20":    nil,
	"maxAvgPower_30":    nil,
	"maxAvgPower_60":    nil,
	"maxAvgPower_120":   nil,
	"maxAvgPower_300":   nil,
	"maxAvgPower_600":   nil,
	"maxAvgPower_1200":  nil,
	"maxAvgPower_1800":  nil,
	"maxAvgPower_3600":  nil,
	"maxAvgPower_7200":  nil,
	"maxAvgPower_18000": nil,

	"minActivityLapDuration": nil,
}
