package schedule

import (
	"fmt"
	"time"

	"github.com/fluxgraph/fluxgraph/engine/core"
)

// DeriveSchedule builds a Schedule for a "scheduler"-category trigger node
// from its custom_config, mirroring the original event handler's field
// extraction: delay_seconds/interval_seconds/max_occurrences/until/context.
func DeriveSchedule(workflowID core.ID, customConfig map[string]any, now time.Time) (*Schedule, error) {
	delaySeconds := intField(customConfig, "delay_seconds", 0)
	sch := &Schedule{
		WorkflowID: workflowID,
		NextRun: now.Add(time.Duration(delaySeconds) * time.Second),
		Context: mapField(customConfig, "context"),
	}
	if interval, ok := customConfig["interval_seconds"]; ok && interval != nil {
		v := int64(intField(customConfig, "interval_seconds", 0))
		sch.IntervalSecs = &v
	}
	if maxOcc, ok := customConfig["max_occurrences"]; ok && maxOcc != nil {
		v := int64(intField(customConfig, "max_occurrences", 0))
		sch.MaxOccurrences = &v
	}
	if until, ok := customConfig["until"]; ok && until != nil {
		t, err := parseUntil(until)
		if err != nil {
			return nil, fmt.Errorf("invalid until field: %w", err)
		}
		sch.Until = &t
	}
	return sch, nil
}

func parseUntil(v any) (time.Time, error) {
	switch val := v.(type) {
	case string:
		// Naive (timezone-less) datetimes are treated as UTC.
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse("2006-01-02T15:04:05", val); err == nil {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized until format: %q", val)
	case time.Time:
		return val.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported until value type %T", v)
	}
}

func intField(m map[string]any, key string, def int64) int64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return def
	}
}

func mapField(m map[string]any, key string) map[string]any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	if asMap, ok := v.(map[string]any); ok {
		return asMap
	}
	return nil
}
