package event

import (
	"strconv"
	"time"
)

// fieldAliases maps each canonical field name to the source key names
// producers have used for it, in priority order; the first key present in a
// record wins. DeepStream writes the first name in each list, the alternates
// cover older pipeline builds.
var fieldAliases = map[string][]string{
	"frame_number": {"frame_number", "frame", "frame_num"},
	"source_id":    {"source_id", "source", "camera_id"},
	"vlm_response": {"vlm_response", "vlm", "response"},
	"model_name":   {"model_name", "model"},
	"timestamp":    {"timestamp", "time", "ts"},
}

// Aliases returns the accepted source key names for a canonical field, in
// priority order.
func Aliases(canonical string) []string {
	names := fieldAliases[canonical]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// fieldValue resolves a canonical field against the alias table. The second
// return reports whether any alias was present.
func fieldValue(fields map[string]string, canonical string) (string, bool) {
	for _, name := range fieldAliases[canonical] {
		if value, ok := fields[name]; ok {
			return value, true
		}
	}
	return "", false
}

// Normalize converts a raw upstream record into a fully populated VLMResult.
// It never fails: absent fields take their documented default and numeric
// fields that do not parse fall back to their default instead of propagating
// an error.
func Normalize(fields map[string]string, messageID string) VLMResult {
	return normalizeAt(fields, messageID, time.Now())
}

func normalizeAt(fields map[string]string, messageID string, now time.Time) VLMResult {
	result := VLMResult{
		MessageID:   messageID,
		FrameNumber: intField(fields, "frame_number", 0),
		SourceID:    intField(fields, "source_id", 0),
		ModelName:   DefaultModelName,
		Timestamp:   int64Field(fields, "timestamp", now.UnixMilli()),
		Type:        TypeVLMResult,
	}
	if value, ok := fieldValue(fields, "vlm_response"); ok {
		result.VLMResponse = value
	}
	if value, ok := fieldValue(fields, "model_name"); ok {
		result.ModelName = value
	}
	// The discriminator is written verbatim by every producer, no aliases.
	if value, ok := fields["type"]; ok {
		result.Type = value
	}
	return result
}

// ParseIssues reports the canonical numeric fields whose matched value is
// present but not parseable. Normalization still succeeds for such records;
// callers use this to log the offending record for diagnosis.
func ParseIssues(fields map[string]string) []string {
	var issues []string
	for _, canonical := range []string{"frame_number", "source_id", "timestamp"} {
		if value, ok := fieldValue(fields, canonical); ok {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				issues = append(issues, canonical)
			}
		}
	}
	return issues
}

func intField(fields map[string]string, canonical string, def int) int {
	value, ok := fieldValue(fields, canonical)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func int64Field(fields map[string]string, canonical string, def int64) int64 {
	value, ok := fieldValue(fields, canonical)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
