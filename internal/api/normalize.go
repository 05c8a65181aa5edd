package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Alternate field names observed across backend versions, canonical name first.
var (
	uiURLKeys     = []string{"ui_url", "url"}
	durationKeys  = []string{"duration", "runtime"}
	usersKeys     = []string{"users", "user_count"}
	scriptKeys    = []string{"script", "script_name", "filename"}
	generatedKeys = []string{"filename", "script_name", "file"}

	statsKeys = map[string][]string{
		"current_rps":          {"current_rps", "rps"},
		"total_requests":       {"total_requests", "requests"},
		"avg_response_time":    {"avg_response_time", "avg_response"},
		"failures":             {"failures", "failed_requests"},
		"min_response_time":    {"min_response_time"},
		"max_response_time":    {"max_response_time"},
		"median_response_time": {"median_response_time"},
		"p95_response_time":    {"p95_response_time"},
	}
)

// object is a decoded JSON object whose values are still raw.
type object map[string]json.RawMessage

func decodeObject(body []byte) (object, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// lookup returns the first present, non-null value among keys.
func (o object) lookup(keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		raw, ok := o[key]
		if !ok || isNull(raw) {
			continue
		}
		return raw, true
	}
	return nil, false
}

// text returns the first non-empty string among keys.
func (o object) text(keys ...string) string {
	for _, key := range keys {
		raw, ok := o.lookup(key)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// number returns the first numeric value among keys. Numeric strings are
// accepted; any other type is reported as an error.
func (o object) number(keys ...string) (*float64, error) {
	for _, key := range keys {
		raw, ok := o.lookup(key)
		if !ok {
			continue
		}
		value, err := parseNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return &value, nil
	}
	return nil, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr == nil {
			return parsed, nil
		}
	}
	return 0, fmt.Errorf("expected a number, got %s", truncateRaw(raw))
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func truncateRaw(raw json.RawMessage) string {
	const limit = 64
	s := string(bytes.TrimSpace(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// scalarString renders a string or number value as text; anything else is "".
func scalarString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawOrString keeps valid JSON as-is and wraps anything else as a JSON string.
func rawOrString(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(append([]byte(nil), trimmed...))
	}
	encoded, _ := json.Marshal(string(trimmed))
	return encoded
}

func decodeConvert(body []byte) (json.RawMessage, error) {
	const missing = "No flow_data found in response"
	obj, ok := decodeObject(body)
	if !ok {
		return nil, contractError("convert", missing, nil)
	}
	flow, ok := obj.lookup("flow_data")
	if !ok {
		return nil, contractError("convert", missing, nil)
	}
	return append(json.RawMessage(nil), bytes.TrimSpace(flow)...), nil
}

func decodeGenerate(body []byte) (string, error) {
	if isNull(body) {
		return "", nil
	}
	obj, ok := decodeObject(body)
	if !ok {
		return "", contractError("generate", "Unrecognized generate response", nil)
	}
	return obj.text(generatedKeys...), nil
}

// decodeRunStatus maps a /run or /status payload into RunStatus. An empty or
// null body is an idle status; any non-object payload is a contract failure.
func decodeRunStatus(op string, body []byte) (RunStatus, error) {
	if isNull(body) {
		return RunStatus{}, nil
	}
	obj, ok := decodeObject(body)
	if !ok {
		return RunStatus{}, contractError(op, "Unrecognized run status response", nil)
	}

	status := RunStatus{
		UIURL:  obj.text(uiURLKeys...),
		Script: obj.text(scriptKeys...),
	}

	if raw, ok := obj.lookup("process_id"); ok {
		id := scalarString(raw)
		if id == "" {
			return RunStatus{}, contractError(op, "process_id must be a string or number", nil)
		}
		status.ProcessID = id
	}

	status.Running = runningFlag(obj)

	duration, err := obj.number(durationKeys...)
	if err != nil {
		return RunStatus{}, contractError(op, "Invalid run duration", err)
	}
	status.Duration = duration

	users, err := obj.number(usersKeys...)
	if err != nil {
		return RunStatus{}, contractError(op, "Invalid user count", err)
	}
	if users != nil {
		count := int64(*users)
		status.Users = &count
	}

	if raw, ok := obj.lookup("stats"); ok {
		stats, err := decodeStats(raw)
		if err != nil {
			return RunStatus{}, contractError(op, "Invalid run stats", err)
		}
		status.Stats = stats
	}
	return status, nil
}

func runningFlag(obj object) bool {
	if raw, ok := obj.lookup("running"); ok {
		var running bool
		if err := json.Unmarshal(raw, &running); err == nil && running {
			return true
		}
	}
	return strings.EqualFold(obj.text("status"), "running")
}

func decodeStats(raw json.RawMessage) (*RunStats, error) {
	obj, ok := decodeObject(raw)
	if !ok {
		return nil, fmt.Errorf("stats must be an object, got %s", truncateRaw(raw))
	}
	values := make(map[string]*float64, len(statsKeys))
	for canonical, keys := range statsKeys {
		value, err := obj.number(keys...)
		if err != nil {
			return nil, err
		}
		values[canonical] = value
	}
	return &RunStats{
		CurrentRPS:         values["current_rps"],
		TotalRequests:      values["total_requests"],
		AvgResponseTime:    values["avg_response_time"],
		Failures:           values["failures"],
		MinResponseTime:    values["min_response_time"],
		MaxResponseTime:    values["max_response_time"],
		MedianResponseTime: values["median_response_time"],
		P95ResponseTime:    values["p95_response_time"],
	}, nil
}

func decodeHealth(body []byte) HealthResult {
	result := HealthResult{Raw: rawOrString(body)}
	if obj, ok := decodeObject(body); ok {
		result.Status = obj.text("status")
	}
	return result
}

func decodeInfo(body []byte) ServerInfo {
	info := ServerInfo{Raw: rawOrString(body)}
	if obj, ok := decodeObject(body); ok {
		if raw, ok := obj.lookup("version"); ok {
			info.Version = scalarString(raw)
		}
	}
	return info
}
