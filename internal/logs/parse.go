package logs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"comicdl/internal/logging"
)

// ParseLine decodes one JSON log record. Lines written by the console
// handler are not JSON and report false.
func ParseLine(line string) (logging.LogEvent, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return logging.LogEvent{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return logging.LogEvent{}, false
	}

	var evt logging.LogEvent
	for key, value := range raw {
		switch key {
		case "ts", "time":
			if text, ok := value.(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
					evt.Timestamp = ts
				}
			}
		case "level":
			evt.Level = strings.ToUpper(stringValue(value))
		case "msg":
			evt.Message = stringValue(value)
		case logging.FieldComponent:
			evt.Component = stringValue(value)
		case logging.FieldStage:
			evt.Stage = stringValue(value)
		case logging.FieldCorrelationID:
			evt.CorrelationID = stringValue(value)
		case logging.FieldEpisodeID:
			if id, err := strconv.ParseInt(stringValue(value), 10, 64); err == nil {
				evt.EpisodeID = id
			}
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string)
			}
			evt.Fields[key] = stringValue(value)
		}
	}
	return evt, true
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
