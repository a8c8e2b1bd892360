package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field names shared across components.
const (
	FieldURL        = "url"
	FieldETag       = "etag"
	FieldStatusCode = "status_code"
	FieldFaultKind  = "fault_kind"
	FieldFlagCount  = "flag_count"
	FieldInterval   = "interval"
	FieldEventKind  = "event_kind"
)

func String(key, value string) zap.Field {
	return zap.String(key, value)
}

func Int(key string, value int) zap.Field {
	return zap.Int(key, value)
}

func Int64(key string, value int64) zap.Field {
	return zap.Int64(key, value)
}

func Duration(key string, value time.Duration) zap.Field {
	return zap.Duration(key, value)
}

func Bool(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}

func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}
