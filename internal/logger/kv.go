package logger

import "github.com/rs/zerolog"

// KVLogger logs a message followed by alternating key/value pairs.
// It satisfies orchestrator.Logger.
type KVLogger struct {
	logger zerolog.Logger
}

// NewKVLogger wraps a zerolog logger
func NewKVLogger(logger zerolog.Logger) *KVLogger {
	return &KVLogger{logger: logger}
}

// Info logs at info level
func (k *KVLogger) Info(msg string, fields ...interface{}) {
	k.logger.Info().Fields(pairs(fields)).Msg(msg)
}

// Error logs at error level; err may be nil
func (k *KVLogger) Error(msg string, err error, fields ...interface{}) {
	k.logger.Error().Err(err).Fields(pairs(fields)).Msg(msg)
}

// Debug logs at debug level
func (k *KVLogger) Debug(msg string, fields ...interface{}) {
	k.logger.Debug().Fields(pairs(fields)).Msg(msg)
}

// pairs drops a trailing key without a value and non-string keys
func pairs(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		if _, ok := fields[i].(string); !ok {
			continue
		}
		out = append(out, fields[i], fields[i+1])
	}
	return out
}
