package kafka_infra

import (
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func debugLogger(logger *zap.Logger) kafka.LoggerFunc {
	return func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }
}

func errorLogger(logger *zap.Logger) kafka.LoggerFunc {
	return func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }
}
