package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
)

// parseBrokers разбирает список брокеров из конфигурации.
// Пустые элементы и лишние пробелы отбрасываются.
func parseBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		if addr := strings.TrimSpace(part); addr != "" {
			brokers = append(brokers, addr)
		}
	}
	return brokers
}

// initKafkaProducer подключается к Kafka, если брокеры заданы.
// Kafka для витрины опциональна: при недоступности брокеров сервис
// продолжает работать на одних KV-ящиках, поэтому ошибка только логируется.
func initKafkaProducer(rawBrokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokers := parseBrokers(rawBrokers)
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("kafka недоступна, уведомления пойдут только в KV-ящики")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer подключён")
	return producer, nil
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("не удалось корректно закрыть kafka producer")
		return
	}
	logger.Info("kafka producer закрыт")
}
