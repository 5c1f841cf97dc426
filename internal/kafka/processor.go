// Package kafka runs the background event processor that reacts to feed
// sync completions by recorrelating every project.
package kafka

import (
	"context"
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/correlate"
	"github.com/riskhub/riskhub-backend/database"
	"github.com/riskhub/riskhub-backend/events/modules/feedsync"
	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/ssvc"
	"github.com/riskhub/riskhub-backend/util"
)

// DefaultTopic carries feed sync completion events.
const DefaultTopic = "feed-events"

// projectStore adapts the database package to the handler's lister.
type projectStore struct {
	db arangodb.Database
}

func (p projectStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	return database.ListProjects(ctx, p.db)
}

// RunEventProcessor starts the background consumer. It returns after the
// initial broker check; consumption runs until ctx is cancelled.
func RunEventProcessor(ctx context.Context, db arangodb.Database, engine *correlate.Engine, assessor *ssvc.Service, logger *zap.Logger) error {
	brokersEnv := os.Getenv("KAFKA_BROKERS")
	var brokers []string
	if brokersEnv != "" {
		brokers = strings.Split(brokersEnv, ",")
	} else {
		brokers = []string{"localhost:9092"}
	}

	username := os.Getenv("KAFKA_API_KEY")
	password := os.Getenv("KAFKA_API_SECRET")

	var dialer *kafka.Dialer
	if username != "" && password != "" {
		mechanism := plain.Mechanism{
			Username: username,
			Password: password,
		}
		dialer = &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			SASLMechanism: mechanism,
			TLS:           &tls.Config{},
		}
	} else {
		dialer = &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		}
	}

	topic := util.GetEnvDefault("KAFKA_TOPIC", DefaultTopic)

	var conn *kafka.Conn
	var err error
	for i := 1; i <= 3; i++ {
		logger.Info("Kafka connection attempt", zap.Int("attempt", i))
		conn, err = dialer.DialContext(ctx, "tcp", brokers[0])
		if err == nil {
			conn.Close()
			break
		}
		if i < 3 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  "riskhub-backend-worker",
		Topic:    topic,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})

	go func() {
		defer reader.Close()

		projects := projectStore{db: db}
		logger.Info("Event processor started", zap.String("topic", topic))

		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := reader.ReadMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					continue
				}
				if err := feedsync.HandleSyncCompleted(ctx, msg.Value, projects, engine, assessor, logger); err != nil {
					logger.Warn("Event handling failed", zap.Error(err))
				}
			}
		}
	}()

	return nil
}
