package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Kyz7/microblog/internal/logging"
)

// Dial connects to the broker and makes sure queueName exists before any
// mail is published.
func Dial(ctx context.Context, url, queueName string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	done := make(chan error, 1)
	go func() {
		done <- declareQueue(ch, queueName)
	}()

	select {
	case <-checkCtx.Done():
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare timeout: %w", checkCtx.Err())
	case err := <-done:
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("declare mail queue failed: %w", err)
		}
		return conn, nil
	}
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

func encode(msg Message) (amqp.Publishing, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal mail payload failed: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
	}, nil
}

// QueueSender publishes messages to a durable RabbitMQ queue; a Worker does
// the actual delivery.
type QueueSender struct {
	conn      *amqp.Connection
	queueName string
}

func NewQueueSender(conn *amqp.Connection, queueName string) *QueueSender {
	return &QueueSender{conn: conn, queueName: queueName}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, q.queueName); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	pub, err := encode(msg)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(ctx, "", q.queueName, false, false, pub); err != nil {
		return fmt.Errorf("publish mail failed: %w", err)
	}
	return nil
}

// Worker consumes the mail queue and delivers through next.
type Worker struct {
	conn      *amqp.Connection
	next      Sender
	queueName string
	log       logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(conn *amqp.Connection, next Sender, queueName string, log logging.Logger) *Worker {
	if log == nil {
		log = logging.Discard()
	}
	return &Worker{
		conn:      conn,
		next:      next,
		queueName: queueName,
		log:       log.With("component", "mail_worker"),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := declareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *Worker) handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		w.log.Error(ctx, "decode mail failed", "error", err)
		return err
	}

	if err := w.next.Send(ctx, msg); err != nil {
		w.log.Error(ctx, "deliver mail failed", "to", msg.To, "error", err)
		return err
	}
	return nil
}

func (w *Worker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
