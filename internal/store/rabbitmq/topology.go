package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterQueue names the queue that rejected ingestion jobs land in.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// queueArgs routes nack(requeue=false) on the work queue to its DLQ through
// the default exchange.
func queueArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadLetterQueue(queue),
	}
}

// declareTopology is idempotent; the API and the worker both run it, so
// either may start first.
func declareTopology(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(DeadLetterQueue(queue), true, false, false, false, nil); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(queue, true, false, false, false, queueArgs(queue))
	return err
}

func dial(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
