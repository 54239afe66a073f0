// Package queue_publisher provides functions to publish domain events to
// RabbitMQ. Errors are logged and returned so callers can ignore broker
// failures without interrupting the main request flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/plumka/shop-api/internal/queue"
)

// PublishSaleCompleted publishes a SaleCompletedEvent to the sale.completed
// queue. Messages are marked persistent so they survive broker restarts.
func PublishSaleCompleted(ctx context.Context, event q.SaleCompletedEvent) error {
    return publish(ctx, "sale.completed", event)
}

// PublishReservationReleased publishes a ReservationReleasedEvent to the
// reservation.released queue.
func PublishReservationReleased(ctx context.Context, event q.ReservationReleasedEvent) error {
    return publish(ctx, "reservation.released", event)
}

// publish opens a short-lived connection, declares the target queue
// (idempotent, durable) and publishes one persistent JSON message. The
// function never panics; every error is logged and returned.
func publish(ctx context.Context, queueName string, event any) error {
    conn, err := amqp.Dial(q.BrokerURL())
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        queueName,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,   // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }

    return nil
}
