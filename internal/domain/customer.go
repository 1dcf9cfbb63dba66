package domain

import "time"

// CustomerInfo is written once per order, at confirmation time, and
// carries the payment metadata the confirm use case attaches.
type CustomerInfo struct {
	OrderID       string    `dynamodbav:"order_id"`
	CustomerID    string    `dynamodbav:"customer_id"`
	Name          string    `dynamodbav:"name"`
	Email         string    `dynamodbav:"email"`
	Phone         string    `dynamodbav:"phone"`
	Address       string    `dynamodbav:"address"`
	City          string    `dynamodbav:"city"`
	Country       string    `dynamodbav:"country"`
	PaymentMethod string    `dynamodbav:"payment_method"`
	CreatedAt     time.Time `dynamodbav:"created_at,unixtime"`
	UpdatedAt     time.Time `dynamodbav:"updated_at,unixtime"`
}
