package events_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"market/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockBroker is a mock implementation of events.Broker
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) PublishJSON(ctx context.Context, routingKey string, v any) error {
	args := m.Called(ctx, routingKey, v)
	return args.Error(0)
}

func TestBrokerPublisher_UsesEventTypeAsRoutingKey(t *testing.T) {
	broker := new(MockBroker)
	publisher := events.NewBrokerPublisher(broker)
	event := events.New(events.OrderCancelled, "order-1")

	broker.On("PublishJSON", mock.Anything, events.OrderCancelled, event).Return(nil).Once()
	err := publisher.Publish(context.Background(), event)
	assert.NoError(t, err)

	broker.On("PublishJSON", mock.Anything, events.OrderCancelled, event).Return(fmt.Errorf("channel closed")).Once()
	err = publisher.Publish(context.Background(), event)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "order-1")
	broker.AssertExpectations(t)
}

func TestAuditHandler(t *testing.T) {
	handle := events.AuditHandler(zap.NewNop())

	body, _ := json.Marshal(events.New(events.PaymentCreated, "order-2"))
	assert.NoError(t, handle(body))
	assert.Error(t, handle([]byte("not json")))
}
