package amqp

import (
	"github.com/careledger/ndis-ledger/internal/event_bus"
)

// Forward publishes every ledger event from the bus. The returned function stops forwarding.
func Forward(bus *event_bus.EventBus, publisher Publisher) (stop func()) {
	unsubscribeRecorded := event_bus.SubscribeTyped[event_bus.TransactionRecorded](bus, event_bus.TransactionRecordedType,
		func(e event_bus.EventT[event_bus.TransactionRecorded]) error {
			return publisher.Publish(e.Context(), NewRecordedMessage(e.Data))
		})
	unsubscribeReversed := event_bus.SubscribeTyped[event_bus.TransactionReversed](bus, event_bus.TransactionReversedType,
		func(e event_bus.EventT[event_bus.TransactionReversed]) error {
			return publisher.Publish(e.Context(), NewReversedMessage(e.Data))
		})
	return func() {
		unsubscribeRecorded()
		unsubscribeReversed()
	}
}
