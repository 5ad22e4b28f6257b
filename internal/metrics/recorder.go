package metrics

import "relaybot/internal/bus"

// Record subscribes the pre-defined metrics to the event bus so counters
// track bot activity without the dispatcher knowing about metrics.
func Record(events *bus.EventBus) {
	events.On(bus.EventMessageReceived, func(bus.Event) { MessagesTotal.Inc() })
	events.On(bus.EventMessageSent, func(bus.Event) { RepliesTotal.Inc() })
	events.On(bus.EventUserRegistered, func(bus.Event) { UsersRegistered.Inc() })
	events.On(bus.EventContactCaptured, func(bus.Event) { ContactsCaptured.Inc() })
	events.On(bus.EventChatAnswered, func(bus.Event) { ChatsAnswered.Inc() })
	events.On(bus.EventFileAnalyzed, func(bus.Event) { FilesAnalyzed.Inc() })
	events.On(bus.EventSearchPerformed, func(bus.Event) { SearchesPerformed.Inc() })
	events.On(bus.EventProviderError, func(bus.Event) { ProviderErrors.Inc() })
	events.On(bus.EventSearchError, func(bus.Event) { SearchErrors.Inc() })
	events.On(bus.EventStoreError, func(bus.Event) { StoreErrors.Inc() })

	events.On(bus.EventIntentDispatched, func(e bus.Event) {
		if intent, ok := e.Payload["intent"].(string); ok {
			IntentCounter(intent).Inc()
		}
	})
}
