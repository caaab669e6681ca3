package driving

// Event is one broadcast delivery: the channel it was published on and
// its payload.
type Event struct {
	// Channel is the broadcast channel name.
	Channel string

	// Payload is the event payload, one of the channel's catalog
	// types.
	Payload any
}

// Subscription is a handle to one listener's stream of broadcast
// events.
type Subscription interface {
	// Events is the ordered stream of deliveries. It is closed after
	// Cancel.
	Events() <-chan Event

	// Cancel stops deliveries. It is idempotent and safe to call
	// concurrently with an in-flight broadcast: the in-flight delivery
	// may still complete, but no new one starts.
	Cancel()
}

// Broker fans broadcast events out to any number of subscribers.
//
// Every current subscriber of a channel receives every event published
// on it, in publish order. There is no replay: a subscriber registered
// after an event fired never receives it; late subscribers obtain
// current state through the query commands instead.
type Broker interface {
	// Publish delivers the payload to all current subscribers of the
	// channel. It never blocks on slow subscribers.
	Publish(channel string, payload any)

	// Subscribe registers a listener on a channel.
	Subscribe(channel string) Subscription
}
