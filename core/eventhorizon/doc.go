// Package eventhorizon subscribes consumer tenants to the public event
// streams of other microservices and tenants.
//
// A subscription is declared per consumer tenant, walking from the producer
// down to the consumer scope:
//
//	tenant := horizons.ForTenant(consumer).
//		ForMicroservice(producer, func(b *eventhorizon.SubscriptionBuilder) {
//			b.FromProducerTenant(producerTenant).
//				FromProducerStream(stream).
//				FromProducerPartition(partition).
//				ToScope(scope).
//				OnFailure(func(r eventhorizon.Response) { ... })
//		})
//	subscriptions, err := tenant.Build()
//	responses, err := horizons.Subscribe(ctx, subscriptions)
//
// Every builder level may be called once. Misuse is recorded and reported by
// Build. Responses from the runtime are published in arrival order to the
// callbacks of every level whose identity they match.
package eventhorizon
