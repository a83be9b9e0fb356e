package ticket

import "github.com/prometheus/client_golang/prometheus"

var (
	ingestEventsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsdesk_ingest_events_received_total",
			Help: "Total gateway webhook events received.",
		},
	)
	ingestMessagesStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsdesk_ingest_messages_stored_total",
			Help: "Total inbound messages persisted.",
		},
	)
	ingestDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsdesk_ingest_duplicates_total",
			Help: "Total redelivered events absorbed by the message id check.",
		},
	)
	ingestSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsdesk_ingest_skipped_total",
			Help: "Total events skipped before persistence, by reason.",
		},
		[]string{"reason"},
	)
	ingestOrphaned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsdesk_ingest_orphaned_total",
			Help: "Total messages stored without an owning conversation.",
		},
	)
	ticketsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsdesk_tickets_opened_total",
			Help: "Total conversations opened by inbound messages.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ingestEventsReceived,
		ingestMessagesStored,
		ingestDuplicates,
		ingestSkipped,
		ingestOrphaned,
		ticketsOpened,
	)
}
