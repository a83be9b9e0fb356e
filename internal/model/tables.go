package model

import "fmt"

const (
	CustomersTable     = "Customers"
	ConversationsTable = "Conversations"
	MessagesTable      = "Messages"
	OpenTicketsTable   = "OpenTickets"
)

// OpenTicketPK keys the at-most-one-open-ticket lock item for a customer on
// a channel binding. The lock row exists exactly while a conversation for the
// pair is in a non-terminal status.
func OpenTicketPK(customerID, channelBinding string) string {
	return fmt.Sprintf("%s#%s", customerID, channelBinding)
}

// InboundMessagePK keys inbound messages by the gateway-assigned id so a
// redelivered event collides on the same row. Outbound and internal messages
// use the generated message id instead.
func InboundMessagePK(channelBinding, externalMessageID string) string {
	return fmt.Sprintf("ext#%s#%s", channelBinding, externalMessageID)
}
