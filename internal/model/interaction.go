package model

// Interaction kinds recorded in communication_interactions by the
// tracking endpoints.
const (
	InteractionOpened = "OPENED"
	InteractionClick  = "CLICK"
)
