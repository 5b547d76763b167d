package models

// ConversationStat is a summary row returned by the admin listing.
type ConversationStat struct {
	ChatID  string `json:"chat_id"`
	Records int    `json:"records"`
}
