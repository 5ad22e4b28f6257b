package domain

import "time"

// MessageKind classifies an inbound event by its payload type.
type MessageKind string

const (
	KindText    MessageKind = "text"    // free text, possibly a /command
	KindContact MessageKind = "contact" // shared contact card
	KindMedia   MessageKind = "media"   // photo or document upload
)

// FileRef describes an uploaded file, already resolved by the channel to a
// retrievable URL.
type FileRef struct {
	ID   string // platform file identifier
	Name string // original file name, if any
	Mime string
	URL  string // direct download URL
}

type InboundMessage struct {
	Channel      string
	ChatID       string
	SenderID     string
	SenderName   string // display name, used on first registration
	SenderHandle string // platform handle/username, optional
	Kind         MessageKind
	Content      string   // text payload for KindText
	Phone        string   // phone number for KindContact
	File         *FileRef // payload for KindMedia
	Timestamp    time.Time
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Format  string // text | markdown
	// RequestContact asks the channel to render a one-time "share contact"
	// affordance alongside the message, where the platform supports it.
	RequestContact bool
}
