package entity

import "time"

// MessageKind tells channels how to style a message.
type MessageKind string

const (
	MessageAlert     MessageKind = "alert"
	MessageSummary   MessageKind = "summary"
	MessageHealth    MessageKind = "health"
	MessageLifecycle MessageKind = "lifecycle"
)

// Button is a link rendered under a message.
type Button struct {
	Label string
	URL   string
}

// MessageField is a labelled value such as price or sizes.
type MessageField struct {
	Name  string
	Value string
}

// Message is a channel-neutral notification. Text is plain; channels add markup.
type Message struct {
	Kind      MessageKind
	Title     string
	Body      string
	Fields    []MessageField
	ImageURL  string
	Buttons   []Button
	Timestamp time.Time
}
