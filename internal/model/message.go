package model

// Inbound is one message received from the channel webhook.
type Inbound struct {
	From string // sender identity, e.g. "whatsapp:+5579988064629"
	Name string // profile name, may be empty
	WaID string // sender id without prefix, used when Name is empty
	Body string
	To   string
}

// OutboundKind tags the shape of an OutboundMessage.
type OutboundKind int

const (
	KindText OutboundKind = iota
	KindTemplate
)

func (k OutboundKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// OutboundMessage is either free-form text or a pre-approved template with
// variables. Build one with Text or Template.
type OutboundMessage struct {
	Kind       OutboundKind
	Body       string
	TemplateID string
	Variables  map[string]string
}

// Text builds a free-form message.
func Text(body string) OutboundMessage {
	return OutboundMessage{Kind: KindText, Body: body}
}

// Template builds a templated message.
func Template(id string, vars map[string]string) OutboundMessage {
	return OutboundMessage{Kind: KindTemplate, TemplateID: id, Variables: vars}
}
