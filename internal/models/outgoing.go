package models

// ContentTypeInputSelect marks an outgoing message carrying selectable
// options that should be rendered as reply buttons.
const ContentTypeInputSelect = "input_select"

// Attachment references a downloadable file attached to an outgoing message.
type Attachment struct {
	DownloadURL string `json:"download_url"`
	FileType    string `json:"file_type"`
}

// SelectItem is one selectable option of an input_select message.
type SelectItem struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// ContentAttributes carries structured content for interactive messages.
type ContentAttributes struct {
	Items []SelectItem `json:"items,omitempty"`
}

// OutgoingMessage is the canonical unit handed to the outbound dispatcher.
type OutgoingMessage struct {
	Content           string            `json:"content"`
	ContentType       string            `json:"content_type,omitempty"`
	ContentAttributes ContentAttributes `json:"content_attributes,omitempty"`
	Attachments       []Attachment      `json:"attachments,omitempty"`
}

// TemplateInfo describes a template send request. The gateway has no native
// template support, so dispatch downgrades it to a plain text send.
type TemplateInfo struct {
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
}

// DispatchResult reports the outcome of one outbound send.
type DispatchResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
