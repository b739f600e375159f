// Package result defines the channel-agnostic outcome every command handler
// produces. Front-ends (Discord, dashboard) render the component sequence
// into their native message format; the core never deals in wire formats.
package result

import "strings"

// FailureReason classifies a failed command so front-ends can decide how
// much detail to show.
type FailureReason string

const (
	ReasonUnknown          FailureReason = "unknown"
	ReasonAuthError        FailureReason = "auth_error"
	ReasonApiError         FailureReason = "api_error"
	ReasonBotError         FailureReason = "bot_error"
	ReasonValidationFailed FailureReason = "validation_failed"
	ReasonRateLimited      FailureReason = "rate_limited"
)

// Component is one typed display fragment. Front-ends switch on the concrete
// type; the set is closed by the unexported marker method.
type Component interface {
	component()
}

// Text is a plain text fragment.
type Text struct {
	Content string
}

// Attachment references a file by name; resolving the bytes is the
// front-end's job.
type Attachment struct {
	FileName string
}

// Section groups components under a heading.
type Section struct {
	Title      string
	Components []Component
}

func (Text) component()       {}
func (Attachment) component() {}
func (Section) component()    {}

// CommandResult is the discriminated success/failure contract.
type CommandResult struct {
	OK         bool
	Components []Component
	Ephemeral  bool
	Reason     FailureReason
	Message    string
}

// Success builds a successful result from an ordered component sequence.
func Success(components ...Component) CommandResult {
	return CommandResult{OK: true, Components: components}
}

// SuccessEphemeral builds a successful result only the invoking user
// should see.
func SuccessEphemeral(components ...Component) CommandResult {
	return CommandResult{OK: true, Components: components, Ephemeral: true}
}

// Failure builds a failed result.
func Failure(reason FailureReason, message string) CommandResult {
	return CommandResult{OK: false, Reason: reason, Message: message}
}

// PlainText flattens the component sequence to newline-joined text. Used by
// front-ends without rich rendering and by logs-facing code that must never
// touch attachments.
func (r CommandResult) PlainText() string {
	var b strings.Builder
	flatten(&b, r.Components)
	return strings.TrimRight(b.String(), "\n")
}

func flatten(b *strings.Builder, components []Component) {
	for _, c := range components {
		switch v := c.(type) {
		case Text:
			b.WriteString(v.Content)
			b.WriteString("\n")
		case Attachment:
			b.WriteString("[attachment: " + v.FileName + "]\n")
		case Section:
			if v.Title != "" {
				b.WriteString(v.Title)
				b.WriteString("\n")
			}
			flatten(b, v.Components)
		}
	}
}
