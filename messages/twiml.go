package messages

import (
	"strconv"
	"strings"

	"github.com/twilio/twilio-go/twiml"

	"github.com/room4-2/SalesCaller/conversation"
)

// Callback paths Twilio posts gathered speech to
const (
	PathProcess     = "/process"
	PathProcessDate = "/process_date"
)

// StagePath returns the callback that serves a conversation stage
func StagePath(stage conversation.Stage) string {
	if stage == conversation.StageAwaitingDateTime {
		return PathProcessDate
	}
	return PathProcess
}

// Documents renders replies as TwiML voice documents
type Documents struct {
	gatherTimeout string
	baseURL       string
}

// NewDocuments creates a renderer. baseURL may be empty for relative callbacks.
func NewDocuments(gatherTimeoutSeconds int, baseURL string) *Documents {
	return &Documents{
		gatherTimeout: strconv.Itoa(gatherTimeoutSeconds),
		baseURL:       strings.TrimRight(baseURL, "/"),
	}
}

func (d *Documents) url(stage conversation.Stage) string {
	return d.baseURL + StagePath(stage)
}

func (d *Documents) gather(stage conversation.Stage, inner ...twiml.Element) *twiml.VoiceGather {
	return &twiml.VoiceGather{
		Input:         "speech",
		Action:        d.url(stage),
		Method:        "POST",
		Timeout:       d.gatherTimeout,
		InnerElements: inner,
	}
}

// Render turns a dispatcher reply into the document Twilio plays next
func (d *Documents) Render(reply conversation.Reply) (string, error) {
	verbs := []twiml.Element{&twiml.VoiceSay{Message: reply.Text}}

	switch reply.Next.Kind {
	case conversation.ActionGather:
		verbs = append(verbs, d.gather(reply.Next.Stage))
	case conversation.ActionRedirect:
		verbs = append(verbs, &twiml.VoiceRedirect{Url: d.url(reply.Next.Stage), Method: "POST"})
	}

	return twiml.Voice(verbs)
}

// OutboundCall is played when the callee answers: greeting inside a gather,
// then a goodbye if nothing was heard.
func (d *Documents) OutboundCall() (string, error) {
	greeting := conversation.Dispatch("", conversation.StageGreeting)
	return twiml.Voice([]twiml.Element{
		d.gather(greeting.Next.Stage, &twiml.VoiceSay{Message: greeting.Text}),
		&twiml.VoiceSay{Message: conversation.NoInputGoodbye},
	})
}

// VoiceCheck is the static document served for connectivity testing
func (d *Documents) VoiceCheck() (string, error) {
	return twiml.Voice([]twiml.Element{&twiml.VoiceSay{Message: conversation.VoiceCheckReply}})
}
