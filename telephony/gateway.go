// Package telephony places outbound calls and sends text messages through Twilio.
package telephony

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/room4-2/SalesCaller/conversation"
)

// Error is returned when Twilio rejects or fails a request
type Error struct {
	Op  string
	To  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("twilio %s to %s: %v", e.Op, e.To, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// restAPI is the subset of the Twilio REST client the gateway uses
type restAPI interface {
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Gateway originates calls and confirmation texts from one Twilio number.
// Each request is attempted once.
type Gateway struct {
	api    restAPI
	from   string
	logger *zap.Logger
}

// NewGateway builds a Twilio REST client from account credentials
func NewGateway(accountSID, authToken, from string, logger *zap.Logger) *Gateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newGateway(client.Api, from, logger)
}

func newGateway(api restAPI, from string, logger *zap.Logger) *Gateway {
	return &Gateway{api: api, from: from, logger: logger}
}

// PlaceCall dials to and plays the given TwiML document. It returns the call SID.
func (g *Gateway) PlaceCall(ctx context.Context, to, twiml string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "call", To: to, Err: err}
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(g.from)
	params.SetTwiml(twiml)

	call, err := g.api.CreateCall(params)
	if err != nil {
		return "", &Error{Op: "call", To: to, Err: err}
	}
	if call == nil || call.Sid == nil {
		return "", &Error{Op: "call", To: to, Err: errors.New("response has no call sid")}
	}

	g.logger.Info("call initiated", zap.String("call_sid", *call.Sid), zap.String("to", to))
	return *call.Sid, nil
}

// SendConfirmation texts the meeting link to the caller
func (g *Gateway) SendConfirmation(ctx context.Context, to, link string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "message", To: to, Err: err}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.from)
	params.SetBody(conversation.ConfirmationText(link))

	msg, err := g.api.CreateMessage(params)
	if err != nil {
		return &Error{Op: "message", To: to, Err: err}
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	g.logger.Info("confirmation sent", zap.String("message_sid", sid), zap.String("to", to))
	return nil
}
