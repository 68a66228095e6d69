package server

import (
	_ "embed"
	"html/template"
	"time"

	"github.com/webfolio/authd/internal/storage"
)

//go:embed templates/callback.html
var callbackPageTemplateHTML string

var callbackPageTemplate = template.Must(template.New("callback").Parse(callbackPageTemplateHTML))

// SuccessMessage is the structured payload the callback bridge page posts
// to its opener window. The receiver validates origin, source window and
// the timestamp's replay window before trusting it.
type SuccessMessage struct {
	Type      string       `json:"type"` // always "OAUTH_SUCCESS"
	SessionID string       `json:"sessionId"`
	Token     string       `json:"token"`
	User      storage.User `json:"user"`
	Timestamp int64        `json:"timestamp"` // unix milliseconds
}

// NewSuccessMessage builds the payload for a freshly minted session.
func NewSuccessMessage(sessionID, token string, user storage.User) SuccessMessage {
	return SuccessMessage{
		Type:      "OAUTH_SUCCESS",
		SessionID: sessionID,
		Token:     token,
		User:      user,
		Timestamp: time.Now().UnixMilli(),
	}
}

// callbackPageData feeds the bridge page template. html/template encodes
// Payload as JSON in the script context, so no manual escaping is needed.
type callbackPageData struct {
	Payload      SuccessMessage
	TargetOrigin string
}
