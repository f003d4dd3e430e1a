package gateway

// Roles binds the three platform identities the bridge acts through. Bot is
// the bot-of-record that posts into the support group, Operator is the
// account end users talk to, Relay manages threads. Relay may be the
// Operator itself when no dedicated relay identity is configured.
type Roles struct {
	Bot      Client
	Operator Client
	Relay    Client
}

// NewRoles builds a Roles binding; a nil relay falls back to the operator.
func NewRoles(bot, operator, relay Client) Roles {
	if relay == nil {
		relay = operator
	}
	return Roles{Bot: bot, Operator: operator, Relay: relay}
}

// Opposite returns the other mirroring role: attachments are always
// re-downloaded with the session that did not observe the message, so the
// re-upload does not carry a file reference foreign to the sending account.
func (r Roles) Opposite(sender Client) Client {
	if sender == r.Bot {
		return r.Operator
	}
	return r.Bot
}
