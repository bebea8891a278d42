package client

import "github.com/rdesai/chatsync/internal/protocol"

// Call signaling. Each operation issues the matching command; the
// actual media session is negotiated out of band with the RTC provider
// using the channel name carried in these payloads.

// InitiateCall rings calleeID in the context of chatID.
func (c *Client) InitiateCall(chatID, calleeID, channel string) {
	c.sess.Send(protocol.CmdCallInitiate, protocol.CallPayload{
		ChatID:   chatID,
		CalleeID: calleeID,
		Channel:  channel,
	})
}

// AcceptCall accepts an incoming call for chatID.
func (c *Client) AcceptCall(chatID, channel string) {
	c.sess.Send(protocol.CmdCallAccept, protocol.CallPayload{ChatID: chatID, Channel: channel})
}

// RejectCall declines an incoming call for chatID.
func (c *Client) RejectCall(chatID string) {
	c.sess.Send(protocol.CmdCallReject, protocol.CallPayload{ChatID: chatID})
}

// EndCall hangs up the active call for chatID.
func (c *Client) EndCall(chatID string) {
	c.sess.Send(protocol.CmdCallEnd, protocol.CallPayload{ChatID: chatID})
}

// InitiateGroupCall starts a group call in chatID.
func (c *Client) InitiateGroupCall(chatID, channel string) {
	c.sess.Send(protocol.CmdGroupCallInitiate, protocol.GroupCallPayload{ChatID: chatID, Channel: channel})
}

// JoinGroupCall joins the running group call in chatID.
func (c *Client) JoinGroupCall(chatID, channel string) {
	c.sess.Send(protocol.CmdGroupCallJoin, protocol.GroupCallPayload{ChatID: chatID, Channel: channel})
}

// LeaveGroupCall leaves the running group call in chatID.
func (c *Client) LeaveGroupCall(chatID string) {
	c.sess.Send(protocol.CmdGroupCallLeave, protocol.GroupCallPayload{ChatID: chatID})
}

// EndGroupCall ends the running group call in chatID for everyone.
func (c *Client) EndGroupCall(chatID string) {
	c.sess.Send(protocol.CmdGroupCallEnd, protocol.GroupCallPayload{ChatID: chatID})
}
