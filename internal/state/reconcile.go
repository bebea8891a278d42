package state

import "github.com/rdesai/chatsync/internal/models"

// Reconcile merges an authoritative inbound message into the current
// ordered message list. It is the core consistency rule between
// optimistic local sends and server confirmations:
//
//  1. Every provisional (placeholder-id) message is dropped. Once any
//     authoritative event arrives the provisional copies are considered
//     superseded, since in practice one send is outstanding per chat.
//  2. The incoming message is a duplicate if its id already exists among
//     the remaining messages, or if one of them matches on (sender,
//     content, chat). The second condition covers the server echoing a
//     message whose id the client did not know when the optimistic copy
//     was created.
//  3. A duplicate is discarded and the list is returned unchanged;
//     anything else is appended to the filtered list.
//
// The (sender, content, chat) match can falsely merge two distinct
// messages with identical text from the same sender arriving in the
// same reconciliation window. That is a known trade-off kept for UI
// responsiveness.
//
// The input slice is not mutated.
func Reconcile(current []models.Message, incoming models.Message) []models.Message {
	kept := make([]models.Message, 0, len(current)+1)
	for _, m := range current {
		if m.Provisional() {
			continue
		}
		kept = append(kept, m)
	}

	for _, m := range kept {
		if m.ID == incoming.ID {
			return current
		}
		if m.SenderID == incoming.SenderID &&
			m.Content == incoming.Content &&
			m.ChatID == incoming.ChatID {
			return current
		}
	}

	return append(kept, incoming)
}
