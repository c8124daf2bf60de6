package chat

import (
	"time"

	"chatsync/internal/models"
)

// DefaultDedupWindow is how close two equal sends must be to count as one.
const DefaultDedupWindow = 2 * time.Second

// Outcome is what reconciliation did with an inbound message.
type Outcome int

const (
	OutcomeAppended Outcome = iota
	OutcomeConfirmed
	OutcomeDuplicate
	OutcomeNearDuplicate
	OutcomeRejected
	OutcomeOrphaned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeNearDuplicate:
		return "near_duplicate"
	case OutcomeRejected:
		return "rejected"
	case OutcomeOrphaned:
		return "orphaned"
	}
	return "unknown"
}

// Stored reports whether the message landed in the list.
func (o Outcome) Stored() bool {
	return o == OutcomeAppended || o == OutcomeConfirmed
}

// FindExact returns the index of the entry with id, or -1.
func FindExact(list []models.Message, id string) int {
	if id == "" {
		return -1
	}
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// FindProvisional returns the provisional entry that in confirms, or -1. An echoed
// temp id wins over the (sender, content) fallback; the fallback takes the oldest.
func FindProvisional(list []models.Message, in models.Message) int {
	if in.TempID != "" {
		for i := range list {
			if list[i].Provisional() && list[i].ID == in.TempID {
				return i
			}
		}
	}
	for i := range list {
		if list[i].Provisional() && list[i].SameSend(in) {
			return i
		}
	}
	return -1
}

// FindNearDuplicate returns an entry with the same sender and content whose
// timestamp is within window of in, or -1.
func FindNearDuplicate(list []models.Message, in models.Message, window time.Duration) int {
	for i := range list {
		if !list[i].SameSend(in) {
			continue
		}
		d := list[i].Timestamp.Sub(in.Timestamp)
		if d < 0 {
			d = -d
		}
		if d <= window {
			return i
		}
	}
	return -1
}

// Reconcile merges in into list. The returned slice may share list's backing
// array when the outcome is an append; a confirmation copies the list.
func Reconcile(list []models.Message, in models.Message, window time.Duration) (Outcome, []models.Message) {
	if FindExact(list, in.ID) >= 0 {
		return OutcomeDuplicate, list
	}

	switch in.Kind {
	case models.KindMessage, models.KindGift:
		if i := FindProvisional(list, in); i >= 0 {
			out := make([]models.Message, len(list))
			copy(out, list)
			out[i] = in
			return OutcomeConfirmed, out
		}
		if FindNearDuplicate(list, in, window) >= 0 {
			return OutcomeNearDuplicate, list
		}
		return OutcomeAppended, append(list, in)
	case models.KindJoin, models.KindLeave, models.KindReport:
		return OutcomeAppended, append(list, in)
	}
	return OutcomeRejected, list
}
