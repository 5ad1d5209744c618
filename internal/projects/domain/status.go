package domain

// Status is the lifecycle state of a project. Values are stored and served
// verbatim, matching what the clients display.
type Status string

const (
	StatusPending     Status = "en attente"
	StatusQuoted      Status = "devis_envoyé"
	StatusAwaitingPay Status = "paiement_attente"
	StatusPaid        Status = "payé"
	StatusInProgress  Status = "en cours"
	StatusDone        Status = "terminé"
)

// transitions is the directed graph of allowed status moves. The
// StatusQuoted self-loop is the re-quote: an admin may overwrite the price
// while the quote is still unanswered. StatusQuoted → StatusPaid covers a
// provider confirmation that lands before the checkout redirect was recorded.
var transitions = map[Status][]Status{
	StatusPending:     {StatusQuoted},
	StatusQuoted:      {StatusQuoted, StatusAwaitingPay, StatusPaid},
	StatusAwaitingPay: {StatusPaid},
	StatusPaid:        {StatusInProgress},
	StatusInProgress:  {StatusDone},
	StatusDone:        {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from s to next follows the graph.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// terminal reports whether no further transition exists.
func (s Status) terminal() bool {
	return len(transitions[s]) == 0
}

// Bucket groups statuses the way the dashboards filter them.
type Bucket string

const (
	BucketPending    Bucket = "pending"
	BucketInProgress Bucket = "in_progress"
	BucketCompleted  Bucket = "completed"
)

// Statuses returns the status set a bucket covers; nil for an unknown bucket.
func (b Bucket) Statuses() []Status {
	switch b {
	case BucketPending:
		return []Status{StatusPending, StatusQuoted, StatusAwaitingPay}
	case BucketInProgress:
		return []Status{StatusPaid, StatusInProgress}
	case BucketCompleted:
		return []Status{StatusDone}
	default:
		return nil
	}
}

// ActionPriority orders statuses so that financially actionable projects come
// first in the admin listing: paid work to start, then new requests to quote.
func ActionPriority(s Status) int {
	switch s {
	case StatusPaid:
		return 1
	case StatusPending:
		return 2
	case StatusQuoted:
		return 3
	case StatusAwaitingPay:
		return 4
	default:
		return 10
	}
}
