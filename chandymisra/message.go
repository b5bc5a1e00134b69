package chandymisra

import "fmt"

// messageKind enumerates every message the protocol carries. The set is
// closed: the philosopher loop matches exhaustively and panics on
// anything else.
type messageKind int

const (
	// msgRequest asks the receiver for the named fork. The request token
	// travels with it, which is what bounds outstanding requests at one
	// per fork.
	msgRequest messageKind = iota
	// msgGrant hands the named fork over. The sender wipes the fork clean
	// and drops possession before sending; the receiver takes possession
	// only when it applies the grant.
	msgGrant
	// msgBecomeHungry is the deferred end of a thinking delay.
	msgBecomeHungry
	// msgBecomeSated is the deferred end of a meal.
	msgBecomeSated
	// msgStop ends the receive loop permanently.
	msgStop
)

// message is a protocol message in transit on a link or self channel.
type message struct {
	kind messageKind
	fork int
}

func (m message) String() string {
	switch m.kind {
	case msgRequest:
		return fmt.Sprintf("request(fork %d)", m.fork)
	case msgGrant:
		return fmt.Sprintf("grant(fork %d)", m.fork)
	case msgBecomeHungry:
		return "become-hungry"
	case msgBecomeSated:
		return "become-sated"
	case msgStop:
		return "stop"
	default:
		return fmt.Sprintf("unknown(%d)", int(m.kind))
	}
}
