// Package chandymisra implements the Chandy-Misra drinking/dining
// philosophers protocol: a fully decentralised mutual-exclusion
// discipline with no central lock manager and no global ordering check
// at acquisition time.
//
// Each fork is owned by exactly one of its two neighbours at any
// instant and carries a dirty bit. A dirty fork has been used since it
// was last given away; a clean fork is surrendered never, a dirty fork
// on request. Seeding the ring so the ownership graph is acyclic makes
// the protocol deadlock free, and the dirty-bit rule makes it fair:
// every hungry philosopher eventually eats.
//
// Each philosopher is one goroutine consuming messages from its two
// neighbours and from a private self channel carrying deferred
// think/eat timer messages. All state changes happen inside that
// goroutine by re-running a guarded-command pass until no rule fires.
// The fixpoint matters: a single grant can simultaneously complete a
// meal and oblige a grant to the other side, and skipping the re-run
// loses that second grant.
package chandymisra
