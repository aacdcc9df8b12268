// Command session-replay lists persisted sessions and prints the durable
// event log of one of them, with a compact summary. Dispatch is
// deterministic given an event sequence, so this log is also the raw
// material for time-travel debugging.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pranalabs/breathloop/internal/kernel"
	"github.com/pranalabs/breathloop/internal/store"
)

func main() {
	var (
		dbPath    = flag.String("db", "breathloop.db", "session database path")
		sessionID = flag.String("session", "", "session to replay (empty lists sessions)")
	)
	flag.Parse()

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if *sessionID == "" {
		ids, err := st.SessionIDs()
		if err != nil {
			log.Fatalf("list sessions: %v", err)
		}
		if len(ids) == 0 {
			fmt.Println("no persisted sessions")
			return
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	events, err := st.SessionLog(*sessionID)
	if err != nil {
		log.Fatalf("load session log: %v", err)
	}
	if len(events) == 0 {
		fmt.Fprintf(os.Stderr, "no events for session %s\n", *sessionID)
		os.Exit(1)
	}

	counts := make(map[kernel.EventKind]int)
	var cycles int
	var interdicted bool
	for _, e := range events {
		counts[e.Kind]++
		switch p := e.Payload.(type) {
		case kernel.CyclePayload:
			cycles = p.Cycle
		case kernel.SafetyPayload:
			interdicted = interdicted || p.Action == kernel.ActionEmergencyHalt
		}
		fmt.Printf("%s  %-20s %+v\n", e.At.Format("15:04:05.000"), e.Kind, e.Payload)
	}

	fmt.Printf("\nsession %s: %d durable events, %d cycles completed", *sessionID, len(events), cycles)
	if interdicted {
		fmt.Printf(", ended by safety interdiction")
	}
	fmt.Println()
	for kind, n := range counts {
		fmt.Printf("  %-20s %d\n", kind, n)
	}
}
