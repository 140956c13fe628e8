// Package combatlog turns a raw WoW-style combat log into a per-encounter
// record stream: metadata lines are dropped, aura events are reshaped, the
// rest is split into encounters with encounter-relative times and death
// counters, and encounters that end within the minimum duration are removed.
//
// Quick start:
//
//	f, _ := os.Open("WoWCombatLog.txt")
//	defer f.Close()
//
//	summary, err := combatlog.Process(ctx, f, os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(summary.EncountersKept, "encounters")
//
// Process writes the canonical 15-column CSV. Use Events to get the records
// as values instead.
package combatlog
