/*
Package memory keeps scans inside a container's memory budget.

ConfigureLimit derives GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO when
GOMEMLIMIT itself is not set. Call it first thing in main.

Monitor samples the heap against that limit. Above the critical threshold it
pauses: scan workers block in Wait before each extraction until usage falls
below the high threshold again. The indexer takes it through
Scanner.SetThrottle.

	mon := memory.NewMonitor(memory.DefaultConfig())
	mon.Start()
	defer mon.Stop()
	scanner.SetThrottle(mon)
*/
package memory
