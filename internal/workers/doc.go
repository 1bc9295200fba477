/*
Package workers sizes worker pools in containerized environments.

runtime.NumCPU reports the host's CPUs; GOMAXPROCS follows the container CPU
limit (Go 1.19+). Count scales GOMAXPROCS by a per-workload multiplier and
caps the result:

	// Scan producers: two per CPU, at most 3 so NFS servers are not flooded.
	n := workers.ForIO(3)

Operators override the computed value through an environment variable:

	n := workers.FromEnv("SCAN_WORKERS", workers.ForIO(3))
*/
package workers
