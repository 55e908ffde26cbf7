package disklru

// Export internals for testing.
// This file is only compiled during tests.

// RedundantOpCompactThreshold is the compaction trigger.
const RedundantOpCompactThreshold = redundantOpCompactThreshold

// WaitForCleanup blocks until every cleanup scheduled so far has run.
func (c *Cache) WaitForCleanup() {
	c.worker.wait()
}

// RedundantOpsForTesting returns the redundant journal line count.
func (c *Cache) RedundantOpsForTesting() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.redundantOps
}

// DirHeldForTesting reports whether dir is claimed in the open registry.
func DirHeldForTesting(dir string) bool {
	return openDirs.held(dir)
}

// ParseRecordForTesting parses one journal body line and formats it back.
func ParseRecordForTesting(line string, valueCount int) (string, error) {
	rec, err := parseRecord(line, valueCount)
	if err != nil {
		return "", err
	}

	return rec.String(), nil
}
