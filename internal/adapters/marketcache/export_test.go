package marketcache

// RefresherCount reports how many refreshers the cache still tracks.
func (c *Cache) RefresherCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.refreshers)
}
