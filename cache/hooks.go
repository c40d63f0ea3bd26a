package cache

// dispatch runs the OnDelete hook for each collected removal. It must
// run without the cache lock held (the usual shape is a defer placed
// before the lock is taken, so it fires after the deferred unlock);
// hooks may therefore re-enter the cache freely. A panicking hook is
// logged and swallowed so cache operations never fail on account of
// user callbacks.
func (c *Cache[K, V]) dispatch(dead *[]removal[K, V]) {
	if c.opt.OnDelete == nil {
		return
	}
	for _, r := range *dead {
		c.invokeHook(r.key, r.val)
	}
}

func (c *Cache[K, V]) invokeHook(key K, val V) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("cache: OnDelete hook panicked", "key", key, "panic", r)
		}
	}()
	c.opt.OnDelete(key, val)
}
