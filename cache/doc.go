// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache is the in-process read cache in front of poll display and
list queries.

Entries carry a TTL and the cache holds at most MaxSize of them; adding a
new key to a full cache evicts the least recently accessed entry. Keys are
built with GenerateKey as namespace:id[:scope]:

	poll_display:<poll>:user_<user>
	poll_display:<poll>:anonymous
	active_polls:<sort>:<limit>

ClearByPrefix respects the ':' boundary, so clearing poll_display:42 leaves
poll_display:420 alone.

GetOrSet coalesces concurrent misses with singleflight and refuses to store
a result whose load overlapped a Delete, ClearByPrefix or Clear. Cached
values are shared and must be treated as read-only.

The cache is process-local. Run Start to sweep expired entries in the
background and Close on shutdown.
*/
package cache
