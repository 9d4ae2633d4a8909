// Package recovery provides multi-strategy error recovery for failed
// operations.
//
// A Manager runs the primary operation under a timeout and, when it fails,
// works through an ordered list of fallback strategies: bounded local
// retry, static fallback values, degraded responses, cache fallback,
// defaults, deferral onto a named queue, or an alternative endpoint. The
// first strategy that produces a result wins immediately.
//
// The manager owns an expiring value cache (populated via SetCacheValue)
// and named deferred queues drained manually with ProcessQueue. Queue
// delivery is at most once; drain failures are reported, not re-queued.
//
//	mgr := recovery.NewManager(recovery.Config{
//	    Strategies: []recovery.Strategy{
//	        recovery.StrategyCacheFallback,
//	        recovery.StrategyDefaultValue,
//	    },
//	    CacheKey:     "inventory",
//	    DefaultValue: []string{},
//	})
//
//	result, err := mgr.Execute(ctx, "list-inventory", fetchInventory)
package recovery
