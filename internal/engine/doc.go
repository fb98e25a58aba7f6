// Package engine implements the SSDP protocol engine.
//
// An Engine owns two notification caches keyed by USN: the owned cache holds
// persistent notifications this endpoint announces and renews, the active
// cache holds notifications observed on the network. Received messages are
// applied to the caches by a fixed transition table:
//
//   - NOTIFY ssdp:byebye removes the USN and raises Removed
//   - NOTIFY ssdp:alive inserts (Added) or refreshes the USN; a changed wire
//     form replaces the cached notification and raises Updated, an unchanged
//     one raises Other only with NotifyAll
//   - NOTIFY with any other NTS raises Other
//   - M-SEARCH is answered with a unicast 200 response per matching owned
//     notification
//   - a 200 search response for an unknown USN is cached as a notification
//     and raises Added
//
// Notification events go through ShouldEmit: events about this endpoint's own
// announcements are suppressed unless NotifyLoopback or NotifyAll is set.
//
// # Lifecycle
//
//	e, err := engine.New(engine.Config{Signature: version.Signature()})
//	if err != nil {
//	    return err
//	}
//	unsubscribe := e.Subscribe(func(n *protocol.Notification, r engine.Reason) {
//	    fmt.Println(r, n.USN())
//	})
//	defer unsubscribe()
//
//	n := e.CreateNotification()
//	n.SetSubject("upnp:rootdevice")
//	n.SetUSN("uuid:" + id + "::upnp:rootdevice")
//	e.Notify(n, true) // queued until Start
//
//	if err := e.Start(); err != nil {
//	    return err
//	}
//	defer e.Stop(false) // byebye for every owned notification
//
//	go e.Run(ctx, 500*time.Millisecond) // Update: renewals, expiry, deferred messages
//
// # Concurrency
//
// A single mutex guards both caches, the pending queues, the deferred message
// queue, the options and the started flag. Events are collected while the
// lock is held and delivered to listeners after it is released.
package engine
