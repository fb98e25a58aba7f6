// Package cache holds notification cache entries keyed by USN.
//
// An Entry pairs a notification with its expiration instant and its
// serialized wire form. The two are refreshed independently: Poke moves the
// expiration forward by the notification's max-age, Build re-renders the
// bytes after the notification was modified.
//
// The engine keeps two tables, one for notifications this process announces
// and one for notifications observed on the network. A Table is a plain map
// and is not safe for concurrent use; the engine guards it with its own lock.
package cache
