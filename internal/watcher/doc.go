// Package watcher bridges push-style filesystem notifications into a
// pull-based API for driving rebuilds.
//
// A Session owns one recursive fsnotify subscription over the watched
// package's source directory. Raw events are classified by IsRebuildWorthy;
// Next blocks until a worthy event arrives, TryNext drains whatever is
// buffered without blocking. Events are observed in emission order with no
// deduplication, so bursts each independently satisfy a pending wait.
package watcher
