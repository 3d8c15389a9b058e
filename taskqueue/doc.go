/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package taskqueue provides a priority task queue with a bounded number of concurrently running tasks.
// Submitted tasks are ordered by descending priority (FIFO within the same priority) and their results
// are delivered through futures.
package taskqueue
