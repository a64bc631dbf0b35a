// Package listener holds the event loops behind triggers: a blob poller that
// fires once per new or changed object, and a queue receive loop with
// poison handling.
package listener
