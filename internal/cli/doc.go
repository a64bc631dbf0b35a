// Package cli defines the jobhost command line: run the host, call a
// function once, and describe what the host has indexed.
package cli
