/*
Package log provides structured logging for Aegis built on zerolog.

The package owns the single process-wide logger. Components obtain child
loggers through WithComponent and the other With helpers, which attach a
stable field so that every line a component emits can be filtered by it.

Init must be called exactly once during boot, before any subsystem is
constructed. Output is console-formatted by default and JSON when configured;
when a log directory is configured lines are mirrored to aegisd.log inside it.
*/
package log
