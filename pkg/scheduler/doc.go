/*
Package scheduler drains the task priority queue into the orchestrator.

The queue orders strictly by priority (critical first) and FIFO within a
priority. A configurable worker count drains it; tasks with unmet
dependencies are held aside and re-queued as their dependencies complete.
Recurring jobs fire on fixed intervals with overlap protection: a job whose
previous run is still in flight skips the slot with a warning. A heartbeat
loop emits a daemon:heartbeat event once a minute carrying queue depth and
task counters.
*/
package scheduler
