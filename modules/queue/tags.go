// Package queue binds function parameters to named message queues and
// triggers functions for every message that arrives on a queue.
package queue

// Queue is an output binding that sends one message per item. Name is a
// template filled from binding data.
type Queue struct {
	Name string `hcl:"name"`
}

func (Queue) BindingName() string { return "queue" }

// QueueTrigger fires the function once per message on the queue Name.
type QueueTrigger struct {
	Name string `hcl:"name"`
	// MaxDequeueCount overrides the module default for this queue.
	MaxDequeueCount int `hcl:"max_dequeue_count,optional"`
}

func (QueueTrigger) BindingName() string { return "queue_trigger" }
func (QueueTrigger) IsTrigger() bool     { return true }
