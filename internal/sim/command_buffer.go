package sim

import (
	"sync"

	"lobby-crowd/server/internal/telemetry"
)

const (
	commandBufferOccupancyMetricKey = "sim_command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "sim_command_buffer_overflow_total"
)

// CommandBuffer is a fixed-size ring of staged commands. Many producers may
// push; the loop is the only consumer.
type CommandBuffer struct {
	mu      sync.Mutex
	data    []Command
	head    int
	tail    int
	count   int
	metrics telemetry.Metrics
}

func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &CommandBuffer{
		data:    make([]Command, capacity),
		metrics: metrics,
	}
}

// Push stages a command, returning false when the ring is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		b.metrics.Add(commandBufferOverflowMetricKey, 1)
		return false
	}
	b.data[b.tail] = cmd
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	b.metrics.Store(commandBufferOccupancyMetricKey, uint64(b.count))
	return true
}

// Drain returns the staged commands oldest first and empties the ring.
func (b *CommandBuffer) Drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		commands[i] = b.data[(b.head+i)%len(b.data)]
		b.data[(b.head+i)%len(b.data)] = Command{}
	}
	b.head, b.tail, b.count = 0, 0, 0
	b.metrics.Store(commandBufferOccupancyMetricKey, 0)
	return commands
}

func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
