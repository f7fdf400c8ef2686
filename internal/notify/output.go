// Package notify publishes dispatch events for collaborators: the push sender,
// the order view and the partner dashboard.
package notify

import (
	"fmt"
	"os"
	"sync"
)

type OutputDestination interface {
	WriteMessage(topic string, msg []byte) error
	Close() error
}

type ConsoleOutput struct {
	mu sync.Mutex
}

func (c *ConsoleOutput) WriteMessage(topic string, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	output := fmt.Sprintf("[%s] %s\n", topic, string(msg))
	if _, err := os.Stdout.Write([]byte(output)); err != nil {
		return fmt.Errorf("failed to write to stdout: %w", err)
	}
	return nil
}

func (c *ConsoleOutput) Close() error {
	return nil
}

// MemoryOutput keeps every message; used by tests and dry runs.
type MemoryOutput struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func NewMemoryOutput() *MemoryOutput {
	return &MemoryOutput{messages: make(map[string][][]byte)}
}

func (m *MemoryOutput) WriteMessage(topic string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[topic] = append(m.messages[topic], append([]byte(nil), msg...))
	return nil
}

func (m *MemoryOutput) Messages(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.messages[topic]...)
}

func (m *MemoryOutput) Close() error {
	return nil
}
