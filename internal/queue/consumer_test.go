package queue

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func frameSubject(streamID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", FramesSubjectBase, streamID)
}

func TestWorkerIndexPinsSubject(t *testing.T) {
	subject := frameSubject(uuid.New())

	first := workerIndex(subject, 4)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, workerIndex(subject, 4),
			"a stream's subject must always map to the same worker")
	}
}

func TestWorkerIndexStaysInRange(t *testing.T) {
	for workers := 1; workers <= 8; workers++ {
		for i := 0; i < 50; i++ {
			idx := workerIndex(frameSubject(uuid.New()), workers)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, workers)
		}
	}
}

func TestWorkerIndexSpreadsStreams(t *testing.T) {
	const workers = 4

	used := make(map[int]bool)
	for i := 0; i < 200; i++ {
		used[workerIndex(frameSubject(uuid.New()), workers)] = true
	}

	assert.Greater(t, len(used), 1, "distinct streams should not all pile onto one worker")
}

func TestWorkerIndexSingleWorker(t *testing.T) {
	assert.Equal(t, 0, workerIndex(frameSubject(uuid.New()), 1))
}
