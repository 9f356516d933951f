package analytics

import (
	"sync"
	"testing"

	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestRecorder_RecordAfterCloseDoesNotPanic(t *testing.T) {
	r := New(Config{}, testLogger(t))

	r.Record(Event{Type: EventBundleGenerated, IdeaCount: 3})
	r.Close()

	// A late handler racing shutdown must not hit a closed channel.
	r.Record(Event{Type: EventBundleViewed, Slug: "late-view"})
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	r := New(Config{}, testLogger(t))
	r.Close()
	r.Close()
}

func TestRecorder_ConcurrentRecordAndClose(t *testing.T) {
	r := New(Config{}, testLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Record(Event{Type: EventBundleViewed, Slug: "s"})
			}
		}()
	}
	r.Close()
	wg.Wait()
}
