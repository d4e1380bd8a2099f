package data

import (
	"sync"
	"testing"
	"time"

	"github.com/giygas/pbs-authority-api/interfaces"
	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
)

func TestNewStatusContainer(t *testing.T) {
	sc := NewStatusContainer()

	if !sc.GetLastSuccess().IsZero() {
		t.Error("Expected no last success before the first probe")
	}
	if sc.GetServerStartTime().IsZero() {
		t.Error("Expected the server start time to be set")
	}
	if sc.IsProbing() {
		t.Error("Expected no probe in progress initially")
	}

	snapshot := sc.GetSnapshot()
	if snapshot.CheckedAt != (time.Time{}) {
		t.Errorf("Expected an empty snapshot, got %+v", snapshot)
	}
}

func TestRecordProbe(t *testing.T) {
	t.Run("successful probe updates last success", func(t *testing.T) {
		sc := NewStatusContainer()
		checkedAt := time.Now()

		sc.RecordProbe(interfaces.ProbeSnapshot{
			Schedule:  entities.Schedule{Code: 3530, EffectiveDate: "2026-09-01"},
			CheckedAt: checkedAt,
			Latency:   120 * time.Millisecond,
		})

		snapshot := sc.GetSnapshot()
		if snapshot.Schedule.Code != 3530 {
			t.Errorf("Expected schedule code 3530, got %d", snapshot.Schedule.Code)
		}
		if !sc.GetLastSuccess().Equal(checkedAt) {
			t.Errorf("Expected last success %v, got %v", checkedAt, sc.GetLastSuccess())
		}
	})

	t.Run("failed probe keeps the previous last success", func(t *testing.T) {
		sc := NewStatusContainer()
		successAt := time.Now().Add(-time.Hour)

		sc.RecordProbe(interfaces.ProbeSnapshot{
			Schedule:  entities.Schedule{Code: 3520},
			CheckedAt: successAt,
		})
		sc.RecordProbe(interfaces.ProbeSnapshot{
			CheckedAt: time.Now(),
			Error:     "upstream request timed out",
		})

		if !sc.GetLastSuccess().Equal(successAt) {
			t.Errorf("Expected last success to stay %v, got %v", successAt, sc.GetLastSuccess())
		}

		snapshot := sc.GetSnapshot()
		if snapshot.Error == "" {
			t.Error("Expected the latest snapshot to carry the failure")
		}
	})
}

func TestProbeSlot(t *testing.T) {
	sc := NewStatusContainer()

	if !sc.BeginProbe() {
		t.Fatal("Expected to acquire the probe slot")
	}
	if sc.BeginProbe() {
		t.Error("Expected the second acquisition to fail while probing")
	}
	if !sc.IsProbing() {
		t.Error("Expected IsProbing to report true")
	}

	sc.EndProbe()
	if sc.IsProbing() {
		t.Error("Expected IsProbing to report false after EndProbe")
	}
	if !sc.BeginProbe() {
		t.Error("Expected the slot to be reusable after EndProbe")
	}
}

func TestConcurrentAccess(t *testing.T) {
	sc := NewStatusContainer()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(code int) {
			defer wg.Done()
			sc.RecordProbe(interfaces.ProbeSnapshot{
				Schedule:  entities.Schedule{Code: code},
				CheckedAt: time.Now(),
			})
		}(i)
		go func() {
			defer wg.Done()
			_ = sc.GetSnapshot()
			_ = sc.GetLastSuccess()
		}()
	}

	wg.Wait()

	if sc.GetLastSuccess().IsZero() {
		t.Error("Expected a last success after concurrent probes")
	}
}
