package synthetic

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/ghalamif/sensorboard/internal/domain"
)

func TestGeneratorRanges(t *testing.T) {
	gen := NewGenerator(Config{Seed: 7}, quartz.NewMock(t))
	for i := 1; i <= 500; i++ {
		r := gen.Next()
		if r.Seq != int64(i) {
			t.Fatalf("seq = %d, want %d", r.Seq, i)
		}
		if r.Temperature < 20 || r.Temperature > 25 {
			t.Fatalf("temperature out of range: %v", r.Temperature)
		}
		if r.Humidity < 40 || r.Humidity > 50 {
			t.Fatalf("humidity out of range: %v", r.Humidity)
		}
		if r.BatteryVoltage < 3.3 || r.BatteryVoltage > 4.2 {
			t.Fatalf("battery out of range: %v", r.BatteryVoltage)
		}
		if r.DeviceID != "esp32-room1" {
			t.Fatalf("device id = %q", r.DeviceID)
		}
	}
}

func TestPayloadKeyOrder(t *testing.T) {
	gen := NewGenerator(Config{DeviceID: "dev", Seed: 1}, quartz.NewMock(t))
	p := string(gen.Payload())
	keys := []string{"device_id", "timestamp", "temperature", "humidity", "battery_voltage", "motion", "seq"}
	last := -1
	for _, k := range keys {
		idx := strings.Index(p, `"`+k+`"`)
		if idx <= last {
			t.Fatalf("key %q out of order in %s", k, p)
		}
		last = idx
	}
	var r Reading
	if err := json.Unmarshal([]byte(p), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestSourceEmitsOnTick(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTicker("synthetic")
	defer trap.Close()

	src := NewSource(Config{Interval: time.Second, Seed: 3}, mClock)

	var (
		mu   sync.Mutex
		msgs []domain.Message
	)
	deliver := func(m domain.Message) {
		mu.Lock()
		msgs = append(msgs, m)
		mu.Unlock()
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- src.Run(runCtx, deliver) }()
	trap.MustWait(ctx).MustRelease(ctx)

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(msgs)
	}
	for i := 1; i <= 3; i++ {
		mClock.Advance(time.Second).MustWait(ctx)
		deadline := time.Now().Add(2 * time.Second)
		for count() < i {
			if time.Now().After(deadline) {
				t.Fatalf("got %d messages after tick %d", count(), i)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if msgs[0].Source != "synthetic" || msgs[0].Topic != "sensors/room1/temp" {
		t.Fatalf("unexpected message %+v", msgs[0])
	}
}
