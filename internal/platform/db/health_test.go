package db

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPoolHealth_JSON(t *testing.T) {
	h := &PoolHealth{
		TotalConns:    10,
		IdleConns:     5,
		AcquiredConns: 5,
		MaxConns:      20,
		AcquireCount:  100,
		AcquireWait:   "1.5s",
		Healthy:       true,
	}

	raw, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)

	for _, key := range []string{
		`"total_conns":10`,
		`"idle_conns":5`,
		`"acquired_conns":5`,
		`"max_conns":20`,
		`"acquire_count":100`,
		`"acquire_wait":"1.5s"`,
		`"healthy":true`,
	} {
		if !strings.Contains(body, key) {
			t.Errorf("expected %s in %s", key, body)
		}
	}
}

func TestPoolHealth_UnhealthyState(t *testing.T) {
	h := &PoolHealth{
		MaxConns:    20,
		AcquireWait: "0s",
	}

	if h.Healthy {
		t.Error("expected Healthy to be false when TotalConns is 0")
	}
	if h.TotalConns != 0 {
		t.Errorf("expected TotalConns 0, got %d", h.TotalConns)
	}
}
