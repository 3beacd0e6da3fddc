package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

type fakeReader struct {
	session  *models.SimulationSession
	trades   []models.SimulatedTrade
	snapshot *models.PerformanceSnapshot
	err      error

	lastLimit int
}

func (f *fakeReader) GetSession(_ context.Context, id uuid.UUID) (*models.SimulationSession, error) {
	return f.session, f.err
}

func (f *fakeReader) RecentTrades(_ context.Context, _ uuid.UUID, limit int) ([]models.SimulatedTrade, error) {
	f.lastLimit = limit
	return f.trades, f.err
}

func (f *fakeReader) LatestSnapshot(_ context.Context, _ uuid.UUID) (*models.PerformanceSnapshot, error) {
	return f.snapshot, f.err
}

func testServer(reader *fakeReader) (*Server, uuid.UUID) {
	id := uuid.New()
	return NewServer(":0", reader, nil, id), id
}

func TestHealthEndpoint(t *testing.T) {
	s, id := testServer(&fakeReader{})
	resp, err := s.App().Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["session_id"] != id.String() {
		t.Errorf("session_id = %v", body["session_id"])
	}
}

func TestSessionEndpoint(t *testing.T) {
	reader := &fakeReader{session: &models.SimulationSession{
		ID:                uuid.New(),
		StartedAt:         time.Now().UTC(),
		Mode:              models.SourceLive,
		InitialSolBalance: decimal.RequireFromString("10"),
	}}
	s, _ := testServer(reader)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/session", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d body %s", resp.StatusCode, body)
	}
}

func TestSessionNotFound(t *testing.T) {
	s, _ := testServer(&fakeReader{})
	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/session", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSnapshotEndpointNoneYet(t *testing.T) {
	s, _ := testServer(&fakeReader{})
	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/snapshot", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTradesEndpointLimit(t *testing.T) {
	reader := &fakeReader{trades: []models.SimulatedTrade{
		{Mint: "mintA", Side: models.SideBuy, SolAmount: decimal.RequireFromString("1")},
	}}
	s, _ := testServer(reader)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/trades?limit=5", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if reader.lastLimit != 5 {
		t.Errorf("limit passed through = %d, want 5", reader.lastLimit)
	}

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/trades?limit=0", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400 on bad limit", resp.StatusCode)
	}
}

func TestStoreErrorsSurfaceAs500(t *testing.T) {
	s, _ := testServer(&fakeReader{err: errors.New("db down")})
	for _, path := range []string{"/api/session", "/api/snapshot", "/api/trades"} {
		resp, err := s.App().Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("Test %s: %v", path, err)
		}
		if resp.StatusCode != 500 {
			t.Errorf("%s status = %d, want 500", path, resp.StatusCode)
		}
	}
}
