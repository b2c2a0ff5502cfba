package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_glove/internal/imu"
	"github.com/relabs-tech/motion_glove/internal/sim"
)

const payload = `{"2":[10,-5,998,1,0,-2],"3":[8,-3,1001,0,1,-1]}`

func TestConsolePrintsRowsAndRecords(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, true)
	c.HandlePayload([]byte(payload))
	c.HandlePayload([]byte(`not json`))
	c.HandlePayload([]byte(`{"9":[1,2,3,4,5,6]}`))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("printed %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "[IMU-2] ax=    10") || !strings.HasPrefix(lines[1], "[IMU-3]") {
		t.Errorf("rows = %q", lines)
	}
	if kept, rejected := c.Records(); kept != 1 || rejected != 2 {
		t.Errorf("kept=%d rejected=%d", kept, rejected)
	}

	path := filepath.Join(t.TempDir(), "rec.json")
	if err := c.WriteRecording(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var recs []*imu.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		t.Fatalf("recording is not a JSON array of records: %v", err)
	}
	if len(recs) != 1 || string(recs[0].Encode()) != payload {
		t.Errorf("recording = %s", data)
	}
}

func TestConsoleWithoutRecordingKeepsNothing(t *testing.T) {
	c := NewConsole(io.Discard, false)
	c.HandlePayload([]byte(payload))
	if kept, _ := c.Records(); kept != 0 {
		t.Errorf("kept = %d", kept)
	}
	path := filepath.Join(t.TempDir(), "rec.json")
	if err := c.WriteRecording(path); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(path); string(data) != "[]" {
		t.Errorf("empty recording = %q", data)
	}
}

func TestRelayLatest(t *testing.T) {
	r := NewRelay()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/latest")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status before data = %d", resp.StatusCode)
	}

	r.Broadcast([]byte(payload))
	r.Broadcast([]byte(`{"x":1}`))

	resp, err = http.Get(srv.URL + "/api/latest")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != payload {
		t.Errorf("latest = %d %q", resp.StatusCode, body)
	}
}

func TestRelayWebsocket(t *testing.T) {
	r := NewRelay()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for r.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never joined")
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.Broadcast([]byte(payload))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != payload {
		t.Errorf("relayed %q", msg)
	}
}

func TestRunBusScan(t *testing.T) {
	hw := sim.NewGlove(0x70, 0x68)
	hw.WirePins("GPIO4", "GPIO5")
	hw.Attach(2, sim.Constant(imu.MotionSample{}))
	hw.Attach(3, sim.Constant(imu.MotionSample{}))
	hw.SetHealthy(3, false)

	cfg := testConfig()
	var out bytes.Buffer
	if err := RunBusScan(context.Background(), cfg, hw, &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{
		"multiplexer 0x70 on SDA:D2 SCL:D1",
		"channel 2: MPU6050 at 0x68",
		"PWR_MGMT_1",
		"channel 3: unexpected WHO_AM_I",
		"channel 4: no response",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("scan output missing %q:\n%s", want, got)
		}
	}
	if hw.Reads(2) != 0 {
		t.Error("scan read motion data")
	}
}
