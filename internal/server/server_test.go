package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/grassroots/internal/basestation"
	"github.com/danmuck/grassroots/internal/dispatch"
	"github.com/danmuck/grassroots/internal/imaging"
	"github.com/danmuck/grassroots/internal/logging"
	"github.com/danmuck/grassroots/internal/protocol"
	"github.com/danmuck/grassroots/internal/series"
	"github.com/danmuck/grassroots/internal/testutil/testlog"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

type stubStation struct {
	registry *basestation.Registry
	image    *imaging.Buffer
	series   basestation.SeriesSnapshot

	subscribeOnce sync.Once
	subscribed    chan struct{}
}

func newStubStation() *stubStation {
	return &stubStation{
		registry:   basestation.NewRegistry(0),
		subscribed: make(chan struct{}),
	}
}

func (s *stubStation) Status() basestation.Status {
	return basestation.Status{Name: "stub", RunID: "run-1", ReaderState: "running"}
}
func (s *stubStation) Identities() basestation.Identities { return s.registry.Identities() }
func (s *stubStation) SelectCamera(id string) error       { return s.registry.SelectCamera(id) }
func (s *stubStation) SelectSensor(key string) error      { return s.registry.SelectSensor(key) }
func (s *stubStation) Dims() imaging.Dims                 { return imaging.Dims{Width: 2, Height: 1, Depth: 3} }
func (s *stubStation) Series() basestation.SeriesSnapshot { return s.series }
func (s *stubStation) Notices() []basestation.Notice      { return s.registry.Notices() }

func (s *stubStation) Image() (imaging.Buffer, bool) {
	if s.image == nil {
		return imaging.Buffer{}, false
	}
	return *s.image, true
}

func (s *stubStation) Subscribe(buf int) (<-chan basestation.Event, func()) {
	ch, cancel := s.registry.Subscribe(buf)
	s.subscribeOnce.Do(func() { close(s.subscribed) })
	return ch, cancel
}

func newTestServer(t *testing.T) (*Server, *stubStation) {
	t.Helper()
	testlog.Start(t)
	st := newStubStation()
	return New("basestation-test", "127.0.0.1:0", nil, st), st
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestHealthReportsRunID(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["run_id"] != "run-1" || body["reader_state"] != "running" {
		t.Fatalf("unexpected health body: %#v", body)
	}
	logging.Logf("server/http: GET /health status=%d", rr.Code)
}

func TestSelectRoutes(t *testing.T) {
	s, st := newTestServer(t)
	st.registry.IdentityObserved(dispatch.IdentityCamera, "2-1", true)
	st.registry.IdentityObserved(dispatch.IdentityCamera, "3-1", false)

	if rr := do(t, s, http.MethodPost, "/select/camera", `{"identity":"9-9"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown camera, got %d", rr.Code)
	}
	if rr := do(t, s, http.MethodPost, "/select/camera", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing identity, got %d", rr.Code)
	}
	if rr := do(t, s, http.MethodPost, "/select/sensor", `{"identity":"2-1"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for camera key on sensor route, got %d", rr.Code)
	}

	rr := do(t, s, http.MethodPost, "/select/camera", `{"identity":"3-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, s, http.MethodGet, "/identities", "")
	var ids basestation.Identities
	if err := json.Unmarshal(rr.Body.Bytes(), &ids); err != nil {
		t.Fatalf("decode identities: %v", err)
	}
	if ids.SelectedCamera != "3-1" || len(ids.Cameras) != 2 || ids.Cameras[0] != "2-1" {
		t.Fatalf("unexpected identities: %+v", ids)
	}
	logging.Logf("server/http: selection switched to %s", ids.SelectedCamera)
}

func TestImageFormats(t *testing.T) {
	s, st := newTestServer(t)
	if rr := do(t, s, http.MethodGet, "/image", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any camera, got %d", rr.Code)
	}

	st.image = &imaging.Buffer{
		Identity: "2-1",
		Dims:     imaging.Dims{Width: 2, Height: 1, Depth: 3},
		Pix:      []byte{255, 0, 0, 0, 0, 255},
	}

	rr := do(t, s, http.MethodGet, "/image", "")
	var view ImageView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode json image: %v", err)
	}
	if view.Identity != "2-1" || view.Width != 2 || !bytes.Equal(view.Pixels, st.image.Pix) {
		t.Fatalf("unexpected json image: %+v", view)
	}

	rr = do(t, s, http.MethodGet, "/image?format=cbor", "")
	if ct := rr.Header().Get("Content-Type"); ct != contentTypeCBOR {
		t.Fatalf("expected cbor content type, got %q", ct)
	}
	var cview ImageView
	if err := cbor.Unmarshal(rr.Body.Bytes(), &cview); err != nil {
		t.Fatalf("decode cbor image: %v", err)
	}
	if cview.Depth != 3 || !bytes.Equal(cview.Pixels, st.image.Pix) {
		t.Fatalf("unexpected cbor image: %+v", cview)
	}

	rr = do(t, s, http.MethodGet, "/image?format=png", "")
	img, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 1 {
		t.Fatalf("unexpected png bounds: %v", b)
	}
	r, _, _, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 {
		t.Fatalf("expected red first pixel, got r=%d", r>>8)
	}

	if rr := do(t, s, http.MethodGet, "/image?format=bmp", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rr.Code)
	}
}

func TestSeriesCBOR(t *testing.T) {
	s, st := newTestServer(t)
	st.series = basestation.SeriesSnapshot{
		Key:       "4-2-temp",
		Selected:  true,
		Capacity:  3,
		Values:    []float64{0, 20.5, 21},
		Latest:    series.Reading{Key: "4-2-temp", Raw: "21", Value: 21, Valid: true},
		HasLatest: true,
	}
	rr := do(t, s, http.MethodGet, "/series?format=cbor", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got basestation.SeriesSnapshot
	if err := cbor.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode cbor series: %v", err)
	}
	if got.Key != "4-2-temp" || len(got.Values) != 3 || got.Values[2] != 21 || got.Latest.Raw != "21" {
		t.Fatalf("unexpected series: %+v", got)
	}
}

func TestNoticesRoute(t *testing.T) {
	s, st := newTestServer(t)
	st.registry.Notice(protocol.Header{SourceID: 4}, "battery low")
	rr := do(t, s, http.MethodGet, "/notices", "")
	var body struct {
		Notices []basestation.Notice `json:"notices"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode notices: %v", err)
	}
	if len(body.Notices) != 1 || body.Notices[0].Text != "battery low" || body.Notices[0].SourceID != 4 {
		t.Fatalf("unexpected notices: %+v", body.Notices)
	}
}

func TestEventsStream(t *testing.T) {
	s, st := newTestServer(t)
	ts := httptest.NewServer(s.HTTPRouter())
	defer ts.Close()
	defer s.close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	defer conn.Close()

	select {
	case <-st.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatalf("events handler never subscribed")
	}
	st.registry.IdentityObserved(dispatch.IdentitySensor, "4-2-temp", true)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev basestation.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != basestation.EventIdentity || ev.Identity != "4-2-temp" || !ev.AutoSelected {
		t.Fatalf("unexpected event: %+v", ev)
	}
	logging.Logf("server/ws: event seq=%d kind=%s", ev.Seq, ev.Kind)
}

func TestEventsRejectsForeignOrigin(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.HTTPRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	hdr := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, hdr); err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	}
}
