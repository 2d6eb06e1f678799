package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medpal/internal/router"

	"github.com/gorilla/websocket"
)

func TestHTTP_EndToEnd_MedicationLifecycle(t *testing.T) {
	handler, _ := router.NewRouter(router.Options{Dev: true})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	userID := "user-1"

	// 1) Alta
	medID := createMedication(t, ts.URL, userID, map[string]any{
		"name":        "Aspirin",
		"dosage":      "100mg",
		"frequency":   "08:30",
		"form":        "pill",
		"interval":    "daily",
		"instruction": "After meal",
		"slot":        "morning",
		"start_date":  "2026-01-10",
	})

	// 2) Listado del owner
	{
		st, body := doReq(t, ts.URL, "GET", "/medications", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list, got %d body=%s", st, string(body))
		}
		var items []map[string]any
		if err := json.Unmarshal(body, &items); err != nil {
			t.Fatalf("unmarshal list: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 medication, got %d", len(items))
		}
	}

	// 3) Get por id
	{
		st, body := doReq(t, ts.URL, "GET", "/medications/"+medID, userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 get, got %d body=%s", st, string(body))
		}
	}

	// 4) PATCH parcial: cambia dosage, conserva el resto
	{
		st, body := doReq(t, ts.URL, "PATCH", "/medications/"+medID, userID, map[string]any{
			"dosage": "200mg",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 patch, got %d body=%s", st, string(body))
		}
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		if m["dosage"] != "200mg" {
			t.Fatalf("expected dosage updated, got %v", m["dosage"])
		}
		if m["name"] != "Aspirin" {
			t.Fatalf("expected name untouched, got %v", m["name"])
		}
	}

	// 5) end_date: null limpia la fecha
	{
		st, body := doReq(t, ts.URL, "PATCH", "/medications/"+medID, userID, map[string]any{
			"end_date": nil,
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 patch end_date null, got %d body=%s", st, string(body))
		}
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		if _, ok := m["end_date"]; ok {
			t.Fatalf("expected end_date cleared, got %v", m["end_date"])
		}
	}

	// 6) Status take
	{
		st, body := doReq(t, ts.URL, "POST", "/medications/"+medID+"/status", userID, map[string]any{
			"action": "take",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 status take, got %d body=%s", st, string(body))
		}
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		if m["status"] != "take" {
			t.Fatalf("expected status take, got %v", m["status"])
		}
	}

	// 7) pending=true excluye lo ya marcado
	{
		st, body := doReq(t, ts.URL, "GET", "/medications?pending=true", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 pending list, got %d body=%s", st, string(body))
		}
		var items []map[string]any
		_ = json.Unmarshal(body, &items)
		if len(items) != 0 {
			t.Fatalf("expected 0 pending medications, got %d", len(items))
		}
	}

	// 8) Filtro por slot
	{
		st, body := doReq(t, ts.URL, "GET", "/medications?slot=night", userID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 slot list, got %d body=%s", st, string(body))
		}
		var items []map[string]any
		_ = json.Unmarshal(body, &items)
		if len(items) != 0 {
			t.Fatalf("expected 0 night medications, got %d", len(items))
		}
	}

	// 9) Delete y 404 posterior
	{
		st, _ := doReq(t, ts.URL, "DELETE", "/medications/"+medID, userID, nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 delete, got %d", st)
		}
		st, _ = doReq(t, ts.URL, "GET", "/medications/"+medID, userID, nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", st)
		}
	}
}

func TestHTTP_Medications_CrossOwnerIsNotFound(t *testing.T) {
	handler, _ := router.NewRouter(router.Options{Dev: true})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	medID := createMedication(t, ts.URL, "owner-a", map[string]any{
		"name":        "Ibuprofen",
		"dosage":      "400mg",
		"frequency":   "12:00",
		"form":        "pill",
		"interval":    "daily",
		"instruction": "With meal",
		"slot":        "afternoon",
	})

	// Otro owner: 404, indistinguible de ausencia genuina
	st, _ := doReq(t, ts.URL, "GET", "/medications/"+medID, "owner-b", nil)
	if st != http.StatusNotFound {
		t.Fatalf("expected 404 cross-owner get, got %d", st)
	}
	st, _ = doReq(t, ts.URL, "DELETE", "/medications/"+medID, "owner-b", nil)
	if st != http.StatusNotFound {
		t.Fatalf("expected 404 cross-owner delete, got %d", st)
	}
	st, _ = doReq(t, ts.URL, "PATCH", "/medications/"+medID, "owner-b", map[string]any{"dosage": "x"})
	if st != http.StatusNotFound {
		t.Fatalf("expected 404 cross-owner patch, got %d", st)
	}

	// El dueño sigue viéndolo
	st, _ = doReq(t, ts.URL, "GET", "/medications/"+medID, "owner-a", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 owner get, got %d", st)
	}
}

func TestHTTP_Medications_RejectsInvalidInput(t *testing.T) {
	handler, _ := router.NewRouter(router.Options{Dev: true})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	cases := map[string]map[string]any{
		"missing name": {
			"frequency": "08:00", "form": "pill", "interval": "daily",
			"instruction": "After meal", "slot": "morning",
		},
		"bad frequency": {
			"name": "A", "frequency": "25:00", "form": "pill", "interval": "daily",
			"instruction": "After meal", "slot": "morning",
		},
		"bad form": {
			"name": "A", "frequency": "08:00", "form": "gummy", "interval": "daily",
			"instruction": "After meal", "slot": "morning",
		},
		"bad interval": {
			"name": "A", "frequency": "08:00", "form": "pill", "interval": "hourly",
			"instruction": "After meal", "slot": "morning",
		},
		"bad instruction": {
			"name": "A", "frequency": "08:00", "form": "pill", "interval": "daily",
			"instruction": "Whenever", "slot": "morning",
		},
		"bad slot": {
			"name": "A", "frequency": "08:00", "form": "pill", "interval": "daily",
			"instruction": "After meal", "slot": "midnight",
		},
	}

	for name, payload := range cases {
		st, _ := doReq(t, ts.URL, "POST", "/medications", "user-1", payload)
		if st != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, st)
		}
	}

	// status inválido
	medID := createMedication(t, ts.URL, "user-1", map[string]any{
		"name": "B", "frequency": "08:00", "form": "pill", "interval": "daily",
		"instruction": "After meal", "slot": "morning",
	})
	st, _ := doReq(t, ts.URL, "POST", "/medications/"+medID+"/status", "user-1", map[string]any{
		"action": "maybe",
	})
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid status action, got %d", st)
	}
}

func TestHTTP_Medications_MultipartCreateWithImage(t *testing.T) {
	handler, _ := router.NewRouter(router.Options{Dev: true})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	payload, _ := json.Marshal(map[string]any{
		"name": "Amoxicillin", "dosage": "500mg", "frequency": "09:00",
		"form": "pill", "interval": "daily", "instruction": "Before meal", "slot": "morning",
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("data", string(payload))
	fw, err := mw.CreateFormFile("image", "med.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("pretend-png-bytes"))
	_ = mw.Close()

	req, _ := http.NewRequest("POST", ts.URL+"/medications", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Debug-User-ID", "user-1")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 multipart create, got %d body=%s", res.StatusCode, string(body))
	}

	var m struct {
		ID       string `json:"id"`
		ImageURL string `json:"image_url"`
	}
	_ = json.Unmarshal(body, &m)
	if m.ImageURL == "" {
		t.Fatalf("expected image_url set, body=%s", string(body))
	}

	// La imagen se sirve por el endpoint referenciado
	st, img := doReq(t, ts.URL, "GET", m.ImageURL, "user-1", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 image fetch, got %d", st)
	}
	if string(img) != "pretend-png-bytes" {
		t.Fatalf("unexpected image bytes: %q", string(img))
	}

	// Cross-owner tampoco ve la imagen
	st, _ = doReq(t, ts.URL, "GET", m.ImageURL, "user-2", nil)
	if st != http.StatusNotFound {
		t.Fatalf("expected 404 cross-owner image, got %d", st)
	}
}

func TestHTTP_NextDose(t *testing.T) {
	fixed := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	handler, _ := router.NewRouter(router.Options{
		Dev: true,
		Now: func() time.Time { return fixed },
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	userID := "user-1"

	// Sin registros: 204
	st, _ := doReq(t, ts.URL, "GET", "/medications/next-dose", userID, nil)
	if st != http.StatusNoContent {
		t.Fatalf("expected 204 without medications, got %d", st)
	}

	createMedication(t, ts.URL, userID, map[string]any{
		"name": "Morning Med", "frequency": "09:00", "form": "pill",
		"interval": "daily", "instruction": "Before meal", "slot": "morning",
	})
	createMedication(t, ts.URL, userID, map[string]any{
		"name": "Afternoon Med", "frequency": "14:30", "form": "liquid",
		"interval": "daily", "instruction": "With meal", "slot": "afternoon",
	})

	// A las 10:00 el trigger de las 09:00 ya pasó; gana 14:30
	st, body := doReq(t, ts.URL, "GET", "/medications/next-dose", userID, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 next dose, got %d body=%s", st, string(body))
	}
	var nd struct {
		Name string `json:"name"`
		Time string `json:"time"`
	}
	_ = json.Unmarshal(body, &nd)
	if nd.Name != "Afternoon Med" || nd.Time != "14:30" {
		t.Fatalf("expected Afternoon Med @ 14:30, got %+v", nd)
	}
}

func TestHTTP_Reminders_RaiseAndDismiss(t *testing.T) {
	now := time.Date(2026, 3, 5, 8, 30, 0, 0, time.UTC)
	handler, matcher := router.NewRouter(router.Options{
		Dev: true,
		Now: func() time.Time { return now },
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	userID := "user-1"
	createMedication(t, ts.URL, userID, map[string]any{
		"name": "Aspirin", "frequency": "08:30", "form": "pill",
		"interval": "daily", "instruction": "After meal", "slot": "morning",
	})

	// Sin tick todavía: 204
	st, _ := doReq(t, ts.URL, "GET", "/reminders/current", userID, nil)
	if st != http.StatusNoContent {
		t.Fatalf("expected 204 before tick, got %d", st)
	}

	if err := matcher.Check(context.Background()); err != nil {
		t.Fatalf("matcher check: %v", err)
	}

	st, body := doReq(t, ts.URL, "GET", "/reminders/current", userID, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 armed reminder, got %d body=%s", st, string(body))
	}
	var rem struct {
		Name    string `json:"name"`
		Time    string `json:"time"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &rem)
	if rem.Name != "Aspirin" || rem.Time != "08:30" {
		t.Fatalf("unexpected reminder: %+v", rem)
	}
	if rem.Message != "Time to take your medication: Aspirin" {
		t.Fatalf("unexpected message: %q", rem.Message)
	}

	// Otro owner no lo ve
	st, _ = doReq(t, ts.URL, "GET", "/reminders/current", "user-2", nil)
	if st != http.StatusNoContent {
		t.Fatalf("expected 204 for other owner, got %d", st)
	}

	// Dismiss y tick dentro del mismo minuto: no se re-arma
	st, _ = doReq(t, ts.URL, "POST", "/reminders/dismiss", userID, nil)
	if st != http.StatusNoContent {
		t.Fatalf("expected 204 dismiss, got %d", st)
	}
	if err := matcher.Check(context.Background()); err != nil {
		t.Fatalf("matcher re-check: %v", err)
	}
	st, _ = doReq(t, ts.URL, "GET", "/reminders/current", userID, nil)
	if st != http.StatusNoContent {
		t.Fatalf("expected 204 after dismiss in same minute, got %d", st)
	}
}

func TestHTTP_Auth_JWTSessionFlow(t *testing.T) {
	handler, _ := router.NewRouter(router.Options{})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	// Signup
	st, body := doReq(t, ts.URL, "POST", "/auth/signup", "", map[string]any{
		"email":        "ana@example.com",
		"password":     "secret1",
		"display_name": "Ana",
	})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 signup, got %d body=%s", st, string(body))
	}
	var sess struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	_ = json.Unmarshal(body, &sess)
	if sess.Token == "" || sess.User.ID == "" {
		t.Fatalf("signup: missing token or user, body=%s", string(body))
	}

	// Email duplicado => 409
	st, _ = doReq(t, ts.URL, "POST", "/auth/signup", "", map[string]any{
		"email":    "ana@example.com",
		"password": "secret1",
	})
	if st != http.StatusConflict {
		t.Fatalf("expected 409 duplicate email, got %d", st)
	}

	// /me con el token
	st, body = doBearerReq(t, ts.URL, "GET", "/me", sess.Token, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 /me, got %d body=%s", st, string(body))
	}
	var me struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
	_ = json.Unmarshal(body, &me)
	if me.Email != "ana@example.com" || me.DisplayName != "Ana" {
		t.Fatalf("unexpected profile: %+v", me)
	}

	// Password incorrecto => 401
	st, _ = doReq(t, ts.URL, "POST", "/auth/signin", "", map[string]any{
		"email":    "ana@example.com",
		"password": "wrong",
	})
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 wrong password, got %d", st)
	}

	// Signin correcto
	st, body = doReq(t, ts.URL, "POST", "/auth/signin", "", map[string]any{
		"email":    "ana@example.com",
		"password": "secret1",
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 signin, got %d body=%s", st, string(body))
	}
	_ = json.Unmarshal(body, &sess)

	// PATCH /me
	st, body = doBearerReq(t, ts.URL, "PATCH", "/me", sess.Token, map[string]any{
		"display_name": "Ana María",
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 patch /me, got %d body=%s", st, string(body))
	}

	// Signout revoca el token
	st, _ = doBearerReq(t, ts.URL, "POST", "/auth/signout", sess.Token, nil)
	if st != http.StatusNoContent {
		t.Fatalf("expected 204 signout, got %d", st)
	}
	st, _ = doBearerReq(t, ts.URL, "GET", "/me", sess.Token, nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 with revoked token, got %d", st)
	}
}

func TestHTTP_RequiresAuth(t *testing.T) {
	handler, _ := router.NewRouter(router.Options{Dev: true})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	paths := []struct {
		method, path string
	}{
		{"GET", "/medications"},
		{"POST", "/medications"},
		{"GET", "/medications/next-dose"},
		{"GET", "/reminders/current"},
		{"POST", "/chat"},
		{"GET", "/reports/adherence"},
		{"GET", "/reports/overall"},
		{"GET", "/me"},
	}
	for _, p := range paths {
		st, _ := doReq(t, ts.URL, p.method, p.path, "", nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 without auth, got %d", p.method, p.path, st)
		}
	}

	// Health queda abierto
	st, _ := doReq(t, ts.URL, "GET", "/health", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", st)
	}
}

func TestHTTP_ChatAndReports(t *testing.T) {
	handler, _ := router.NewRouter(router.Options{Dev: true})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	// Chat con match
	st, body := doReq(t, ts.URL, "POST", "/chat", "user-1", map[string]any{
		"question": "Hi, what should I do if I miss a dose?",
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 chat, got %d body=%s", st, string(body))
	}
	var ans struct {
		Answer  string `json:"answer"`
		Matched bool   `json:"matched"`
	}
	_ = json.Unmarshal(body, &ans)
	if !ans.Matched || !strings.Contains(ans.Answer, "skip the missed one") {
		t.Fatalf("unexpected chat answer: %+v", ans)
	}

	// Reportes
	st, body = doReq(t, ts.URL, "GET", "/reports/adherence?period=weekly", "user-1", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 weekly report, got %d body=%s", st, string(body))
	}
	var points []struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(body, &points)
	if len(points) != 7 {
		t.Fatalf("expected 7 weekly points, got %d", len(points))
	}

	st, _ = doReq(t, ts.URL, "GET", "/reports/adherence?period=yearly", "user-1", nil)
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 unknown period, got %d", st)
	}

	st, body = doReq(t, ts.URL, "GET", "/reports/overall", "user-1", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 overall report, got %d body=%s", st, string(body))
	}
}

func TestHTTP_WatchStreamsSnapshots(t *testing.T) {
	handler, _ := router.NewRouter(router.Options{Dev: true})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/medications/watch"
	hdr := http.Header{}
	hdr.Set("X-Debug-User-ID", "user-1")

	conn, res, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	if err != nil {
		t.Fatalf("dial watch: %v (res=%v)", err, res)
	}
	defer conn.Close()

	// Snapshot inicial: vacío
	var snapshot []map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d items", len(snapshot))
	}

	// Un alta empuja el set completo
	createMedication(t, ts.URL, "user-1", map[string]any{
		"name": "Aspirin", "frequency": "08:00", "form": "pill",
		"interval": "daily", "instruction": "After meal", "slot": "morning",
	})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read updated snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0]["name"] != "Aspirin" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	// Cambios de otro owner no llegan
	createMedication(t, ts.URL, "user-2", map[string]any{
		"name": "Other", "frequency": "09:00", "form": "pill",
		"interval": "daily", "instruction": "After meal", "slot": "morning",
	})
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if err := conn.ReadJSON(&snapshot); err == nil {
		t.Fatalf("expected no snapshot for other owner's change, got %+v", snapshot)
	}
}

func createMedication(t *testing.T, baseURL, userID string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", "/medications", userID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create medication, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("create medication: missing id body=%s", string(body))
	}
	return resp.ID
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()
	return do(t, baseURL, method, path, body, func(req *http.Request) {
		if debugUserID != "" {
			req.Header.Set("X-Debug-User-ID", debugUserID)
		}
	})
}

func doBearerReq(t *testing.T, baseURL, method, path, token string, body any) (int, []byte) {
	t.Helper()
	return do(t, baseURL, method, path, body, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
}

func do(t *testing.T, baseURL, method, path string, body any, decorate func(*http.Request)) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	decorate(req)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
