package handlers_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"photo-review-backend/internal/dispatcher"
	"photo-review-backend/internal/handlers"
	"photo-review-backend/internal/idgen"
	"photo-review-backend/internal/ledger"
	"photo-review-backend/internal/middleware"
	"photo-review-backend/internal/models"
	"photo-review-backend/internal/notifier"
	"photo-review-backend/internal/services"
	"photo-review-backend/internal/signature"
	"photo-review-backend/internal/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

type testApp struct {
	router    *gin.Engine
	ledger    *ledger.Ledger
	queue     *notifier.MemoryQueue
	priv      ed25519.PrivateKey
	uploadDir string
}

func newTestApp(t *testing.T, signedMessages bool) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	verifier, err := signature.NewVerifier(hex.EncodeToString(pub))
	require.NoError(t, err)
	guard, err := middleware.NewReplayGuard(64, 0)
	require.NoError(t, err)

	ids, err := idgen.New(1)
	require.NoError(t, err)
	uploadDir := t.TempDir()
	store, err := storage.NewDiskStore(uploadDir, "uploads")
	require.NoError(t, err)

	l := ledger.New()
	q := notifier.NewMemoryQueue(16)
	d := dispatcher.New(l)
	status := services.NewStatusService(l)

	routes := handlers.Routes{
		Upload:          handlers.NewUploadHandler(services.NewUploadService(ids, store, l, q, "http://localhost:3000"), 1<<20),
		Status:          handlers.NewStatusHandler(status),
		Stream:          handlers.NewStreamHandler(status),
		Interactions:    handlers.NewInteractionsHandler(d),
		Messages:        handlers.NewMessageHandler(d),
		InteractionGate: middleware.SignatureGate(verifier, guard),
		UploadDir:       uploadDir,
	}
	if signedMessages {
		routes.MessageGate = middleware.SignatureGate(verifier, guard)
	}

	return &testApp{
		router:    handlers.NewRouter(routes),
		ledger:    l,
		queue:     q,
		priv:      priv,
		uploadDir: uploadDir,
	}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) upload(t *testing.T, field, filename, contentType string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req)
}

func (a *testApp) uploadPhoto(t *testing.T) models.UploadResponse {
	t.Helper()
	w := a.upload(t, "photo", "me.png", "", pngBytes, map[string]string{"score": "87"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (a *testApp) signed(path string, body []byte, ts string, valid bool) *http.Request {
	sig := hex.EncodeToString(ed25519.Sign(a.priv, signature.Message(ts, body)))
	if !valid {
		sig = strings.Repeat("ab", ed25519.SignatureSize)
	}
	req, _ := http.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderSignature, sig)
	req.Header.Set(signature.HeaderTimestamp, ts)
	return req
}

func (a *testApp) press(t *testing.T, customID, ts string, valid bool) *httptest.ResponseRecorder {
	t.Helper()
	body := []byte(`{"id":"i1","application_id":"a1","type":3,"token":"t","version":1,` +
		`"data":{"custom_id":"` + customID + `","component_type":2},` +
		`"member":{"user":{"id":"u1","username":"reviewer"}}}`)
	return a.do(a.signed("/discord/interactions", body, ts, valid))
}

func (a *testApp) status(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()
	req, _ := http.NewRequest("GET", path, nil)
	w := a.do(req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func decodeInteraction(t *testing.T, w *httptest.ResponseRecorder) discordgo.InteractionResponse {
	t.Helper()
	var resp discordgo.InteractionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", handlers.HealthHandler)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

// Upload, verdict by button, poll.
func TestScenario_ButtonVerdict(t *testing.T) {
	app := newTestApp(t, false)
	up := app.uploadPhoto(t)
	assert.Equal(t, "pending", up.Status)
	assert.NotContains(t, up.ID, ":")

	code, body := app.status(t, "/status/"+up.ID)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", body["status"])
	assert.Nil(t, body["result"])
	assert.Equal(t, "87", body["score"])

	w := app.press(t, "rate:"+up.ID+":잘생김", "1700000000", true)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeInteraction(t, w)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	assert.Contains(t, resp.Data.Content, "잘생김")

	code, body = app.status(t, "/status/"+up.ID)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "done", body["status"])
	assert.Equal(t, "잘생김", body["result"])
	assert.NotEmpty(t, body["resolvedAt"])
}

// A second verdict after resolution is refused and does not overwrite.
func TestScenario_AlreadyJudged(t *testing.T) {
	app := newTestApp(t, false)
	up := app.uploadPhoto(t)

	require.Equal(t, http.StatusOK, app.press(t, "rate:"+up.ID+":잘생김", "1700000000", true).Code)

	w := app.press(t, "rate:"+up.ID+":못생김", "1700000001", true)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeInteraction(t, w)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	assert.Contains(t, resp.Data.Content, "already been judged")

	_, body := app.status(t, "/result/"+up.ID)
	assert.Equal(t, "잘생김", body["result"])
}

// An unsigned callback is rejected and changes nothing.
func TestScenario_InvalidSignature(t *testing.T) {
	app := newTestApp(t, false)
	up := app.uploadPhoto(t)

	w := app.press(t, "rate:"+up.ID+":잘생김", "1700000000", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	rec, err := app.ledger.Get(up.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, rec.Status)
	assert.Empty(t, rec.Result)
}

func TestInteractions_Ping(t *testing.T) {
	app := newTestApp(t, false)

	w := app.do(app.signed("/discord/interactions", []byte(`{"type":1}`), "1700000000", true))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":1}`, w.Body.String())
}

func TestInteractions_ReplayRejected(t *testing.T) {
	app := newTestApp(t, false)
	body := []byte(`{"type":1}`)

	req := app.signed("/discord/interactions", body, "1700000000", true)
	assert.Equal(t, http.StatusOK, app.do(req).Code)

	req = app.signed("/discord/interactions", body, "1700000000", true)
	assert.Equal(t, http.StatusUnauthorized, app.do(req).Code)
}

func TestInteractions_UnknownID(t *testing.T) {
	app := newTestApp(t, false)

	w := app.press(t, "rate:12345:잘생김", "1700000000", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeInteraction(t, w).Data.Content, "Invalid or unknown request")
}

func TestInteractions_MalformedBody(t *testing.T) {
	app := newTestApp(t, false)

	w := app.do(app.signed("/discord/interactions", []byte(`not json`), "1700000000", true))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessage_Trusted(t *testing.T) {
	app := newTestApp(t, false)
	up := app.uploadPhoto(t)

	post := func(body string) *httptest.ResponseRecorder {
		req, _ := http.NewRequest("POST", "/discord/message", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return app.do(req)
	}

	assert.Equal(t, http.StatusOK, post(`{"content":"hello"}`).Code)
	assert.Equal(t, http.StatusOK, post(`{"content":"!rate 999 잘생김"}`).Code)
	assert.Equal(t, http.StatusOK, post(`garbage`).Code)

	w := post(`{"content":"!rate ` + up.ID + ` 정말 귀여움"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, post(`{"content":"!rate `+up.ID+` 못생김"}`).Code)

	rec, err := app.ledger.Get(up.ID)
	require.NoError(t, err)
	assert.Equal(t, "정말 귀여움", rec.Result)
}

func TestMessage_SignatureMode(t *testing.T) {
	app := newTestApp(t, true)
	up := app.uploadPhoto(t)
	body := []byte(`{"content":"!rate ` + up.ID + ` 훈훈함"}`)

	w := app.do(app.signed("/discord/message", body, "1700000000", false))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	rec, _ := app.ledger.Get(up.ID)
	assert.Equal(t, ledger.StatusPending, rec.Status)

	w = app.do(app.signed("/discord/message", body, "1700000000", true))
	assert.Equal(t, http.StatusOK, w.Code)
	rec, _ = app.ledger.Get(up.ID)
	assert.Equal(t, "훈훈함", rec.Result)
}

func TestUpload_StoresAndQueues(t *testing.T) {
	app := newTestApp(t, false)
	w := app.upload(t, "image", "me.png", "image/png", pngBytes, map[string]string{
		"score":    "87",
		"percent":  "92%",
		"feedback": "nice",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var up models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	assert.Equal(t, "/uploads/"+up.ID+".png", up.ImageURL)

	_, err := os.Stat(filepath.Join(app.uploadDir, up.ID+".png"))
	assert.NoError(t, err)
	assert.Equal(t, 1, app.queue.Len())

	req, _ := http.NewRequest("GET", up.ImageURL, nil)
	served := app.do(req)
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, pngBytes, served.Body.Bytes())
}

func TestUpload_Rejections(t *testing.T) {
	app := newTestApp(t, false)

	w := app.upload(t, "", "", "", nil, map[string]string{"score": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.upload(t, "photo", "notes.txt", "text/plain", []byte("hello"), nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = app.upload(t, "photo", "big.png", "image/png", bytes.Repeat([]byte{1}, 2<<20), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.Equal(t, 0, app.ledger.Len())
}

func TestUpload_NotifyFailure(t *testing.T) {
	app := newTestApp(t, false)
	require.NoError(t, app.queue.Close())

	w := app.upload(t, "photo", "me.png", "", pngBytes, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp models.NotifyFailedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "failed to notify reviewers", resp.Error)
	require.NotEmpty(t, resp.ID)

	rec, err := app.ledger.Get(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, rec.Status)
}

func TestStatus_UnknownID(t *testing.T) {
	app := newTestApp(t, false)

	for _, path := range []string{"/status/nonexistent", "/result/nonexistent"} {
		code, body := app.status(t, path)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "unknown id", body["error"])
	}
}

func TestStreamStatus(t *testing.T) {
	app := newTestApp(t, false)
	up := app.uploadPhoto(t)

	srv := httptest.NewServer(app.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status/" + up.ID

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first models.StatusResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "pending", first.Status)
	assert.Nil(t, first.Result)

	_, err = app.ledger.Resolve(up.ID, "귀여움")
	require.NoError(t, err)

	var final models.StatusResponse
	require.NoError(t, conn.ReadJSON(&final))
	assert.Equal(t, "done", final.Status)
	require.NotNil(t, final.Result)
	assert.Equal(t, "귀여움", *final.Result)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
}

func TestStreamStatus_UnknownID(t *testing.T) {
	app := newTestApp(t, false)

	req, _ := http.NewRequest("GET", "/ws/status/nonexistent", nil)
	w := app.do(req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
