package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"cafe-ordering-api/handlers"
	"cafe-ordering-api/menu"
	"cafe-ordering-api/models"
	"cafe-ordering-api/notify"
	"cafe-ordering-api/orders"
	"cafe-ordering-api/routes"
	"cafe-ordering-api/sequence"
	"cafe-ordering-api/storage"
	"cafe-ordering-api/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() { gin.SetMode(gin.TestMode) }

const adminPassword = "sippin2025"

type testApp struct {
	router    *gin.Engine
	hub       *notify.Hub
	uploadDir string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.OpenDB(t)
	log := testutil.Logger()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Admin{Username: "admin", PasswordHash: string(hash)}).Error)

	counter := sequence.NewCounter(models.OrderNumberCounter, 1000)
	require.NoError(t, counter.Ensure(ctx, db))

	uploadDir := t.TempDir()
	hub := notify.NewHub(log)
	h := &handlers.Handler{
		DB:        db,
		Menu:      menu.NewService(db, storage.NewDiskStore(uploadDir, "/uploads"), log),
		Orders:    orders.NewService(db, counter, notify.NewOrderEvents(hub), 10, log),
		Hub:       hub,
		Secret:    []byte("test-secret"),
		TokenTTL:  time.Hour,
		MaxUpload: 1 << 20,
		Log:       log,
	}
	r := gin.New()
	routes.SetupRoutes(r, h, routes.Options{
		LoginRatePerMin: 100,
		UploadDir:       uploadDir,
		UploadURLPrefix: "/uploads",
	})
	return &testApp{router: r, hub: hub, uploadDir: uploadDir}
}

func (a *testApp) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) form(t *testing.T, method, path string, fields map[string]string, file []byte, fileName, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", fileName)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/admin/login", gin.H{"username": "admin", "password": adminPassword}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.Username)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func placeOrder(t *testing.T, app *testApp) models.Order {
	t.Helper()
	w := app.do(t, http.MethodPost, "/api/orders", gin.H{
		"tableNumber": 5,
		"isParcel":    true,
		"items": []gin.H{
			{"itemId": 1, "name": "Adrak Tea", "quantity": 2, "price": 30},
			{"itemId": "7", "name": "Classic Hot", "variant": "L", "quantity": 1, "price": 70},
		},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Order](t, w)
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.login(t)

	unknown := app.do(t, http.MethodPost, "/api/admin/login", gin.H{"username": "ghost", "password": adminPassword}, "")
	wrong := app.do(t, http.MethodPost, "/api/admin/login", gin.H{"username": "admin", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
}

func TestAdminRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/api/admin/orders", "/api/admin/menu", "/api/admin/summary"} {
		w := app.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		w = app.do(t, http.MethodGet, path, nil, "forged.token.value")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := app.do(t, http.MethodPatch, "/api/admin/orders/1/status", gin.H{"status": "ready"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlaceAndTrackOrder(t *testing.T) {
	app := newTestApp(t)
	order := placeOrder(t, app)

	assert.Equal(t, int64(1001), order.OrderNumber)
	assert.Equal(t, "5", order.TableNumber)
	assert.Equal(t, 130.0, order.Subtotal)
	assert.Equal(t, 10.0, order.ParcelCharges)
	assert.Equal(t, 140.0, order.Total)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "1", order.Items[0].ItemID)

	w := app.do(t, http.MethodGet, "/api/orders/"+itoa(order.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.OrderNumber, decode[models.Order](t, w).OrderNumber)

	w = app.do(t, http.MethodGet, "/api/orders/9999", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.do(t, http.MethodGet, "/api/orders/not-an-id", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaceOrderValidation(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/orders", gin.H{"tableNumber": "3", "items": []gin.H{}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No items in order", errorMessage(t, w))

	w = app.do(t, http.MethodPost, "/api/orders", gin.H{
		"items": []gin.H{{"itemId": "1", "name": "Tea", "quantity": 1, "price": 10}},
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Table number is required", errorMessage(t, w))

	w = app.do(t, http.MethodPost, "/api/orders", "not an object", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := app.login(t)
	w = app.do(t, http.MethodGet, "/api/admin/orders", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Order](t, w))
}

func TestUpdateOrderStatus(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)
	order := placeOrder(t, app)
	path := "/api/admin/orders/" + itoa(order.ID) + "/status"

	w := app.do(t, http.MethodPatch, path, gin.H{"status": "preparing"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodPatch, path, gin.H{"status": "pending"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Order](t, w)
	require.Len(t, updated.StatusHistory, 3)
	assert.Equal(t, models.StatusPending, updated.StatusHistory[2].Status)

	w = app.do(t, http.MethodPatch, path, gin.H{"status": "delivered"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "Invalid status")

	w = app.do(t, http.MethodPatch, "/api/admin/orders/9999/status", gin.H{"status": "ready"}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrdersFilters(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)
	first := placeOrder(t, app)
	placeOrder(t, app)
	w := app.do(t, http.MethodPatch, "/api/admin/orders/"+itoa(first.ID)+"/status", gin.H{"status": "ready"}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/admin/orders?status=all", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Order](t, w), 2)

	w = app.do(t, http.MethodGet, "/api/admin/orders?status=ready&table=5", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	ready := decode[[]models.Order](t, w)
	require.Len(t, ready, 1)
	assert.Equal(t, first.ID, ready[0].ID)

	w = app.do(t, http.MethodGet, "/api/admin/orders?table=42", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Order](t, w))
}

func TestSummary(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)
	placeOrder(t, app)
	placeOrder(t, app)

	w := app.do(t, http.MethodGet, "/api/admin/summary", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[orders.Summary](t, w)
	assert.Equal(t, 2, sum.TotalOrders)
	assert.Equal(t, 280.0, sum.TotalRevenue)
	assert.Equal(t, 140.0, sum.AvgOrderValue)
	assert.Equal(t, 2, sum.Pending)
}

func TestMenuLifecycle(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	w := app.form(t, http.MethodPost, "/api/admin/menu", map[string]string{
		"name": "Latte", "category": "Hot Coffee", "price": "99",
	}, pngBytes(t), "latte.png", token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.MenuItem](t, w)
	assert.True(t, item.Available)
	assert.True(t, strings.HasPrefix(item.Image, "/uploads/menu-"))
	_, err := os.Stat(filepath.Join(app.uploadDir, filepath.Base(item.Image)))
	require.NoError(t, err)

	w = app.do(t, http.MethodGet, item.Image, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/menu", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"variants":[]`)
	groups := decode[[]menu.Group](t, w)
	require.Len(t, groups, 1)
	assert.Equal(t, "Hot Coffee", groups[0].Category)
	assert.Equal(t, "Latte", groups[0].Items[0].Name)

	w = app.do(t, http.MethodGet, "/api/menu/search?q=lat", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.MenuItem](t, w), 1)

	w = app.form(t, http.MethodPut, "/api/admin/menu/"+itoa(item.ID), map[string]string{"available": "false"}, nil, "", token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[models.MenuItem](t, w).Available)

	w = app.do(t, http.MethodGet, "/api/menu", nil, "")
	assert.Empty(t, decode[[]menu.Group](t, w))
	w = app.do(t, http.MethodGet, "/api/admin/menu", nil, token)
	require.Len(t, decode[[]models.MenuItem](t, w), 1)

	w = app.do(t, http.MethodDelete, "/api/admin/menu/"+itoa(item.ID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	_, err = os.Stat(filepath.Join(app.uploadDir, filepath.Base(item.Image)))
	assert.True(t, os.IsNotExist(err))

	w = app.do(t, http.MethodDelete, "/api/admin/menu/"+itoa(item.ID), nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.form(t, http.MethodPut, "/api/admin/menu/"+itoa(item.ID), map[string]string{"name": "x"}, nil, "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMenuVariantsAndValidation(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	w := app.form(t, http.MethodPost, "/api/admin/menu", map[string]string{
		"name": "Classic Soy", "category": "Ramen",
		"variants": `[{"name":"Paneer","price":189},{"name":"Chicken","price":199}]`,
		"bestseller": "true",
	}, nil, "", token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.MenuItem](t, w)
	assert.Len(t, item.Variants, 2)
	assert.True(t, item.Bestseller)

	w = app.form(t, http.MethodPost, "/api/admin/menu", map[string]string{
		"name": "Bad", "category": "Ramen", "variants": "not json",
	}, nil, "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.form(t, http.MethodPost, "/api/admin/menu", map[string]string{"category": "Tea", "price": "abc"}, nil, "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.form(t, http.MethodPost, "/api/admin/menu", map[string]string{
		"name": "Fake", "category": "Tea", "price": "10",
	}, []byte("#!/bin/sh\necho not an image\n"), "fake.png", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only image files allowed", errorMessage(t, w))

	w = app.form(t, http.MethodPost, "/api/admin/menu", map[string]string{
		"name": "Doc", "category": "Tea", "price": "10",
	}, pngBytes(t), "menu.pdf", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, "/api/admin/menu", nil, token)
	assert.Len(t, decode[[]models.MenuItem](t, w), 1)
}

func TestMenuUploadTooLarge(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	huge := append(pngBytes(t), bytes.Repeat([]byte{0}, 3<<20)...)
	w := app.form(t, http.MethodPost, "/api/admin/menu", map[string]string{
		"name": "Poster", "category": "Desserts", "price": "10",
	}, huge, "poster.png", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "too large")

	entries, err := os.ReadDir(app.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	w = app.do(t, http.MethodGet, "/api/admin/menu", nil, token)
	assert.Empty(t, decode[[]models.MenuItem](t, w))
}

func TestStateMachineAndHealth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/state-machine", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, false, body["enforced"])
	assert.Len(t, body["statuses"], 5)

	w = app.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, w)["status"])

	w = app.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cafe_orders_created_total")
}

func TestWebsocketNotifications(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	admin, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer admin.Close()
	require.NoError(t, admin.WriteJSON(notify.Message{Event: notify.EventJoinAdmin}))

	anon, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer anon.Close()
	require.NoError(t, anon.WriteJSON(notify.Message{Event: notify.EventJoinAdmin}))
	msg := readMessage(t, anon)
	assert.Equal(t, notify.EventError, msg.Event)

	require.Eventually(t, func() bool { return app.hub.RoomSize(notify.RoomAdmin) == 1 }, 2*time.Second, 10*time.Millisecond)

	order := placeOrder(t, app)
	msg = readMessage(t, admin)
	assert.Equal(t, notify.EventNewOrder, msg.Event)

	data, err := json.Marshal(gin.H{"orderId": order.ID})
	require.NoError(t, err)
	customer, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer customer.Close()
	require.NoError(t, customer.WriteJSON(notify.Message{Event: notify.EventJoinCustomer, Data: data}))
	room := notify.OrderRoom(order.ID)
	require.Eventually(t, func() bool { return app.hub.RoomSize(room) == 1 }, 2*time.Second, 10*time.Millisecond)

	w := app.do(t, http.MethodPatch, "/api/admin/orders/"+itoa(order.ID)+"/status", gin.H{"status": "ready"}, token)
	require.Equal(t, http.StatusOK, w.Code)

	update := readMessage(t, customer)
	assert.Equal(t, notify.EventOrderUpdated, update.Event)
	var got models.Order
	require.NoError(t, json.Unmarshal(update.Data, &got))
	assert.Equal(t, models.StatusReady, got.Status)

	update = readMessage(t, admin)
	assert.Equal(t, notify.EventOrderUpdated, update.Event)
}

func readMessage(t *testing.T, conn *websocket.Conn) notify.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m notify.Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
