package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/toolshare/rental-backend/internal/booking"
	"github.com/toolshare/rental-backend/internal/config"
	"github.com/toolshare/rental-backend/internal/middleware"
	"github.com/toolshare/rental-backend/internal/model"
	"github.com/toolshare/rental-backend/internal/repository"
	"github.com/toolshare/rental-backend/internal/service"
	"github.com/toolshare/rental-backend/internal/utils"
)

const secret = "handler-test-secret"

func newEcho() *echo.Echo {
	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.Logger.SetLevel(log.OFF)
	return e
}

func bearer(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

func send(e *echo.Echo, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

// ----- fakes -----

type fakeRents struct {
	created   service.CreateInput
	updated   service.UpdateInput
	deletedID uint64
	asLender  bool
	err       error
	tx        *model.Transaction
}

func (f *fakeRents) Create(_ context.Context, in service.CreateInput) (model.Reservation, error) {
	f.created = in
	if f.err != nil {
		return model.Reservation{}, f.err
	}
	return model.Reservation{ID: 1, ListingID: in.ListingID, BorrowerID: in.BorrowerID, Status: model.StatusRequested}, nil
}

func (f *fakeRents) Update(_ context.Context, in service.UpdateInput) (service.UpdateResult, error) {
	f.updated = in
	if f.err != nil {
		return service.UpdateResult{}, f.err
	}
	return service.UpdateResult{Reservation: model.Reservation{ID: in.RentRequestID, Status: model.StatusApproved}, Transaction: f.tx}, nil
}

func (f *fakeRents) Delete(_ context.Context, id, _ uint64, _ bool) (model.Reservation, error) {
	f.deletedID = id
	if f.err != nil {
		return model.Reservation{}, f.err
	}
	return model.Reservation{ID: id}, nil
}

func (f *fakeRents) Get(_ context.Context, id, _ uint64, _ bool) (model.Reservation, error) {
	return model.Reservation{ID: id}, f.err
}

func (f *fakeRents) List(_ context.Context, _ uint64, asLender bool) ([]model.Reservation, error) {
	f.asLender = asLender
	return nil, f.err
}

func (f *fakeRents) Transactions(context.Context, uint64) ([]model.Transaction, error) {
	return nil, f.err
}

func rentServer(f *fakeRents) *echo.Echo {
	e := newEcho()
	h := NewRentRequestHandler(f)
	g := e.Group("/v1", middleware.JWTAuth(secret))
	g.POST("/rent-requests", h.Create)
	g.PUT("/rent-requests", h.Update)
	g.DELETE("/rent-requests", h.Delete)
	g.GET("/rent-requests", h.List)
	g.GET("/rent-requests/:id", h.Get)
	g.GET("/transactions", h.Transactions)
	return e
}

// ----- tests -----

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{booking.ErrInvalidDurationUnit, http.StatusBadRequest},
		{repository.ErrTokenInvalid, http.StatusUnauthorized},
		{booking.ErrBorrowerStatus, http.StatusForbidden},
		{fmt.Errorf("%w: listing", model.ErrNotFound), http.StatusNotFound},
		{service.ErrOverlap, http.StatusConflict},
		{booking.ErrInvalidTransition, http.StatusConflict},
		{errors.New("dial tcp: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		e := newEcho()
		e.GET("/", func(c echo.Context) error { return respondError(c, tc.err) })
		rec := send(e, http.MethodGet, "/", "", "")
		if rec.Code != tc.want {
			t.Errorf("%v: status %d, want %d", tc.err, rec.Code, tc.want)
		}
		if tc.want == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "connection refused") {
			t.Errorf("500 body leaks cause: %s", rec.Body.String())
		}
	}
}

func TestCreateRentRequest(t *testing.T) {
	f := &fakeRents{}
	e := rentServer(f)
	body := `{"listing_id":5,"duration_unit":"Day","duration_value":2,"pickup_time":"2030-01-02T10:00:00Z"}`

	rec := send(e, http.MethodPost, "/v1/rent-requests", bearer(t, 9, model.RoleUser), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	want := service.CreateInput{
		ListingID:     5,
		BorrowerID:    9,
		PickupTime:    time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC),
		DurationUnit:  model.UnitDay,
		DurationValue: 2,
	}
	if !f.created.PickupTime.Equal(want.PickupTime) || f.created.ListingID != want.ListingID ||
		f.created.BorrowerID != want.BorrowerID || f.created.DurationUnit != want.DurationUnit ||
		f.created.DurationValue != want.DurationValue {
		t.Fatalf("service got %+v, want %+v", f.created, want)
	}
	if _, ok := decode(t, rec)["item"]; !ok {
		t.Fatalf("missing item: %s", rec.Body.String())
	}
}

func TestCreateRentRequestRejectsBadInput(t *testing.T) {
	e := rentServer(&fakeRents{})
	auth := bearer(t, 9, model.RoleUser)
	cases := map[string]string{
		"unknown unit":   `{"listing_id":5,"duration_unit":"Month","duration_value":2,"pickup_time":"2030-01-02T10:00:00Z"}`,
		"bad timestamp":  `{"listing_id":5,"duration_unit":"Hour","duration_value":2,"pickup_time":"tomorrow"}`,
		"missing id":     `{"duration_unit":"Hour","duration_value":2,"pickup_time":"2030-01-02T10:00:00Z"}`,
		"malformed json": `{"listing_id":`,
	}
	for name, body := range cases {
		if rec := send(e, http.MethodPost, "/v1/rent-requests", auth, body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", name, rec.Code)
		}
	}
	if rec := send(e, http.MethodPost, "/v1/rent-requests", "", `{}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status %d, want 401", rec.Code)
	}
}

func TestCreateRentRequestMapsServiceErrors(t *testing.T) {
	e := rentServer(&fakeRents{err: service.ErrOverlap})
	body := `{"listing_id":5,"duration_unit":"Hour","duration_value":2,"pickup_time":"2030-01-02T10:00:00Z"}`
	rec := send(e, http.MethodPost, "/v1/rent-requests", bearer(t, 9, model.RoleUser), body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestUpdateTakesIDFromBody(t *testing.T) {
	f := &fakeRents{tx: &model.Transaction{ID: 3, ReservationID: 7}}
	e := rentServer(f)

	rec := send(e, http.MethodPut, "/v1/rent-requests", bearer(t, 4, model.RoleAdmin),
		`{"rentRequest_id":"7","rent_status":"Approved","nonsense":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if f.updated.RentRequestID != 7 || f.updated.ActorID != 4 || !f.updated.ActorIsAdmin {
		t.Fatalf("service got %+v", f.updated)
	}
	if _, ok := f.updated.Fields[idField]; ok {
		t.Fatal("id must not be passed on as an updatable field")
	}
	if _, ok := f.updated.Fields["rent_status"]; !ok {
		t.Fatal("rent_status dropped")
	}
	if _, ok := decode(t, rec)["transaction"]; !ok {
		t.Fatalf("missing transaction: %s", rec.Body.String())
	}
}

func TestUpdateRequiresID(t *testing.T) {
	e := rentServer(&fakeRents{})
	auth := bearer(t, 4, model.RoleUser)
	for _, body := range []string{`{"rent_status":"Cancelled"}`, `{"rentRequest_id":0}`, `{"rentRequest_id":"x"}`, `[1]`} {
		if rec := send(e, http.MethodPut, "/v1/rent-requests", auth, body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, rec.Code)
		}
	}
}

func TestDeleteRentRequest(t *testing.T) {
	f := &fakeRents{}
	e := rentServer(f)
	rec := send(e, http.MethodDelete, "/v1/rent-requests", bearer(t, 4, model.RoleUser), `{"rentRequest_id":12}`)
	if rec.Code != http.StatusOK || f.deletedID != 12 {
		t.Fatalf("status %d, deleted %d", rec.Code, f.deletedID)
	}

	f.err = service.ErrHasTransaction
	rec = send(e, http.MethodDelete, "/v1/rent-requests", bearer(t, 4, model.RoleUser), `{"rentRequest_id":12}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestListRentRequests(t *testing.T) {
	f := &fakeRents{}
	e := rentServer(f)
	auth := bearer(t, 4, model.RoleUser)

	rec := send(e, http.MethodGet, "/v1/rent-requests?as=lender", auth, "")
	if rec.Code != http.StatusOK || !f.asLender {
		t.Fatalf("status %d, asLender %v", rec.Code, f.asLender)
	}
	if got := string(decode(t, rec)["items"]); got != "[]" {
		t.Fatalf("items = %s, want []", got)
	}
	if rec := send(e, http.MethodGet, "/v1/rent-requests?as=owner", auth, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if rec := send(e, http.MethodGet, "/v1/rent-requests/abc", auth, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

type fakeListings struct {
	filter repository.ListingFilter
	viewer uint64
	admin  bool
}

func (f *fakeListings) Create(_ context.Context, ownerID uint64, _ service.ListingInput) (model.Listing, error) {
	return model.Listing{ID: 1, OwnerID: ownerID}, nil
}

func (f *fakeListings) Get(_ context.Context, id, viewerID uint64, admin bool) (model.Listing, error) {
	f.viewer, f.admin = viewerID, admin
	return model.Listing{ID: id}, nil
}

func (f *fakeListings) Browse(_ context.Context, flt repository.ListingFilter) ([]model.Listing, error) {
	f.filter = flt
	return nil, nil
}

func (f *fakeListings) Update(_ context.Context, id, _ uint64, _ bool, _ service.ListingInput) (model.Listing, error) {
	return model.Listing{ID: id}, nil
}

func (f *fakeListings) Delete(_ context.Context, id, _ uint64, _ bool) (model.Listing, error) {
	return model.Listing{ID: id}, nil
}

func (f *fakeListings) Moderate(_ context.Context, id uint64, approved bool) (model.Listing, error) {
	return model.Listing{ID: id, IsApproved: approved}, nil
}

func (f *fakeListings) AddImage(_ context.Context, id, _ uint64, _, _ string, _ io.ReadSeeker) (model.Listing, error) {
	return model.Listing{ID: id}, nil
}

func TestBrowseParsesQuery(t *testing.T) {
	f := &fakeListings{}
	e := newEcho()
	h := NewListingHandler(f)
	e.GET("/v1/listings", h.Browse)
	e.GET("/v1/listings/:id", h.Get, middleware.OptionalJWT(secret))
	e.PUT("/v1/admin/listings/:id/approve", h.Approve)

	rec := send(e, http.MethodGet, "/v1/listings?lat=52.5&lng=13.4&radius_km=3&q=drill&limit=5&offset=10", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	flt := f.filter
	if flt.Lat == nil || *flt.Lat != 52.5 || flt.Lng == nil || *flt.Lng != 13.4 ||
		flt.RadiusKm != 3 || flt.Query != "drill" || flt.Limit != 5 || flt.Offset != 10 {
		t.Fatalf("filter %+v", flt)
	}
	if rec := send(e, http.MethodGet, "/v1/listings?lat=north", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}

	send(e, http.MethodGet, "/v1/listings/3", bearer(t, 8, model.RoleAdmin), "")
	if f.viewer != 8 || !f.admin {
		t.Fatalf("viewer %d admin %v", f.viewer, f.admin)
	}

	if rec := send(e, http.MethodPut, "/v1/admin/listings/3/approve", "", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing approved: status %d, want 400", rec.Code)
	}
	if rec := send(e, http.MethodPut, "/v1/admin/listings/3/approve", "", `{"approved":true}`); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

// ----- auth -----

type fakeUsers struct {
	byEmail map[string]model.User
	nextID  uint64
}

func (f *fakeUsers) Create(_ context.Context, name, email, password string, _ int) (uint64, error) {
	if _, ok := f.byEmail[email]; ok {
		return 0, repository.ErrEmailExists
	}
	hash, err := utils.HashPassword(password, 4)
	if err != nil {
		return 0, err
	}
	f.nextID++
	f.byEmail[email] = model.User{ID: f.nextID, Name: name, Email: email, PasswordHash: hash, IsActive: true}
	return f.nextID, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.User{}, fmt.Errorf("%w: user", model.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("%w: user", model.ErrNotFound)
}

type fakeTokens struct {
	live map[string]uint64
}

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	f.live[hash] = userID
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	id, ok := f.live[hash]
	if !ok {
		return 0, repository.ErrTokenInvalid
	}
	return id, nil
}

func (f *fakeTokens) Rotate(_ context.Context, userID uint64, oldHash, newHash string, _ time.Time) error {
	if f.live[oldHash] != userID {
		return repository.ErrTokenInvalid
	}
	delete(f.live, oldHash)
	f.live[newHash] = userID
	return nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	delete(f.live, hash)
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	for h, id := range f.live {
		if id == userID {
			delete(f.live, h)
		}
	}
	return nil
}

func authServer() (*echo.Echo, *fakeUsers, *fakeTokens) {
	users := &fakeUsers{byEmail: map[string]model.User{}}
	tokens := &fakeTokens{live: map[string]uint64{}}
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	h := NewAuthHandler(cfg, users, tokens)
	e := newEcho()
	e.POST("/v1/auth/register", h.Register)
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.Refresh)
	e.POST("/v1/auth/logout", h.Logout, middleware.OptionalJWT(secret))
	e.GET("/v1/auth/me", h.Me, middleware.JWTAuth(secret))
	return e, users, tokens
}

func TestRegisterLoginRefresh(t *testing.T) {
	e, users, tokens := authServer()

	rec := send(e, http.MethodPost, "/v1/auth/register", "", `{"name":"Ana","email":" Ana@Example.com ","password":"correct horse"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	var reg authResp
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatal(err)
	}
	if reg.User.Email != "ana@example.com" || reg.User.Role != model.RoleUser || reg.Access.Token == "" {
		t.Fatalf("register response %+v", reg)
	}

	rec = send(e, http.MethodPost, "/v1/auth/register", "", `{"name":"Ana","email":"ana@example.com","password":"correct horse"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", rec.Code)
	}

	rec = send(e, http.MethodPost, "/v1/auth/login", "", `{"email":"ana@example.com","password":"wrong password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: %d", rec.Code)
	}

	rec = send(e, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+reg.Refresh.Token+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	var ref authResp
	if err := json.Unmarshal(rec.Body.Bytes(), &ref); err != nil {
		t.Fatal(err)
	}
	if ref.Refresh.Token == reg.Refresh.Token {
		t.Fatal("refresh token not rotated")
	}
	if rec := send(e, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+reg.Refresh.Token+`"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reusing rotated token: %d", rec.Code)
	}

	if rec := send(e, http.MethodGet, "/v1/auth/me", "Bearer "+ref.Access.Token, ""); rec.Code != http.StatusOK {
		t.Fatalf("me: %d", rec.Code)
	}

	if rec := send(e, http.MethodPost, "/v1/auth/logout", "Bearer "+ref.Access.Token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rec.Code)
	}
	if len(tokens.live) != 0 {
		t.Fatalf("%d tokens survived logout", len(tokens.live))
	}

	u := users.byEmail["ana@example.com"]
	u.IsActive = false
	users.byEmail["ana@example.com"] = u
	rec = send(e, http.MethodPost, "/v1/auth/login", "", `{"email":"ana@example.com","password":"correct horse"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("disabled login: %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	e, _, _ := authServer()
	for _, body := range []string{
		`{"name":"","email":"a@b.c","password":"longenough"}`,
		`{"name":"A","email":"not-an-email","password":"longenough"}`,
		`{"name":"A","email":"a@b.c","password":"short"}`,
	} {
		if rec := send(e, http.MethodPost, "/v1/auth/register", "", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, rec.Code)
		}
	}
	if rec := send(e, http.MethodPost, "/v1/auth/logout", "", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty logout: status %d, want 400", rec.Code)
	}
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := newEcho()
	e.GET("/ok", Health(pinger{}))
	e.GET("/down", Health(pinger{err: errors.New("gone")}))
	if rec := send(e, http.MethodGet, "/ok", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if rec := send(e, http.MethodGet, "/down", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}
