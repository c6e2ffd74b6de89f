package echoServer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"bookshare/app/echoServer/controller/book"
	"bookshare/app/echoServer/controller/rating"
	"bookshare/app/echoServer/controller/rental"
	"bookshare/app/echoServer/controller/thread"
	"bookshare/app/echoServer/validation"
	"bookshare/model"
	"bookshare/repository/memory"
	"bookshare/service/availability"
	booksvc "bookshare/service/book"
	"bookshare/service/directory"
	"bookshare/service/negotiation"
	ratingsvc "bookshare/service/rating"
	rentalsvc "bookshare/service/rental"
	jwtutil "bookshare/util/jwt"
)

const secret = "test-secret"

type api struct {
	e   *echo.Echo
	st  *memory.Store
	tok map[string]string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	proj := availability.NewProjector(st.Books(), st.Rentals(), st.Messages(), availability.NewLocalCache(time.Minute), log)

	e := echo.New()
	e.Validator = validation.New()
	RegisterMiddlewares(e, log)
	Register(e, C{
		Book: &book.Controller{Svc: booksvc.New(st.Books(), proj), Log: log},
		Thread: &thread.Controller{
			Svc: negotiation.New(negotiation.Deps{
				Books: st.Books(), Threads: st.Threads(), Messages: st.Messages(), Rentals: st.Rentals(),
				Projector: proj, Log: log,
			}),
			Dir: directory.New(st.Messages(), st.Threads(), st.Books(), st.Users()),
			Log: log,
		},
		Rating:             &rating.Controller{Svc: ratingsvc.New(st.Ratings(), st.Threads()), Log: log},
		Rental:             &rental.Controller{Svc: rentalsvc.New(st.Rentals()), Log: log},
		JWTSecret:          secret,
		RateLimitPerSecond: 1000,
		Log:                log,
	})

	a := &api{e: e, st: st, tok: map[string]string{}}
	for _, u := range []string{"owner", "borrower"} {
		st.PutUser(model.User{ID: u, FirstName: u})
		tok, err := jwtutil.Issue(secret, u, "user", time.Hour)
		require.NoError(t, err)
		a.tok[u] = tok
	}
	return a
}

func (a *api) do(t *testing.T, user, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+a.tok[user])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestUnauthenticated(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(t, "", http.MethodGet, "/v1/books", "")
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "error", body["severity"])
}

func TestRentalFlowOverHTTP(t *testing.T) {
	a := newAPI(t)

	code, body := a.do(t, "owner", http.MethodPost, "/v1/books",
		`{"title":"Solaris","author":"Lem","year":1961,"genre":"sci-fi","rent":true}`)
	require.Equal(t, http.StatusCreated, code, body)
	bookID := body["data"].(map[string]any)["id"].(string)

	code, body = a.do(t, "borrower", http.MethodPost, "/v1/threads",
		`{"book_id":"`+bookID+`","text":"Can I borrow this?","rent_from":"2024-05-01","rent_to":"2024-05-10"}`)
	require.Equal(t, http.StatusCreated, code, body)
	nav := body["data"].(map[string]any)["navigation"].(map[string]any)
	threadID := nav["thread_id"].(string)
	require.Equal(t, "owner", nav["counterpart_id"])

	code, body = a.do(t, "borrower", http.MethodGet, "/v1/books/"+bookID+"/availability", "")
	require.Equal(t, http.StatusOK, code)
	av := body["data"].(map[string]any)
	require.Equal(t, "proposed", av["state"])
	require.Equal(t, "Requested rent period from 01.05.2024 to 10.05.2024", av["display"])

	code, _ = a.do(t, "borrower", http.MethodPost, "/v1/threads/"+threadID+"/agree", "")
	require.Equal(t, http.StatusForbidden, code)

	code, body = a.do(t, "owner", http.MethodPost, "/v1/threads/"+threadID+"/agree", "")
	require.Equal(t, http.StatusOK, code, body)

	code, body = a.do(t, "owner", http.MethodPost, "/v1/threads/"+threadID+"/agree", "")
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "DECISION_MADE", body["code"])

	code, body = a.do(t, "borrower", http.MethodGet, "/v1/rentals/my", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["data"].(map[string]any)["current"], 1)

	code, body = a.do(t, "borrower", http.MethodGet, "/v1/threads/"+threadID, "")
	require.Equal(t, http.StatusOK, code)
	msgs := body["data"].(map[string]any)["messages"].([]any)
	require.Equal(t, "Owner agreed to rent the book.", msgs[len(msgs)-1].(map[string]any)["body"])

	code, _ = a.do(t, "owner", http.MethodPost, "/v1/books/"+bookID+"/finish", "")
	require.Equal(t, http.StatusOK, code)

	code, body = a.do(t, "owner", http.MethodGet, "/v1/books/"+bookID, "")
	require.Equal(t, http.StatusOK, code)
	detail := body["data"].(map[string]any)
	require.Equal(t, true, detail["rent"])
	require.Equal(t, "available", detail["availability"].(map[string]any)["state"])

	code, _ = a.do(t, "borrower", http.MethodPost, "/v1/threads/"+threadID+"/rating", `{"rating":5}`)
	require.Equal(t, http.StatusCreated, code)
	code, body = a.do(t, "borrower", http.MethodPost, "/v1/threads/"+threadID+"/rating", `{"rating":4}`)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "ALREADY_RATED", body["code"])

	code, body = a.do(t, "borrower", http.MethodGet, "/v1/users/owner/rating", "")
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body["data"].(map[string]any)["count"])

	rents, err := a.st.Rentals().Active(context.Background(), bookID)
	require.NoError(t, err)
	require.Empty(t, rents)
}

func TestBookValidation(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(t, "owner", http.MethodPost, "/v1/books", `{"title":"X","author":"Y","genre":"poetry"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "INVALID_INPUT", body["code"])

	code, _ = a.do(t, "owner", http.MethodGet, "/v1/books/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, code)

	for _, path := range []string{"/v1/books/abc/finish", "/v1/books/abc/remind"} {
		code, body = a.do(t, "owner", http.MethodPost, path, "")
		require.Equal(t, http.StatusBadRequest, code, path)
		require.Equal(t, "INVALID_INPUT", body["code"])
	}
	code, _ = a.do(t, "borrower", http.MethodPost, "/v1/threads", `{"book_id":"abc","text":"hi"}`)
	require.Equal(t, http.StatusBadRequest, code)
}
