package thread

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
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookshare/app/echoServer/notify"
	"bookshare/app/echoServer/validation"
	"bookshare/model"
	"bookshare/service/directory"
	"bookshare/service/errs"
	"bookshare/service/negotiation"
)

type negotiationMock struct {
	mock.Mock
}

func (m *negotiationMock) StartThread(ctx context.Context, callerID string, in negotiation.StartInput) (*negotiation.Started, error) {
	args := m.Called(ctx, callerID, in)
	out, _ := args.Get(0).(*negotiation.Started)
	return out, args.Error(1)
}
func (m *negotiationMock) SendReply(ctx context.Context, callerID, threadID, text string) (*model.Message, error) {
	args := m.Called(ctx, callerID, threadID, text)
	out, _ := args.Get(0).(*model.Message)
	return out, args.Error(1)
}
func (m *negotiationMock) AgreeOnRent(ctx context.Context, callerID, threadID string) (*model.Rental, error) {
	args := m.Called(ctx, callerID, threadID)
	out, _ := args.Get(0).(*model.Rental)
	return out, args.Error(1)
}
func (m *negotiationMock) DisagreeOnRent(ctx context.Context, callerID, threadID string) error {
	return m.Called(ctx, callerID, threadID).Error(0)
}
func (m *negotiationMock) CloseDiscussion(ctx context.Context, callerID, threadID string) error {
	return m.Called(ctx, callerID, threadID).Error(0)
}
func (m *negotiationMock) FinishRental(ctx context.Context, callerID, bookID string) (*model.Rental, error) {
	args := m.Called(ctx, callerID, bookID)
	out, _ := args.Get(0).(*model.Rental)
	return out, args.Error(1)
}
func (m *negotiationMock) RemindReturn(ctx context.Context, callerID, bookID string) error {
	return m.Called(ctx, callerID, bookID).Error(0)
}

type directoryMock struct {
	mock.Mock
}

func (m *directoryMock) Inbox(ctx context.Context, viewerID string) ([]directory.ThreadView, error) {
	args := m.Called(ctx, viewerID)
	out, _ := args.Get(0).([]directory.ThreadView)
	return out, args.Error(1)
}
func (m *directoryMock) Timeline(ctx context.Context, viewerID, threadID string) (*directory.ThreadView, error) {
	args := m.Called(ctx, viewerID, threadID)
	out, _ := args.Get(0).(*directory.ThreadView)
	return out, args.Error(1)
}
func (m *directoryMock) MarkRead(ctx context.Context, viewerID, messageID string) error {
	return m.Called(ctx, viewerID, messageID).Error(0)
}

func newCtx(method, target, body, uid string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = validation.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uid)
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) notify.Envelope {
	t.Helper()
	var env notify.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

const testBookID = "7d0e4a52-3f1b-4c8e-9a57-2b6f0c1d9e11"

func controller(n *negotiationMock, d *directoryMock) *Controller {
	return &Controller{Svc: n, Dir: d, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestStart_ParsesWindow(t *testing.T) {
	n := &negotiationMock{}
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	n.On("StartThread", mock.Anything, "c", mock.MatchedBy(func(in negotiation.StartInput) bool {
		return in.BookID == testBookID && in.Text == "Can I?" && in.From.Equal(from) && in.To.Equal(to)
	})).Return(&negotiation.Started{Navigation: negotiation.Navigation{ThreadID: "t1"}}, nil)

	c, rec := newCtx(http.MethodPost, "/v1/threads",
		`{"book_id":"`+testBookID+`","text":"Can I?","rent_from":"2024-05-01","rent_to":"2024-05-10"}`, "c")
	require.NoError(t, controller(n, &directoryMock{}).Start(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, notify.SeveritySuccess, decode(t, rec).Severity)
	n.AssertExpectations(t)
}

func TestStart_BadDate(t *testing.T) {
	c, rec := newCtx(http.MethodPost, "/v1/threads", `{"book_id":"`+testBookID+`","text":"x","rent_from":"01.05.2024"}`, "c")
	require.NoError(t, controller(&negotiationMock{}, &directoryMock{}).Start(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgree_ErrorMapping(t *testing.T) {
	n := &negotiationMock{}
	n.On("AgreeOnRent", mock.Anything, "o", "t1").
		Return(nil, errs.Conflict(errs.ErrDecisionMade, "a decision was already made")).Once()
	n.On("AgreeOnRent", mock.Anything, "c", "t1").
		Return(nil, errs.Authorization(errs.ErrNotOwner, "only the owner can do this")).Once()

	c, rec := newCtx(http.MethodPost, "/", "", "o")
	c.SetParamNames("id")
	c.SetParamValues("t1")
	require.NoError(t, controller(n, &directoryMock{}).Agree(c))
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	require.Equal(t, "DECISION_MADE", env.Code)
	require.Equal(t, notify.SeverityError, env.Severity)

	c, rec = newCtx(http.MethodPost, "/", "", "c")
	c.SetParamNames("id")
	c.SetParamValues("t1")
	require.NoError(t, controller(n, &directoryMock{}).Agree(c))
	require.Equal(t, http.StatusForbidden, rec.Code)
	n.AssertExpectations(t)
}

func TestMarkRead(t *testing.T) {
	d := &directoryMock{}
	d.On("MarkRead", mock.Anything, "o", "m1").Return(nil)

	c, rec := newCtx(http.MethodPost, "/", "", "o")
	c.SetParamNames("id")
	c.SetParamValues("m1")
	require.NoError(t, controller(&negotiationMock{}, d).MarkRead(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
	d.AssertExpectations(t)
}

func TestMalformedBookID_NoServiceCall(t *testing.T) {
	n := &negotiationMock{}
	h := controller(n, &directoryMock{})

	c, rec := newCtx(http.MethodPost, "/v1/threads", `{"book_id":"abc","text":"x"}`, "c")
	require.NoError(t, h.Start(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	for _, call := range []func(echo.Context) error{h.Finish, h.Remind} {
		c, rec := newCtx(http.MethodPost, "/", "", "o")
		c.SetParamNames("id")
		c.SetParamValues("abc")
		require.NoError(t, call(c))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "INVALID_INPUT", decode(t, rec).Code)
	}
	n.AssertNotCalled(t, "StartThread", mock.Anything, mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "FinishRental", mock.Anything, mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "RemindReturn", mock.Anything, mock.Anything, mock.Anything)
}

func TestTimeline_Envelope(t *testing.T) {
	d := &directoryMock{}
	d.On("Timeline", mock.Anything, "c", "t1").Return(&directory.ThreadView{ThreadID: "t1", BookTitle: "Solaris"}, nil)

	c, rec := newCtx(http.MethodGet, "/", "", "c")
	c.SetParamNames("id")
	c.SetParamValues("t1")
	require.NoError(t, controller(&negotiationMock{}, d).Timeline(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data directory.ThreadView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "t1", body.Data.ThreadID)
	d.AssertExpectations(t)
}
