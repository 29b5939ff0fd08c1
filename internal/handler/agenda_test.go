package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventhub/internal/model"
)

func newAgendaHandler(agenda *MockAgendaStore) *AgendaHandler {
	return &AgendaHandler{Agenda: agenda, Events: operatorEvents(true), Friends: operatorFriends()}
}

func TestAgendaHandler_Replace(t *testing.T) {
	agenda := new(MockAgendaStore)
	agenda.On("Replace", mock.Anything, friendID, opEventID, mock.MatchedBy(func(items []model.AgendaItem) bool {
		return len(items) == 2 &&
			items[0].ID == "keynote" && items[0].StartsAt.Equal(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)) &&
			items[1].ID == "lab" && assert.ObjectsAreEqual([]uint64{speakerID}, items[1].OperatorIDs)
	})).Return(nil)
	h := newAgendaHandler(agenda)

	body := `{"items":[
		{"id":"keynote","starts_at":"2026-05-01T12:30:00+03:30","ends_at":"2026-05-01T13:30:00+03:30"},
		{"id":"lab","description":"hands on","operator_ids":[50]}
	]}`
	c, rec := newCtx(newEcho(), http.MethodPost, body, friendID, "event_id", "7")
	require.NoError(t, h.Replace(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	agenda.AssertExpectations(t)
}

func TestAgendaHandler_ReplaceEmptyClears(t *testing.T) {
	agenda := new(MockAgendaStore)
	agenda.On("Replace", mock.Anything, friendID, opEventID, []model.AgendaItem{}).Return(nil)
	h := newAgendaHandler(agenda)

	c, rec := newCtx(newEcho(), http.MethodPost, `{"items":[]}`, friendID, "event_id", "7")
	require.NoError(t, h.Replace(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	agenda.AssertExpectations(t)
}

func TestAgendaHandler_ReplaceRejects(t *testing.T) {
	tests := []struct {
		name string
		uid  uint64
		body string
		code int
	}{
		{"duplicate ids", friendID, `{"items":[{"id":"a"},{"id":" a "}]}`, http.StatusBadRequest},
		{"blank id", friendID, `{"items":[{"id":"  "}]}`, http.StatusBadRequest},
		{"missing id", friendID, `{"items":[{"description":"x"}]}`, http.StatusUnprocessableEntity},
		{"reversed window", friendID,
			`{"items":[{"id":"a","starts_at":"2026-05-01T10:00:00Z","ends_at":"2026-05-01T09:00:00Z"}]}`,
			http.StatusBadRequest},
		{"private event", strangerID, `{"items":[{"id":"a"}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agenda := new(MockAgendaStore)
			h := newAgendaHandler(agenda)
			c, rec := newCtx(newEcho(), http.MethodPost, tt.body, tt.uid, "event_id", "7")
			require.NoError(t, h.Replace(c))
			assert.Equal(t, tt.code, rec.Code)
			agenda.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAgendaHandler_List(t *testing.T) {
	agenda := new(MockAgendaStore)
	agenda.On("List", mock.Anything, friendID, opEventID).Return(nil, nil)
	h := newAgendaHandler(agenda)
	e := newEcho()

	c, rec := newCtx(e, http.MethodGet, "", friendID, "event_id", "7")
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()), "an empty agenda is a list")

	c, rec = newCtx(e, http.MethodGet, "", friendID, "event_id", "8")
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	agenda.AssertNumberOfCalls(t, "List", 1)
}
