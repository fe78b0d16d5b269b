package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Body([]byte("test")).Write(w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", w.Body.String())
	assert.Empty(t, w.Header().Get("HX-Trigger"))
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerDashboardRefresh().
		TriggerDialogClosed().
		TriggerSuccessNotification("Zdarzenie dodane").
		Write(w)

	var triggers map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers))
	assert.Contains(t, triggers, EventDashboardRefresh)
	assert.Contains(t, triggers, EventDialogClosed)

	var note struct {
		Type     string `json:"type"`
		Message  string `json:"message"`
		Duration int    `json:"duration"`
	}
	require.NoError(t, json.Unmarshal(triggers[EventNotification], &note))
	assert.Equal(t, "success", note.Type)
	assert.Equal(t, "Zdarzenie dodane", note.Message)
	assert.Equal(t, 3000, note.Duration)
}

func TestHTMXResponseBuilder_Navigation(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		Redirect("/dashboard").
		Retarget("#dialog", "innerHTML").
		Status(http.StatusCreated).
		Write(w)

	assert.Equal(t, "/dashboard", w.Header().Get("HX-Redirect"))
	assert.Equal(t, "#dialog", w.Header().Get("HX-Retarget"))
	assert.Equal(t, "innerHTML", w.Header().Get("HX-Reswap"))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHTMXResponseBuilder_Render(t *testing.T) {
	tmpl := template.Must(template.New("x").Parse(`{{define "hello"}}<p>{{.}}</p>{{end}}`))

	b := NewHTMXResponse()
	require.NoError(t, b.Render(tmpl, "hello", "<b>"))
	w := httptest.NewRecorder()
	b.Write(w)
	assert.Equal(t, "<p>&lt;b&gt;</p>", w.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	assert.Error(t, NewHTMXResponse().Render(tmpl, "missing", nil))
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("Błąd"), http.StatusBadRequest, `<div class="error" role="alert">Błąd</div>`},
		{"unprocessable", UnprocessableEntityError("Zła kwota"), http.StatusUnprocessableEntity, `<div class="error" role="alert">Zła kwota</div>`},
		{"internal", InternalServerError("Awaria"), http.StatusInternalServerError, `<div class="error" role="alert">Awaria</div>`},
		{"not found", NotFoundError("Brak"), http.StatusNotFound, `<div class="error" role="alert">Brak</div>`},
		{"escapes html", BadRequestError("<script>"), http.StatusBadRequest, `<div class="error" role="alert">&lt;script&gt;</div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent().Write(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
