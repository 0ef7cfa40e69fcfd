package attendance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(dir string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewStore(dir), nil).Register(r)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestAttendanceStatsHandler(t *testing.T) {
	r := setupRouter(fixtureDir(t))
	w := get(r, "/attendance_stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["present"])
	assert.Equal(t, float64(1), body["absent"])
	assert.Len(t, body["PresentStudents"], 2)
}

func TestAttendanceHandlersMissingFiles(t *testing.T) {
	r := setupRouter(t.TempDir())

	assert.Equal(t, http.StatusNotFound, get(r, "/attendance_stats").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/students").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/search_students/al").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/get_user/1001").Code)
}

func TestStudentsAndSearchHandlers(t *testing.T) {
	r := setupRouter(fixtureDir(t))

	w := get(r, "/students")
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Students        []Student `json:"students"`
		PresentStudents []string  `json:"present_students"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Students, 3)
	assert.Equal(t, []string{"1001", "2001"}, all.PresentStudents)

	w = get(r, "/search_students/bob")
	require.Equal(t, http.StatusOK, w.Code)
	var found struct {
		Students []Student `json:"students"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found.Students, 1)
	assert.Equal(t, "Bob Jones", found.Students[0].Name)
}

func TestGetUserHandler(t *testing.T) {
	r := setupRouter(fixtureDir(t))

	w := get(r, "/get_user/1001")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"Registration Number":"1001","Name":"alice Smith","warning":"Attendance already marked"}`, w.Body.String())

	w = get(r, "/get_user/1002")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"Registration Number":"1002","Name":"Bob Jones"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(r, "/get_user/4242").Code)
}
