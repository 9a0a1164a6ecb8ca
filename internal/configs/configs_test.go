package configs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

type envelopeBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(store, nil).Register(r.Group("/api/v1"))
	return r
}

func call(t *testing.T, r http.Handler, method, path, body string) (int, envelopeBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return rec.Code, env
}

func TestUpsertWithoutDatabase(t *testing.T) {
	r := newRouter(nil)
	code, env := call(t, r, http.MethodPost, "/api/v1/interview/configs", `{"interview_config":{"config_id":"c1","name":"Backend"}}`)
	if code != http.StatusOK || !strings.Contains(string(env.Data), NotPersisted) || !strings.Contains(string(env.Data), `"config_id":"c1"`) {
		t.Errorf("code=%d data=%s", code, env.Data)
	}
	if code, env := call(t, r, http.MethodGet, "/api/v1/interview/configs", ""); code != http.StatusOK || string(env.Data) != "[]" {
		t.Errorf("list code=%d data=%s", code, env.Data)
	}
}

func TestUpsertValidation(t *testing.T) {
	r := newRouter(nil)
	if code, _ := call(t, r, http.MethodPost, "/api/v1/interview/configs", `{"name":"no id"}`); code != http.StatusBadRequest {
		t.Errorf("missing id code = %d", code)
	}
	if code, _ := call(t, r, http.MethodPost, "/api/v1/interview/configs", `[1,2]`); code != http.StatusBadRequest {
		t.Errorf("array code = %d", code)
	}
}

func TestHandlerWithRepository(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	r := newRouter(NewRepository(mock))
	now := time.Now()
	cols := []string{"config_id", "name", "body", "created_at", "updated_at"}

	mock.ExpectQuery("INSERT INTO interview_configs").
		WithArgs("c1", "Backend", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("c1", "Backend", []byte(`{"config_id":"c1","name":"Backend"}`), now, now))
	code, env := call(t, r, http.MethodPost, "/api/v1/interview/configs", `{"config_id":"c1","name":"Backend"}`)
	if code != http.StatusOK || strings.Contains(string(env.Data), "warning") {
		t.Errorf("upsert code=%d data=%s", code, env.Data)
	}

	mock.ExpectQuery("SELECT config_id, name, body").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("c1", "Backend", []byte(`{"config_id":"c1"}`), now, now))
	code, env = call(t, r, http.MethodGet, "/api/v1/interview/configs/c1", "")
	var got Config
	if err := json.Unmarshal(env.Data, &got); err != nil || code != http.StatusOK || got.Name != "Backend" {
		t.Errorf("get code=%d cfg=%+v err=%v", code, got, err)
	}

	mock.ExpectQuery("SELECT config_id, name, body").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if code, _ := call(t, r, http.MethodGet, "/api/v1/interview/configs/missing", ""); code != http.StatusNotFound {
		t.Errorf("missing code = %d", code)
	}

	mock.ExpectQuery("SELECT config_id, name, created_at").
		WillReturnRows(pgxmock.NewRows([]string{"config_id", "name", "created_at", "updated_at"}).AddRow("c1", "Backend", now, now))
	if code, env := call(t, r, http.MethodGet, "/api/v1/interview/configs", ""); code != http.StatusOK || !strings.Contains(string(env.Data), `"c1"`) {
		t.Errorf("list code=%d data=%s", code, env.Data)
	}

	mock.ExpectExec("DELETE FROM interview_configs").WithArgs("c1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if code, _ := call(t, r, http.MethodDelete, "/api/v1/interview/configs/c1", ""); code != http.StatusOK {
		t.Errorf("delete code = %d", code)
	}
	mock.ExpectExec("DELETE FROM interview_configs").WithArgs("c1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if code, _ := call(t, r, http.MethodDelete, "/api/v1/interview/configs/c1", ""); code != http.StatusNotFound {
		t.Errorf("second delete code = %d", code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertDegradesOnDatabaseError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	r := newRouter(NewRepository(mock))

	mock.ExpectQuery("INSERT INTO interview_configs").WillReturnError(errors.New("connection refused"))
	code, env := call(t, r, http.MethodPost, "/api/v1/interview/configs", `{"config_id":"c2"}`)
	if code != http.StatusOK || !strings.Contains(string(env.Data), NotPersisted) {
		t.Errorf("code=%d data=%s", code, env.Data)
	}
}
