package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetynet/internal/core"
	"safetynet/internal/infra/persistence/memory"
	"safetynet/pkg/domain"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*core.Service, http.Handler) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	require.NoError(t, err)
	svc := core.NewService(memory.NewStore(core.NewDefaultRulesEngine()),
		core.WithClock(core.ClockFunc(func() time.Time { return testNow })),
		core.WithMetricsRecorder(metrics))

	ctx := context.Background()
	_, _, err = svc.CreateStationAssignment(ctx, core.StationAssignment{Address: "1509 Culver St", Station: 3})
	require.NoError(t, err)
	for _, first := range []string{"John", "Tenley"} {
		_, _, err = svc.CreateResident(ctx, core.Resident{FirstName: first, LastName: "Boyd", Address: "1509 Culver St", City: "Culver", Zip: "97451", Phone: "841-874-6512", Email: "jaboyd@email.com"})
		require.NoError(t, err)
	}
	_, _, err = svc.CreateMedicalRecord(ctx, core.MedicalRecord{FirstName: "John", LastName: "Boyd", Birthdate: domain.NewDate(1994, time.March, 6)})
	require.NoError(t, err)
	_, _, err = svc.CreateMedicalRecord(ctx, core.MedicalRecord{FirstName: "Tenley", LastName: "Boyd", Birthdate: domain.NewDate(2012, time.February, 18), Allergies: []string{"peanut"}})
	require.NoError(t, err)

	h := NewHandler(svc, nil, WithGatherer(reg), WithStorageName("memory"))
	return svc, NewServer(h)
}

func do(t *testing.T, srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestCoverageEndpoint(t *testing.T) {
	_, srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/firestation?stationNumber=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body struct {
		Persons []struct {
			FirstName string `json:"firstName"`
		} `json:"persons"`
		NbAdults   int `json:"nbAdults"`
		NbChildren int `json:"nbChildren"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Persons, 2)
	assert.Equal(t, "John", body.Persons[0].FirstName)
	assert.Equal(t, 1, body.NbAdults)
	assert.Equal(t, 1, body.NbChildren)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/firestation?stationNumber=8", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/firestation?stationNumber=three", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/firestation", "").Code)
}

func TestQueryEndpoints(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/childAlert?address=1509+Culver+St", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"firstName":"Tenley"`)
	assert.Contains(t, rec.Body.String(), `"age":12`)

	rec = do(t, srv, http.MethodGet, "/childAlert?address=Nowhere", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/phoneAlert?firestation=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["841-874-6512"]`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/fire?address=Nowhere", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"station":null`)

	rec = do(t, srv, http.MethodGet, "/flood/stations?stations=3,9&stations=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var flood map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flood))
	assert.Len(t, flood, 1)
	assert.Len(t, flood["1509 Culver St"], 2)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/flood/stations?stations=a", "").Code)

	rec = do(t, srv, http.MethodGet, "/personInfo?firstName=x&lastName=Boyd", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allergies":["peanut"]`)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/personInfo?lastName=Zed", "").Code)

	rec = do(t, srv, http.MethodGet, "/communityEmail?city=Culver", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["jaboyd@email.com"]`, rec.Body.String())
}

func TestResidentMutations(t *testing.T) {
	svc, srv := newTestServer(t)
	person := `{"firstName":"Jacob","lastName":"Boyd","address":"1509 Culver St","city":"Culver","zip":"97451","phone":"841-874-6513","email":"drk@email.com"}`

	rec := do(t, srv, http.MethodPost, "/person", person)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, person, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/person", person)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already_exists")

	rec = do(t, srv, http.MethodPut, "/person?firstName=Jacob&lastName=Boyd", `{"address":"29 15th St","city":"Culver"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got, err := svc.GetResident(context.Background(), core.PersonKey{FirstName: "Jacob", LastName: "Boyd"})
	require.NoError(t, err)
	assert.Equal(t, "29 15th St", got.Address)
	assert.Empty(t, got.Phone)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/person", `{"firstName":"A"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/person", `[1,2]`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodDelete, "/person?firstName=Jacob", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/person?firstName=Jacob&lastName=Boyd", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/person?firstName=Jacob&lastName=Boyd", "").Code)

	rec = do(t, srv, http.MethodGet, "/person", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var residents []core.Resident
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &residents))
	assert.Len(t, residents, 2)
}

func TestStationMutations(t *testing.T) {
	_, srv := newTestServer(t)

	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/firestation", `{"address":"29 15th St","station":2}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/firestation/assignments", `{"address":"29 15th St","station":4}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/firestation", `{"address":"x","station":0}`).Code)

	rec := do(t, srv, http.MethodPut, "/firestation?address=29+15th+St", `{"station":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"address":"29 15th St","station":5}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/firestation/assignments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"address":"1509 Culver St","station":3},{"address":"29 15th St","station":5}]`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/firestation?address=29+15th+St", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPut, "/firestation?address=29+15th+St", `{"station":1}`).Code)
}

func TestMedicalRecordMutations(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/medicalRecord", `{"firstName":"Ghost","lastName":"Boyd","birthdate":"01/01/2000","medications":[],"allergies":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ghost Boyd")

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/medicalRecord", `{"firstName":"John","lastName":"Boyd","birthdate":"2000-01-01"}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/medicalRecord", `{"firstName":"John","lastName":"Boyd","birthdate":"01/01/2000"}`).Code)

	rec = do(t, srv, http.MethodPut, "/medicalRecord?firstName=John&lastName=Boyd", `{"birthdate":"03/06/1984","medications":["aznol:350mg"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"firstName":"John","lastName":"Boyd","birthdate":"03/06/1984","medications":["aznol:350mg"],"allergies":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/medicalRecord?firstName=John&lastName=Boyd", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/medicalRecord?firstName=John&lastName=Boyd", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"safetynet","storage":"memory"}`, rec.Body.String())

	do(t, srv, http.MethodGet, "/phoneAlert?firestation=3", "")
	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `safetynet_service_operations_total{operation="phone_alert",outcome="success"} 1`)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.NotFoundError{Entity: domain.EntityResident, Key: "x"}, http.StatusNotFound},
		{domain.ConflictError{Entity: domain.EntityResident, Key: "x"}, http.StatusConflict},
		{domain.ValidationError{Entity: domain.EntityResident, Field: "f", Reason: "r"}, http.StatusBadRequest},
		{domain.RuleViolationError{}, http.StatusConflict},
		{domain.PersistenceError{Op: "create_resident", Err: assert.AnError}, http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}

func TestEveryRouteIsDocumented(t *testing.T) {
	svc := core.NewService(memory.NewStore(core.NewDefaultRulesEngine()))
	e := NewServer(NewHandler(svc, nil, WithGatherer(prometheus.NewRegistry())))

	rec := do(t, e, http.MethodGet, "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Paths map[string]map[string]interface{} `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))

	for _, r := range e.Routes() {
		ops, ok := doc.Paths[r.Path]
		if assert.Truef(t, ok, "path %s not documented", r.Path) {
			_, ok = ops[strings.ToLower(r.Method)]
			assert.Truef(t, ok, "%s %s not documented", r.Method, r.Path)
		}
	}
}

func TestQueryKeysMatchExactly(t *testing.T) {
	_, srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/fire?address=1509+Culver+St+", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"station":null`)

	rec = do(t, srv, http.MethodGet, "/communityEmail?city=+Culver", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/personInfo?lastName=Boyd+", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/childAlert?address=++", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/firestation?stationNumber=+3", "").Code)
}
