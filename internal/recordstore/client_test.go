package recordstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoAttachesBearerCredential(t *testing.T) {
	var gotAuthz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthz = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if _, err := c.Do(context.Background(), http.MethodGet, "/students", nil, "tok123"); err != nil {
		t.Fatal(err)
	}
	if gotAuthz != "Bearer tok123" {
		t.Errorf("Authorization = %q, want %q", gotAuthz, "Bearer tok123")
	}
}

func TestDoOmitsHeaderWithoutCredential(t *testing.T) {
	var gotAuthz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthz = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if _, err := c.Do(context.Background(), http.MethodGet, "/students", nil, ""); err != nil {
		t.Fatal(err)
	}
	if gotAuthz != "" {
		t.Errorf("Authorization = %q, want empty", gotAuthz)
	}
}

func TestDoExtractsErrorMessage(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error key", 422, `{"error":"email already taken"}`, "email already taken"},
		{"message key", 500, `{"message":"boom"}`, "boom"},
		{"opaque body", 503, `<html>down</html>`, "request failed: 503 Service Unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := New(srv.URL, time.Second)
			_, err := c.Do(context.Background(), http.MethodGet, "/students", nil, "tok")
			te, ok := AsTransport(err)
			if !ok {
				t.Fatalf("want TransportError, got %v", err)
			}
			if te.Status != tc.status {
				t.Errorf("Status = %d, want %d", te.Status, tc.status)
			}
			if te.Message != tc.want {
				t.Errorf("Message = %q, want %q", te.Message, tc.want)
			}
		})
	}
}

func TestDoNetworkFailureHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL, time.Second)
	_, err := c.Do(context.Background(), http.MethodGet, "/students", nil, "tok")
	te, ok := AsTransport(err)
	if !ok {
		t.Fatalf("want TransportError, got %v", err)
	}
	if te.Status != 0 {
		t.Errorf("Status = %d, want 0", te.Status)
	}
	if te.IsAuthorization() {
		t.Error("network failure must not read as authorization rejection")
	}
}

func TestIsAuthorization(t *testing.T) {
	for status, want := range map[int]bool{401: true, 403: true, 404: false, 500: false} {
		te := &TransportError{Status: status}
		if te.IsAuthorization() != want {
			t.Errorf("IsAuthorization() for %d = %v, want %v", status, !want, want)
		}
	}
}

func TestSetStudentActiveSelectsEndpoint(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent) // toggle endpoints return no body
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if err := c.SetStudentActive(context.Background(), "tok", "5", false); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/students/5/deactivate" || gotMethod != http.MethodPatch {
		t.Errorf("got %s %s, want PATCH /students/5/deactivate", gotMethod, gotPath)
	}
	if err := c.SetStudentActive(context.Background(), "tok", "5", true); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/students/5/activate" {
		t.Errorf("got %s, want /students/5/activate", gotPath)
	}
}

func TestCreateStudentReturnsAssignedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":31,"first_name":"Asha","last_name":"Odhiambo","status":"active"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	created, err := c.CreateStudent(context.Background(), "tok", map[string]any{"first_name": "Asha"})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "31" {
		t.Errorf("ID = %q, want 31", created.ID)
	}
	if !created.Active {
		t.Error("Active = false, want true")
	}
}

func TestDeleteStudentToleratesEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if err := c.DeleteStudent(context.Background(), "tok", "9"); err != nil {
		t.Fatal(err)
	}
}
