package civicdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookupByName(t *testing.T) {
	// WHAT: A directory hit is decoded into a Record.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Döttingen" {
			t.Errorf("name param: %q", r.URL.Query().Get("name"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"id":4306,"name":"Döttingen","canton":"AG","website":"https://www.doettingen.ch"}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	rec, err := c.LookupByName(context.Background(), "Döttingen", "")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec == nil || rec.ID != 4306 || rec.Canton != "AG" {
		t.Fatalf("record: %+v", rec)
	}
}

func TestLookupByName_Empty(t *testing.T) {
	// WHAT: Empty result sets and 404s both mean "no match", not an error.
	for _, handler := range []http.HandlerFunc{
		func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"results":[]}`)) },
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(404) },
	} {
		srv := httptest.NewServer(handler)
		c := New(Config{BaseURL: srv.URL})
		rec, err := c.LookupByName(context.Background(), "Nirgendwil", "")
		srv.Close()
		if err != nil || rec != nil {
			t.Errorf("want nil,nil got %+v, %v", rec, err)
		}
	}
}

func TestLookupByName_ServerError(t *testing.T) {
	// WHAT: 5xx surfaces as an error so the resolver can log and move on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if _, err := c.LookupByName(context.Background(), "Bern", ""); err == nil {
		t.Fatal("want error on 500")
	}
}

func TestNew_Disabled(t *testing.T) {
	if c := New(Config{}); c != nil {
		t.Fatal("empty BaseURL should yield nil client")
	}
}
