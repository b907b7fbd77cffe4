package sources_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"reel-go/internal/reel"
	"reel-go/internal/sources"
)

const searchPage = `<html><body>
<ul class="results">
  <li><a href="/film/alien-1992">Alien 3 <span class="year">(1992)</span></a></li>
  <li><a href="/film/alien-1979">Alien <span class="year">(1979)</span></a></li>
  <li><a href="/film/alien-2019">Alien <span class="year">(2019)</span></a></li>
</ul>
</body></html>`

const detailPage = `<html><head>
<meta property="og:title" content="Alien">
<meta property="og:description" content="In space, no one can hear you scream.">
<meta property="og:url" content="https://catalog.example/film/alien-1979">
</head><body>
<h1>Alien (1979)</h1>
<dl class="info">
  <dt>Released:</dt><dd>May 25, 1979</dd>
  <dt>Genres</dt><dd><a href="/g/horror">Horror</a>, <a href="/g/scifi">Science Fiction</a></dd>
  <dt>Director</dt><dd>Ridley Scott</dd>
  <dt>Runtime</dt><dd>117 min</dd>
  <dt>Rating</dt><dd>8.5/10</dd>
</dl>
</body></html>`

func newCatalog(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var requests []string
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "no user agent", http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("q") == "nothing" {
			fmt.Fprint(w, `<html><body><ul class="results"></ul></body></html>`)
			return
		}
		fmt.Fprint(w, searchPage)
	})
	mux.HandleFunc("/film/", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		if r.URL.Path != "/film/alien-1979" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, detailPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestWebSource_Fetch(t *testing.T) {
	srv, requests := newCatalog(t)
	src := sources.NewWebSource(srv.URL, time.Second, "")

	block, err := src.Fetch(context.Background(), reel.Params{"title": "alien", "year": 1979.0})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := map[string]any{
		"title":    "Alien",
		"plot":     "In space, no one can hear you scream.",
		"year":     1979,
		"director": "Ridley Scott",
		"runtime":  117,
		"rating":   8.5,
		"url":      "https://catalog.example/film/alien-1979",
	}
	for key, w := range want {
		if got, _ := block.Get(key); got != w {
			t.Errorf("%s = %#v, want %#v", key, got, w)
		}
	}
	genre, _ := block.Get("genre")
	if !reflect.DeepEqual(genre, []string{"Horror", "Science Fiction"}) {
		t.Errorf("genre = %#v", genre)
	}

	if len(*requests) != 2 || (*requests)[0] != "/search?q=alien&year=1979" {
		t.Errorf("requests = %v", *requests)
	}
}

func TestWebSource_Fetch_Errors(t *testing.T) {
	srv, _ := newCatalog(t)

	tests := []struct {
		name    string
		baseURL string
		params  reel.Params
		check   func(t *testing.T, err error)
	}{
		{
			name:    "missing title",
			baseURL: srv.URL,
			params:  reel.Params{"year": 1979},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, reel.ErrMissingParameter) {
					t.Errorf("error = %v, want ErrMissingParameter", err)
				}
			},
		},
		{
			name:    "no results",
			baseURL: srv.URL,
			params:  reel.Params{"title": "nothing"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, reel.ErrNotFound) {
					t.Errorf("error = %v, want ErrNotFound", err)
				}
			},
		},
		{
			name:    "detail page missing",
			baseURL: srv.URL,
			params:  reel.Params{"title": "Alien 3"},
			check: func(t *testing.T, err error) {
				var se *sources.HTTPStatusError
				if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
					t.Errorf("error = %v, want HTTPStatusError 404", err)
				}
			},
		},
		{
			name:    "no base url",
			baseURL: "",
			params:  reel.Params{"title": "Alien"},
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Error("expected error")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sources.NewWebSource(tt.baseURL, time.Second, "reel-test")
			_, err := src.Fetch(context.Background(), tt.params)
			if err == nil {
				t.Fatal("Fetch() expected error")
			}
			tt.check(t, err)
		})
	}
}
