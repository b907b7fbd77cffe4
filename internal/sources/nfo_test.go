package sources_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"reel-go/internal/reel"
	"reel-go/internal/sources"
	"reel-go/internal/testutil"
)

const movieNFO = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<movie>
  <title>Alien</title>
  <originaltitle>Alien</originaltitle>
  <year>1979</year>
  <plot>The crew of a commercial spacecraft encounters a deadly lifeform.</plot>
  <genre>Horror</genre>
  <genre>Science Fiction / Horror</genre>
  <studio>20th Century Fox</studio>
  <director>Ridley Scott</director>
  <runtime>117</runtime>
  <ratings>
    <rating name="imdb"><value>8.4</value></rating>
    <rating name="tmdb" default="true"><value>8.1</value></rating>
  </ratings>
</movie>`

func TestNFOSource_Fetch(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/media/Alien.mkv", []byte("video"))
	fsmgr.AddFile("/media/Alien.nfo", []byte(movieNFO))

	src := sources.NewNFOSource(fsmgr)
	block, err := src.Fetch(context.Background(), reel.Params{"path": "/media/Alien.mkv"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := map[string]any{
		"title":          "Alien",
		"original_title": "Alien",
		"year":           1979,
		"studio":         "20th Century Fox",
		"director":       "Ridley Scott",
		"runtime":        117,
		"rating":         8.1,
	}
	for key, w := range want {
		if got, _ := block.Get(key); got != w {
			t.Errorf("%s = %#v, want %#v", key, got, w)
		}
	}
	genre, _ := block.Get("genre")
	if !reflect.DeepEqual(genre, []string{"Horror", "Science Fiction"}) {
		t.Errorf("genre = %#v, want [Horror Science Fiction]", genre)
	}
}

func TestNFOSource_Fetch_MovieNFOFallback(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/media/Heat (1995)/heat.mkv", []byte("video"))
	fsmgr.AddFile("/media/Heat (1995)/movie.nfo", []byte(`<movie><title>Heat</title><premiered>1995-12-15</premiered><rating>8.3</rating></movie>`))

	block, err := sources.NewNFOSource(fsmgr).Fetch(context.Background(), reel.Params{"path": "/media/Heat (1995)/heat.mkv"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got, _ := block.Get("year"); got != 1995 {
		t.Errorf("year = %#v, want 1995 from premiered", got)
	}
	if got, _ := block.Get("rating"); got != 8.3 {
		t.Errorf("rating = %#v, want 8.3", got)
	}
}

func TestNFOSource_Fetch_Errors(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/media/a.mkv", []byte("video"))
	fsmgr.AddFile("/media/b.mkv", []byte("video"))
	fsmgr.AddFile("/media/b.nfo", []byte(`<musicvideo><title>x</title></musicvideo>`))
	fsmgr.AddFile("/media/c.mkv", []byte("video"))
	fsmgr.AddFile("/media/c.nfo", []byte(`not xml at all`))
	src := sources.NewNFOSource(fsmgr)

	tests := []struct {
		name     string
		params   reel.Params
		wantIs   error
		wantFail bool
	}{
		{name: "missing path", params: reel.Params{}, wantIs: reel.ErrMissingParameter},
		{name: "no sidecar", params: reel.Params{"path": "/media/a.mkv"}, wantIs: reel.ErrNotFound},
		{name: "unsupported root", params: reel.Params{"path": "/media/b.mkv"}, wantFail: true},
		{name: "malformed", params: reel.Params{"path": "/media/c.mkv"}, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := src.Fetch(context.Background(), tt.params)
			if err == nil {
				t.Fatal("Fetch() expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Fetch() error = %v, want %v", err, tt.wantIs)
			}
		})
	}
}
