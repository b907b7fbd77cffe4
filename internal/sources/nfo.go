package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"reel-go/internal/reel"
)

// NFOName is the registry name of the sidecar source.
const NFOName = "nfo"

// maxNFOSize bounds how much of a sidecar is read.
const maxNFOSize = 1 << 20

// nfoDocument covers the fields shared by Kodi movie, tvshow and
// episodedetails documents.
type nfoDocument struct {
	XMLName       xml.Name
	Title         string      `xml:"title"`
	OriginalTitle string      `xml:"originaltitle"`
	SortTitle     string      `xml:"sorttitle"`
	Year          string      `xml:"year"`
	Premiered     string      `xml:"premiered"`
	Plot          string      `xml:"plot"`
	Genres        []string    `xml:"genre"`
	Studio        string      `xml:"studio"`
	Director      string      `xml:"director"`
	Runtime       string      `xml:"runtime"`
	Rating        string      `xml:"rating"`
	Ratings       []nfoRating `xml:"ratings>rating"`
	Season        string      `xml:"season"`
	Episode       string      `xml:"episode"`
	ShowTitle     string      `xml:"showtitle"`
}

type nfoRating struct {
	Name    string `xml:"name,attr"`
	Default bool   `xml:"default,attr"`
	Value   string `xml:"value"`
}

var nfoRoots = map[string]bool{"movie": true, "tvshow": true, "episodedetails": true}

// NFOSource reads a Kodi style XML sidecar next to the media file: first
// "<stem>.nfo", then "movie.nfo" in the same directory.
type NFOSource struct {
	fsmgr reel.FilesystemManager
}

// NewNFOSource returns a sidecar source reading through fsmgr.
func NewNFOSource(fsmgr reel.FilesystemManager) *NFOSource {
	return &NFOSource{fsmgr: fsmgr}
}

func (*NFOSource) Name() string             { return NFOName }
func (*NFOSource) RequiredParams() []string { return []string{"path"} }
func (*NFOSource) OptionalParams() []string { return nil }

// Fetch locates and parses the sidecar for params["path"].
func (n *NFOSource) Fetch(ctx context.Context, params reel.Params) (*reel.MetadataBlock, error) {
	if err := reel.CheckParams(n, params); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mediaPath := reel.FormatValue(params["path"])
	candidates := sidecarPaths(mediaPath)
	for _, p := range candidates {
		rc, err := n.fsmgr.Open(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, reel.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("opening %s: %w", p, err)
		}
		block, err := parseNFO(io.LimitReader(rc, maxNFOSize))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
		return block, nil
	}
	return nil, &reel.NotFoundError{Path: candidates[0]}
}

func sidecarPaths(mediaPath string) []string {
	dir := filepath.Dir(mediaPath)
	base := filepath.Base(mediaPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	paths := []string{filepath.Join(dir, stem+".nfo")}
	if stem != "movie" {
		paths = append(paths, filepath.Join(dir, "movie.nfo"))
	}
	return paths
}

// parseNFO decodes a sidecar document into a metadata block. Empty
// elements are left out.
func parseNFO(r io.Reader) (*reel.MetadataBlock, error) {
	var doc nfoDocument
	dec := xml.NewDecoder(r)
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if !nfoRoots[strings.ToLower(doc.XMLName.Local)] {
		return nil, fmt.Errorf("unsupported nfo root element <%s>", doc.XMLName.Local)
	}

	block := reel.NewMetadataBlock(nil)
	setString := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			block.Set(key, v)
		}
	}
	setInt := func(key, value string) {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
			block.Set(key, n)
		}
	}

	setString("title", doc.Title)
	setString("original_title", doc.OriginalTitle)
	setString("sort_title", doc.SortTitle)
	setString("show_title", doc.ShowTitle)
	setString("plot", doc.Plot)
	setString("studio", doc.Studio)
	setString("director", doc.Director)
	setString("premiered", doc.Premiered)

	year := strings.TrimSpace(doc.Year)
	if year == "" && len(strings.TrimSpace(doc.Premiered)) >= 4 {
		year = strings.TrimSpace(doc.Premiered)[:4]
	}
	setInt("year", year)
	setInt("runtime", doc.Runtime)
	setInt("season", doc.Season)
	setInt("episode", doc.Episode)

	var genres []string
	seen := make(map[string]bool)
	for _, g := range doc.Genres {
		for _, part := range strings.Split(g, "/") {
			part = strings.TrimSpace(part)
			if part != "" && !seen[strings.ToLower(part)] {
				seen[strings.ToLower(part)] = true
				genres = append(genres, part)
			}
		}
	}
	if len(genres) > 0 {
		block.Set("genre", genres)
	}

	if rating, ok := pickRating(doc); ok {
		block.Set("rating", rating)
	}
	return block, nil
}

// pickRating prefers the default entry of <ratings>, then the first entry,
// then the legacy <rating> element.
func pickRating(doc nfoDocument) (float64, bool) {
	var chosen string
	for _, r := range doc.Ratings {
		if r.Default {
			chosen = r.Value
			break
		}
	}
	if chosen == "" && len(doc.Ratings) > 0 {
		chosen = doc.Ratings[0].Value
	}
	if chosen == "" {
		chosen = doc.Rating
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(chosen), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

var _ reel.MetadataSource = (*NFOSource)(nil)
