package sources

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reel-go/internal/reel"
)

// GuessName is the registry name of the filename heuristics source.
const GuessName = "guess"

var (
	episodeRe    = regexp.MustCompile(`(?i)\bs(\d{1,2})[ .]?e(\d{1,3})\b`)
	altEpisodeRe = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	yearRe       = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	resolutionRe = regexp.MustCompile(`(?i)\b(480|576|720|1080|2160)[pi]\b|\b4k\b|\buhd\b`)
	// Release tags that end the title part of a scene-style name.
	markerRe  = regexp.MustCompile(`(?i)\b(bluray|blu-ray|bdrip|brrip|web-?dl|webrip|hdtv|dvdrip|remux|x264|x265|h\.?264|h\.?265|hevc|proper|repack|extended|unrated)\b`)
	bracketRe = regexp.MustCompile(`\[[^\]]*\]|\{[^}]*\}`)
)

var leadingArticles = []string{"the ", "a ", "an "}

// GuessSource derives metadata from the file name alone. It is the
// lowest-preference source and never touches the file.
type GuessSource struct{}

// NewGuessSource returns the filename heuristics source.
func NewGuessSource() *GuessSource { return &GuessSource{} }

func (*GuessSource) Name() string             { return GuessName }
func (*GuessSource) RequiredParams() []string { return []string{"filename"} }
func (*GuessSource) OptionalParams() []string { return nil }

// Fetch parses params["filename"].
func (g *GuessSource) Fetch(ctx context.Context, params reel.Params) (*reel.MetadataBlock, error) {
	if err := reel.CheckParams(g, params); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return GuessFromFilename(reel.FormatValue(params["filename"])), nil
}

// GuessFromFilename parses a scene-style or plain file name such as
// "alien.1979.1080p.bluray.mkv" or "Show.Name.S01E02.720p.mkv".
func GuessFromFilename(filename string) *reel.MetadataBlock {
	block := reel.NewMetadataBlock(nil)

	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext != "" {
		block.Set("extension", strings.ToLower(strings.TrimPrefix(ext, ".")))
	}

	name := bracketRe.ReplaceAllString(stem, " ")
	name = strings.Map(func(r rune) rune {
		if r == '.' || r == '_' {
			return ' '
		}
		return r
	}, name)

	// cut is where the title ends: the first marker after the title's
	// first word.
	cut := len(name)
	cutAt := func(idx int) {
		if idx > 0 && idx < cut {
			cut = idx
		}
	}

	if m := episodeRe.FindStringSubmatchIndex(name); m != nil {
		block.Set("season", atoi(name[m[2]:m[3]]))
		block.Set("episode", atoi(name[m[4]:m[5]]))
		cutAt(m[0])
	} else if m := altEpisodeRe.FindStringSubmatchIndex(name); m != nil {
		block.Set("season", atoi(name[m[2]:m[3]]))
		block.Set("episode", atoi(name[m[4]:m[5]]))
		cutAt(m[0])
	}

	// The last year wins so that "2001 A Space Odyssey 1968" keeps 2001 in
	// the title.
	if all := yearRe.FindAllStringSubmatchIndex(name, -1); len(all) > 0 {
		for i := len(all) - 1; i >= 0; i-- {
			m := all[i]
			if m[0] == 0 && len(all) == 1 {
				break
			}
			if m[0] == 0 {
				continue
			}
			block.Set("year", atoi(name[m[2]:m[3]]))
			cutAt(m[0])
			break
		}
	}

	if m := resolutionRe.FindStringSubmatchIndex(name); m != nil {
		var res string
		if m[2] >= 0 {
			res = name[m[2]:m[3]] + "p"
		} else {
			res = "2160p"
		}
		block.Set("resolution", res)
		cutAt(m[0])
	}
	if m := markerRe.FindStringIndex(name); m != nil {
		cutAt(m[0])
	}

	title := cleanTitle(name[:cut])
	if title != "" {
		block.Set("title", title)
		block.Set("sort_title", sortTitle(title))
	}
	return block
}

// cleanTitle collapses whitespace, trims separators and title-cases names
// that carry no casing of their own.
func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '(' || r == '[' || r == ','
	})
	if s == "" {
		return ""
	}
	if s == strings.ToLower(s) || s == strings.ToUpper(s) {
		s = cases.Title(language.English).String(s)
	}
	return s
}

// sortTitle folds to ASCII, lowercases and drops a leading article.
func sortTitle(title string) string {
	s := strings.ToLower(unidecode.Unidecode(title))
	for _, a := range leadingArticles {
		if strings.HasPrefix(s, a) && len(s) > len(a) {
			s = s[len(a):]
			break
		}
	}
	return strings.TrimSpace(s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var _ reel.MetadataSource = (*GuessSource)(nil)
