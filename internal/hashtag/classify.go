// Package hashtag turns the caption of a channel post into catalog coordinates.
package hashtag

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"catalog-tg-bot/internal/storage"
)

// DefaultTitle is used when a caption carries no usable title.
const DefaultTitle = "unnamed"

// DefaultCategory is used when no category tag matches.
const DefaultCategory = storage.CatSeries

type Result struct {
	Category storage.Category
	Title    string
	Season   *int
	Episode  *int
}

// HasEpisode reports whether both season and episode were found.
func (r Result) HasEpisode() bool { return r.Season != nil && r.Episode != nil }

var (
	tagRe     = regexp.MustCompile(`#(\S+)`)
	seRe      = regexp.MustCompile(`(?i)^s(\d+)e(\d+)$`)
	// Matched against key(tag), which has already dropped separators.
	seasonRe  = regexp.MustCompile(`^فصل(\d+)$`)
	episodeRe = regexp.MustCompile(`^قسمت(\d+)$`)
)

// A rule matches when any of its alternatives is fully contained in the tag set.
type rule struct {
	category     storage.Category
	alternatives [][]string
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{storage.CatIranianFilm, [][]string{{"فیلمایرانی"}, {"فیلم", "ایرانی"}}},
	{storage.CatIranianSerie, [][]string{{"سریالایرانی"}, {"سریال", "ایرانی"}}},
	{storage.CatSeries, [][]string{{"سریال"}}},
	{storage.CatFilm, [][]string{{"فیلم"}}},
	{storage.CatCartoon, [][]string{{"کارتون"}}},
	{storage.CatAnimeSeries, [][]string{{"سریالانیمیشن"}, {"انیمهسریالی"}}},
	{storage.CatAnimation, [][]string{{"انیمیشن"}, {"انیمه"}}},
	{storage.CatIranianFilm, [][]string{{"iranianfilm"}, {"iranianmovie"}, {"iranian", "film"}, {"iranian", "movie"}}},
	{storage.CatIranianSerie, [][]string{{"iranianseries"}, {"iranian", "series"}}},
	{storage.CatSeries, [][]string{{"series"}, {"tvseries"}}},
	{storage.CatFilm, [][]string{{"film"}, {"movie"}}},
	{storage.CatCartoon, [][]string{{"cartoon"}}},
	{storage.CatAnimeSeries, [][]string{{"animeseries"}, {"anime", "series"}}},
	{storage.CatAnimation, [][]string{{"anime"}, {"animation"}}},
}

// structural holds every tag that only carries classification meaning.
var structural = func() map[string]struct{} {
	m := map[string]struct{}{"فصل": {}, "قسمت": {}, "season": {}, "episode": {}}
	for _, r := range rules {
		for _, alt := range r.alternatives {
			for _, tag := range alt {
				m[tag] = struct{}{}
			}
		}
	}
	return m
}()

var folder = cases.Fold()

var tagCleaner = strings.NewReplacer("_", "", "\u200c", "", "-", "", "ي", "ی", "ك", "ک")

// key normalises a tag for matching: folded case, no separators, Persian letter forms, ASCII digits.
func key(tag string) string {
	tag = tagCleaner.Replace(tag)
	return folder.String(asciiDigits(tag))
}

// asciiDigits maps Persian and Arabic-Indic digits to ASCII.
func asciiDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		}
		return r
	}, s)
}

// Classify parses the hashtags of caption. It never fails: missing parts fall back to
// DefaultCategory and DefaultTitle.
func Classify(caption string) Result {
	caption = norm.NFC.String(caption)
	matches := tagRe.FindAllStringSubmatchIndex(caption, -1)

	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, strings.TrimRight(caption[m[2]:m[3]], ".,;:!؟?،"))
	}

	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[key(t)] = struct{}{}
	}

	res := Result{Category: DefaultCategory}
	for _, r := range rules {
		if r.matches(set) {
			res.Category = r.category
			break
		}
	}

	var titleTag string
	for _, t := range tags {
		if seRe.MatchString(asciiDigits(t)) {
			continue
		}
		k := key(t)
		if m := seasonRe.FindStringSubmatch(k); m != nil {
			if res.Season == nil {
				res.Season = atoi(m[1])
			}
			continue
		}
		if m := episodeRe.FindStringSubmatch(k); m != nil {
			if res.Episode == nil {
				res.Episode = atoi(m[1])
			}
			continue
		}
		if _, ok := structural[k]; ok {
			continue
		}
		if titleTag == "" {
			titleTag = strings.TrimSpace(strings.ReplaceAll(t, "_", " "))
		}
	}

	// An S#E# tag overrides the localized season/episode tags.
	for _, t := range tags {
		if m := seRe.FindStringSubmatch(asciiDigits(t)); m != nil {
			res.Season, res.Episode = atoi(m[1]), atoi(m[2])
			break
		}
	}

	res.Title = titleTag
	if res.Title == "" {
		res.Title = freeText(caption)
	}
	if res.Title == "" {
		res.Title = DefaultTitle
	}
	return res
}

func (r rule) matches(set map[string]struct{}) bool {
	for _, alt := range r.alternatives {
		all := true
		for _, tag := range alt {
			if _, ok := set[tag]; !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// freeText returns the first non-empty caption line once hashtags are removed.
func freeText(caption string) string {
	stripped := tagRe.ReplaceAllString(caption, " ")
	for _, line := range strings.Split(stripped, "\n") {
		line = strings.Join(strings.FieldsFunc(line, unicode.IsSpace), " ")
		if line != "" {
			return line
		}
	}
	return ""
}

func atoi(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
