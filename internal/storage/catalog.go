package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

type Category string

const (
	CatFilm         Category = "فیلم"
	CatSeries       Category = "سریال"
	CatCartoon      Category = "کارتون"
	CatAnimation    Category = "انیمیشن"
	CatIranianFilm  Category = "فیلم ایرانی"
	CatIranianSerie Category = "سریال ایرانی"
	CatAnimeSeries  Category = "سریال انیمیشن"
)

// Categories lists every fixed category in menu order.
var Categories = []Category{CatFilm, CatSeries, CatCartoon, CatAnimation, CatIranianFilm, CatIranianSerie, CatAnimeSeries}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// IsSeries reports whether titles in the category are organised in seasons.
func (c Category) IsSeries() bool {
	return c == CatSeries || c == CatIranianSerie || c == CatAnimeSeries
}

type MediaKind string

const (
	MediaVideo    MediaKind = "video"
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
)

func (m MediaKind) Valid() bool {
	switch m {
	case MediaVideo, MediaPhoto, MediaDocument, MediaAudio:
		return true
	}
	return false
}

type Payload struct {
	FileID string    `json:"file_id"`
	Media  MediaKind `json:"media"`
	Title  string    `json:"title"`
}

// PosterEpisode is the reserved episode number holding a season poster.
const PosterEpisode = 0

type Season map[int]Payload

// Episodes returns the orderable episode numbers, ascending. The poster slot is skipped.
func (s Season) Episodes() []int {
	out := make([]int, 0, len(s))
	for n := range s {
		if n > PosterEpisode {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

func (s Season) Poster() (Payload, bool) {
	p, ok := s[PosterEpisode]
	return p, ok
}

type ItemType string

const (
	TypeSingle ItemType = "single"
	TypeSeries ItemType = "series"
)

type Item struct {
	Type    ItemType
	Payload Payload
	Seasons map[int]Season
}

type singleJSON struct {
	Type   ItemType  `json:"type"`
	FileID string    `json:"file_id"`
	Media  MediaKind `json:"media"`
	Title  string    `json:"title"`
}

type seriesJSON struct {
	Type    ItemType       `json:"type"`
	Seasons map[int]Season `json:"seasons"`
}

func (it Item) MarshalJSON() ([]byte, error) {
	if it.Type == TypeSeries {
		seasons := it.Seasons
		if seasons == nil {
			seasons = map[int]Season{}
		}
		return json.Marshal(seriesJSON{Type: TypeSeries, Seasons: seasons})
	}
	return json.Marshal(singleJSON{Type: TypeSingle, FileID: it.Payload.FileID, Media: it.Payload.Media, Title: it.Payload.Title})
}

func (it *Item) UnmarshalJSON(b []byte) error {
	var probe struct {
		Type    ItemType                   `json:"type"`
		FileID  string                     `json:"file_id"`
		Media   MediaKind                  `json:"media"`
		Title   string                     `json:"title"`
		Seasons map[string]json.RawMessage `json:"seasons"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.Type == TypeSeries || (probe.Type == "" && probe.Seasons != nil) {
		it.Type = TypeSeries
		it.Seasons = make(map[int]Season, len(probe.Seasons))
		for k, raw := range probe.Seasons {
			n, err := strconv.Atoi(k)
			if err != nil || n < 0 {
				continue
			}
			var eps map[string]Payload
			if err := json.Unmarshal(raw, &eps); err != nil {
				return err
			}
			season := make(Season, len(eps))
			for ek, p := range eps {
				e, err := strconv.Atoi(ek)
				if err != nil || e < 0 {
					continue
				}
				season[e] = normalizePayload(p)
			}
			it.Seasons[n] = season
		}
		return nil
	}
	it.Type = TypeSingle
	it.Payload = normalizePayload(Payload{FileID: probe.FileID, Media: probe.Media, Title: probe.Title})
	return nil
}

func normalizePayload(p Payload) Payload {
	if !p.Media.Valid() {
		p.Media = MediaVideo
	}
	return p
}

// SeasonNumbers returns the season keys of a series item, ascending.
func (it *Item) SeasonNumbers() []int {
	out := make([]int, 0, len(it.Seasons))
	for n := range it.Seasons {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

type Stats struct {
	ItemRequests    map[string]int `json:"item_requests"`
	SeasonRequests  map[string]int `json:"season_requests"`
	EpisodeRequests map[string]int `json:"episode_requests"`
}

type UploadLogEntry struct {
	Time          time.Time `json:"time"`
	SourceChatID  int64     `json:"source_chat_id,omitempty"`
	SourceMessage int       `json:"source_message_id,omitempty"`
	Category      Category  `json:"category"`
	Title         string    `json:"title"`
	Season        *int      `json:"season,omitempty"`
	Episode       *int      `json:"episode,omitempty"`
	Payload       Payload   `json:"payload"`
	Registered    bool      `json:"registered"`
}

type Catalog struct {
	Categories map[Category]map[string]*Item `json:"categories"`
	Stats      Stats                         `json:"_stats"`
	Uploads    []UploadLogEntry              `json:"_uploads"`
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("item type conflict")
	ErrCategory = errors.New("unknown category")
)

func NewCatalog() *Catalog {
	c := &Catalog{}
	c.normalize()
	return c
}

// normalize seeds every fixed category and the stats containers.
func (c *Catalog) normalize() {
	if c.Categories == nil {
		c.Categories = make(map[Category]map[string]*Item, len(Categories))
	}
	for _, cat := range Categories {
		if c.Categories[cat] == nil {
			c.Categories[cat] = map[string]*Item{}
		}
	}
	for cat, items := range c.Categories {
		for title, it := range items {
			if it == nil {
				delete(items, title)
			}
		}
		if items == nil {
			c.Categories[cat] = map[string]*Item{}
		}
	}
	if c.Stats.ItemRequests == nil {
		c.Stats.ItemRequests = map[string]int{}
	}
	if c.Stats.SeasonRequests == nil {
		c.Stats.SeasonRequests = map[string]int{}
	}
	if c.Stats.EpisodeRequests == nil {
		c.Stats.EpisodeRequests = map[string]int{}
	}
	if c.Uploads == nil {
		c.Uploads = []UploadLogEntry{}
	}
}

func (c *Catalog) Clone() *Catalog {
	out := &Catalog{
		Categories: make(map[Category]map[string]*Item, len(c.Categories)),
		Stats: Stats{
			ItemRequests:    cloneCounts(c.Stats.ItemRequests),
			SeasonRequests:  cloneCounts(c.Stats.SeasonRequests),
			EpisodeRequests: cloneCounts(c.Stats.EpisodeRequests),
		},
		Uploads: append([]UploadLogEntry(nil), c.Uploads...),
	}
	for cat, items := range c.Categories {
		m := make(map[string]*Item, len(items))
		for title, it := range items {
			cp := &Item{Type: it.Type, Payload: it.Payload}
			if it.Seasons != nil {
				cp.Seasons = make(map[int]Season, len(it.Seasons))
				for n, s := range it.Seasons {
					eps := make(Season, len(s))
					for e, p := range s {
						eps[e] = p
					}
					cp.Seasons[n] = eps
				}
			}
			m[title] = cp
		}
		out.Categories[cat] = m
	}
	out.normalize()
	return out
}

func cloneCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (c *Catalog) Find(cat Category, title string) (*Item, bool) {
	it, ok := c.Categories[cat][title]
	return it, ok && it != nil
}

var folder = cases.Fold()

func foldKey(s string) string { return folder.String(s) }

// ListTitles returns the titles of a category in case-insensitive order.
func (c *Catalog) ListTitles(cat Category) []string {
	items := c.Categories[cat]
	out := make([]string, 0, len(items))
	for title := range items {
		out = append(out, title)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := foldKey(out[i]), foldKey(out[j])
		if a == b {
			return out[i] < out[j]
		}
		return a < b
	})
	return out
}

// Ref addresses one title in the catalog.
type Ref struct {
	Category Category `json:"category"`
	Title    string   `json:"title"`
}

const (
	SearchMinRunes = 3
	SearchLimit    = 10
)

// Search matches q as a case-insensitive substring of every title. Queries shorter than
// SearchMinRunes return nothing.
func (c *Catalog) Search(q string) []Ref {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < SearchMinRunes {
		return nil
	}
	needle := foldKey(q)
	var out []Ref
	for _, cat := range c.categoryOrder() {
		for _, title := range c.ListTitles(cat) {
			if strings.Contains(foldKey(title), needle) {
				out = append(out, Ref{Category: cat, Title: title})
				if len(out) == SearchLimit {
					return out
				}
			}
		}
	}
	return out
}

// categoryOrder is the fixed order followed by any unknown categories found on disk.
func (c *Catalog) categoryOrder() []Category {
	out := append([]Category(nil), Categories...)
	var extra []Category
	for cat := range c.Categories {
		if !cat.Valid() {
			extra = append(extra, cat)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// PutSingle stores or replaces the single payload of a title.
func (c *Catalog) PutSingle(cat Category, title string, p Payload) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %q", ErrCategory, cat)
	}
	if it, ok := c.Find(cat, title); ok && it.Type == TypeSeries {
		return fmt.Errorf("%w: %s / %s is a series", ErrConflict, cat, title)
	}
	c.Categories[cat][title] = &Item{Type: TypeSingle, Payload: normalizePayload(p)}
	return nil
}

// PutEpisode merges an episode (or the season poster for episode 0) into a series title,
// creating the title and season when needed.
func (c *Catalog) PutEpisode(cat Category, title string, season, episode int, p Payload) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %q", ErrCategory, cat)
	}
	if season < 0 || episode < 0 {
		return fmt.Errorf("negative season/episode %d/%d", season, episode)
	}
	it, ok := c.Find(cat, title)
	if ok && it.Type != TypeSeries {
		return fmt.Errorf("%w: %s / %s is a single item", ErrConflict, cat, title)
	}
	if !ok {
		it = &Item{Type: TypeSeries, Seasons: map[int]Season{}}
		c.Categories[cat][title] = it
	}
	if it.Seasons == nil {
		it.Seasons = map[int]Season{}
	}
	if it.Seasons[season] == nil {
		it.Seasons[season] = Season{}
	}
	it.Seasons[season][episode] = normalizePayload(p)
	return nil
}

// Delete removes a title, or one season of a series when season is not nil.
func (c *Catalog) Delete(cat Category, title string, season *int) error {
	it, ok := c.Find(cat, title)
	if !ok {
		return fmt.Errorf("%s / %s: %w", cat, title, ErrNotFound)
	}
	if season == nil {
		delete(c.Categories[cat], title)
		return nil
	}
	if it.Type != TypeSeries || it.Seasons[*season] == nil {
		return fmt.Errorf("%s / %s season %d: %w", cat, title, *season, ErrNotFound)
	}
	delete(it.Seasons, *season)
	return nil
}

// AppendUpload records an ingestion, keeping at most limit entries.
func (c *Catalog) AppendUpload(e UploadLogEntry, limit int) {
	c.Uploads = append(c.Uploads, e)
	if limit > 0 && len(c.Uploads) > limit {
		c.Uploads = append([]UploadLogEntry(nil), c.Uploads[len(c.Uploads)-limit:]...)
	}
}

// StatKey identifies a usage counter. Season and Episode are optional.
type StatKey struct {
	Category Category
	Title    string
	Season   *int
	Episode  *int
}

func (k StatKey) String() string {
	parts := []string{string(k.Category), k.Title}
	if k.Season != nil {
		parts = append(parts, strconv.Itoa(*k.Season))
		if k.Episode != nil {
			parts = append(parts, strconv.Itoa(*k.Episode))
		}
	}
	return strings.Join(parts, "|")
}

func (c *Catalog) bump(k StatKey) {
	key := k.String()
	switch {
	case k.Season == nil:
		c.Stats.ItemRequests[key]++
	case k.Episode == nil:
		c.Stats.SeasonRequests[key]++
	default:
		c.Stats.EpisodeRequests[key]++
	}
}

// Counter is one usage counter entry.
type Counter struct {
	Key   string
	Count int
}

// TopItems returns the n most requested titles, highest first.
func (c *Catalog) TopItems(n int) []Counter {
	out := make([]Counter, 0, len(c.Stats.ItemRequests))
	for k, v := range c.Stats.ItemRequests {
		out = append(out, Counter{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Key < out[j].Key
		}
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func IntPtr(n int) *int { return &n }
