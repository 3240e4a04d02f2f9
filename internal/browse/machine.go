// Package browse is the per-user menu state machine: category, title, season.
package browse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"catalog-tg-bot/internal/storage"
)

const (
	BackLabel      = "⬅️ برگشت"
	AnimeMenuLabel = "انیمیشن"

	// MaxListed caps the title keyboard.
	MaxListed = 50
)

// MainMenu is the top level in display order. AnimeMenuLabel opens AnimeMenu instead of a category.
var MainMenu = []storage.Category{
	storage.CatFilm, storage.CatSeries,
	storage.CatCartoon, storage.CatAnimation,
	storage.CatIranianFilm, storage.CatIranianSerie,
}

var AnimeMenu = []storage.Category{storage.CatAnimation, storage.CatAnimeSeries}

type State interface {
	fmt.Stringer
	isState()
}

type Idle struct{}

type AnimeSubmenu struct{}

type PickingTitle struct {
	Category storage.Category
}

type PickingSeason struct {
	Category storage.Category
	Title    string
}

func (Idle) isState()          {}
func (AnimeSubmenu) isState()  {}
func (PickingTitle) isState()  {}
func (PickingSeason) isState() {}

func (Idle) String() string           { return "idle" }
func (AnimeSubmenu) String() string   { return "anime_submenu" }
func (s PickingTitle) String() string { return "picking_title(" + string(s.Category) + ")" }
func (s PickingSeason) String() string {
	return "picking_season(" + string(s.Category) + "/" + s.Title + ")"
}

type Keyboard int

const (
	NoKeyboard Keyboard = iota
	MainKeyboard
	AnimeKeyboard
	// OptionsKeyboard lists Reply.Options, one per row, plus back.
	OptionsKeyboard
	// SeasonsKeyboard lists Reply.Options two per row, plus back.
	SeasonsKeyboard
)

type Reply struct {
	Text     string
	Keyboard Keyboard
	Options  []string
	// Results are search hits, rendered as inline buttons.
	Results []storage.Ref
}

type RequestKind int

const (
	DeliverSingle RequestKind = iota + 1
	// DeliverSeason sends the season poster, if any, then episode 1.
	DeliverSeason
)

// Request is a delivery the caller performs after the transition.
type Request struct {
	Kind     RequestKind
	Category storage.Category
	Title    string
	Season   int
}

type Outcome struct {
	Next    State
	Reply   *Reply
	Request *Request
}

// Catalog is the read side the machine needs. *storage.Store satisfies it.
type Catalog interface {
	ListTitles(ctx context.Context, cat storage.Category) []string
	Find(ctx context.Context, cat storage.Category, title string) (*storage.Item, error)
	Search(ctx context.Context, q string) []storage.Ref
}

type Machine struct {
	catalog Catalog
}

func NewMachine(c Catalog) *Machine {
	return &Machine{catalog: c}
}

func (m *Machine) Start() Outcome {
	return Outcome{Next: Idle{}, Reply: &Reply{Text: "سلام 👋\nاز منوی زیر انتخاب کن:", Keyboard: MainKeyboard}}
}

// Step applies one text message to the current state.
func (m *Machine) Step(ctx context.Context, st State, text string) Outcome {
	text = strings.TrimSpace(text)
	if st == nil {
		st = Idle{}
	}

	if text == BackLabel {
		return toMain("منوی اصلی 👇")
	}

	if _, inAnime := st.(AnimeSubmenu); inAnime {
		for _, cat := range AnimeMenu {
			if text == string(cat) {
				return m.openCategory(ctx, cat)
			}
		}
	} else if text == AnimeMenuLabel {
		return Outcome{Next: AnimeSubmenu{}, Reply: &Reply{Text: "🎞 یکی رو انتخاب کن:", Keyboard: AnimeKeyboard}}
	}

	for _, cat := range MainMenu {
		if cat != storage.CatAnimation && text == string(cat) {
			return m.openCategory(ctx, cat)
		}
	}

	switch s := st.(type) {
	case PickingTitle:
		return m.pickTitle(ctx, s, text)
	case PickingSeason:
		return m.pickSeason(s, text)
	}

	if refs := m.catalog.Search(ctx, text); len(refs) > 0 {
		return Outcome{Next: st, Reply: &Reply{Text: "🔎 نتیجه جستجو:", Results: refs}}
	}
	return toMain("از منو یکی رو انتخاب کن 👇")
}

func (m *Machine) openCategory(ctx context.Context, cat storage.Category) Outcome {
	titles := m.catalog.ListTitles(ctx, cat)
	if len(titles) == 0 {
		return toMain("فعلاً چیزی اضافه نشده.")
	}
	return Outcome{Next: PickingTitle{Category: cat}, Reply: titlesReply("📌 "+string(cat)+" رو انتخاب کن:", titles)}
}

func (m *Machine) pickTitle(ctx context.Context, s PickingTitle, title string) Outcome {
	if _, err := m.catalog.Find(ctx, s.Category, title); errors.Is(err, storage.ErrNotFound) {
		return Outcome{Next: s, Reply: titlesReply("از دکمه‌ها انتخاب کن.", m.catalog.ListTitles(ctx, s.Category))}
	}
	return m.SelectTitle(ctx, s.Category, title)
}

// SelectTitle resolves a chosen title: singles are delivered, series move on to season
// selection. It also serves search results picked from inline buttons.
func (m *Machine) SelectTitle(ctx context.Context, cat storage.Category, title string) Outcome {
	it, err := m.catalog.Find(ctx, cat, title)
	if err != nil {
		return toMain("❌ پیدا نشد.")
	}
	if it.Type != storage.TypeSeries {
		return Outcome{Next: Idle{}, Request: &Request{Kind: DeliverSingle, Category: cat, Title: title}}
	}
	return m.seasonsOutcome(cat, title, it)
}

// EnterSeasonPick re-opens season selection for a series.
func (m *Machine) EnterSeasonPick(ctx context.Context, cat storage.Category, title string) Outcome {
	it, err := m.catalog.Find(ctx, cat, title)
	if err != nil || it.Type != storage.TypeSeries {
		return toMain("❌ پیدا نشد.")
	}
	return m.seasonsOutcome(cat, title, it)
}

func (m *Machine) seasonsOutcome(cat storage.Category, title string, it *storage.Item) Outcome {
	seasons := it.SeasonNumbers()
	if len(seasons) == 0 {
		return toMain("برای این سریال فصلی ثبت نشده.")
	}
	labels := make([]string, 0, len(seasons))
	for _, n := range seasons {
		labels = append(labels, SeasonLabel(n))
	}
	return Outcome{
		Next:  PickingSeason{Category: cat, Title: title},
		Reply: &Reply{Text: "📺 " + title + "\nفصل رو انتخاب کن:", Keyboard: SeasonsKeyboard, Options: labels},
	}
}

func (m *Machine) pickSeason(s PickingSeason, text string) Outcome {
	n, ok := ParseSeasonLabel(text)
	if !ok {
		return toMain("فصل نامعتبر.")
	}
	return Outcome{Next: Idle{}, Request: &Request{Kind: DeliverSeason, Category: s.Category, Title: s.Title, Season: n}}
}

func SeasonLabel(n int) string { return "فصل " + strconv.Itoa(n) }

// ParseSeasonLabel accepts "فصل N" (Persian or ASCII digits) and a bare number.
func ParseSeasonLabel(text string) (int, bool) {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "فصل"))
	n, err := strconv.Atoi(asciiDigits(text))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

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

func toMain(text string) Outcome {
	return Outcome{Next: Idle{}, Reply: &Reply{Text: text, Keyboard: MainKeyboard}}
}

func titlesReply(text string, titles []string) *Reply {
	if len(titles) > MaxListed {
		titles = titles[:MaxListed]
	}
	return &Reply{Text: text, Keyboard: OptionsKeyboard, Options: titles}
}
