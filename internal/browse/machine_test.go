package browse

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"catalog-tg-bot/internal/storage"
)

func newCatalog(t *testing.T, fill func(c *storage.Catalog)) *storage.Store {
	t.Helper()
	backend, err := storage.NewFileBackend(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	s := storage.NewStore(backend, zerolog.Nop())
	c := storage.NewCatalog()
	if fill != nil {
		fill(c)
	}
	if err := s.Save(context.Background(), c); err != nil {
		t.Fatalf("save: %v", err)
	}
	return s
}

func sample(c *storage.Catalog) {
	_ = c.PutSingle(storage.CatCartoon, "Tom and Jerry", storage.Payload{FileID: "tj"})
	_ = c.PutSingle(storage.CatAnimation, "Coco", storage.Payload{FileID: "coco"})
	_ = c.PutEpisode(storage.CatSeries, "Dark", 1, 1, storage.Payload{FileID: "d11"})
	_ = c.PutEpisode(storage.CatSeries, "Dark", 2, 1, storage.Payload{FileID: "d21"})
	c.Categories[storage.CatSeries]["Empty Show"] = &storage.Item{Type: storage.TypeSeries, Seasons: map[int]storage.Season{}}
}

func TestOpenCategory(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	out := m.Step(context.Background(), Idle{}, "کارتون")
	if out.Next != (PickingTitle{Category: storage.CatCartoon}) {
		t.Fatalf("unexpected next state %v", out.Next)
	}
	if out.Reply == nil || out.Reply.Keyboard != OptionsKeyboard || len(out.Reply.Options) != 1 || out.Reply.Options[0] != "Tom and Jerry" {
		t.Fatalf("unexpected reply %+v", out.Reply)
	}
}

func TestOpenEmptyCategory(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	out := m.Step(context.Background(), Idle{}, "فیلم")
	if out.Next != (Idle{}) || out.Reply.Keyboard != MainKeyboard {
		t.Fatalf("empty category must return to idle with the main menu, got %v %+v", out.Next, out.Reply)
	}
}

func TestAnimeSubmenu(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	ctx := context.Background()

	out := m.Step(ctx, Idle{}, AnimeMenuLabel)
	if out.Next != (AnimeSubmenu{}) || out.Reply.Keyboard != AnimeKeyboard {
		t.Fatalf("expected anime submenu, got %v", out.Next)
	}
	out = m.Step(ctx, out.Next, "انیمیشن")
	if out.Next != (PickingTitle{Category: storage.CatAnimation}) {
		t.Fatalf("picking انیمیشن inside the submenu must open the category, got %v", out.Next)
	}
	out = m.Step(ctx, AnimeSubmenu{}, "سریال انیمیشن")
	if out.Next != (Idle{}) {
		t.Fatalf("empty anime series category should go back to idle, got %v", out.Next)
	}
}

func TestPickSingleTitle(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	out := m.Step(context.Background(), PickingTitle{Category: storage.CatCartoon}, "Tom and Jerry")
	want := Request{Kind: DeliverSingle, Category: storage.CatCartoon, Title: "Tom and Jerry"}
	if out.Next != (Idle{}) || out.Request == nil || *out.Request != want {
		t.Fatalf("unexpected outcome %v %+v", out.Next, out.Request)
	}
}

func TestPickUnknownTitleKeepsState(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	st := PickingTitle{Category: storage.CatCartoon}
	out := m.Step(context.Background(), st, "Dark")
	if out.Next != st {
		t.Fatalf("state must not change, got %v", out.Next)
	}
	if out.Reply == nil || len(out.Reply.Results) != 0 || out.Reply.Keyboard != OptionsKeyboard {
		t.Fatalf("expected a re-prompt without search, got %+v", out.Reply)
	}
}

func TestPickSeriesTitle(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	out := m.Step(context.Background(), PickingTitle{Category: storage.CatSeries}, "Dark")
	if out.Next != (PickingSeason{Category: storage.CatSeries, Title: "Dark"}) {
		t.Fatalf("unexpected next %v", out.Next)
	}
	if got := out.Reply.Options; len(got) != 2 || got[0] != "فصل 1" || got[1] != "فصل 2" {
		t.Fatalf("unexpected season options %q", got)
	}

	out = m.Step(context.Background(), PickingTitle{Category: storage.CatSeries}, "Empty Show")
	if out.Next != (Idle{}) || out.Request != nil {
		t.Fatalf("series without seasons must return to idle, got %v", out.Next)
	}
}

func TestPickSeason(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	st := PickingSeason{Category: storage.CatSeries, Title: "Dark"}

	out := m.Step(context.Background(), st, "فصل ۲")
	want := Request{Kind: DeliverSeason, Category: storage.CatSeries, Title: "Dark", Season: 2}
	if out.Next != (Idle{}) || out.Request == nil || *out.Request != want {
		t.Fatalf("unexpected outcome %v %+v", out.Next, out.Request)
	}

	out = m.Step(context.Background(), st, "فصل دو")
	if out.Next != (Idle{}) || out.Request != nil || out.Reply.Text != "فصل نامعتبر." {
		t.Fatalf("invalid season must reset to idle, got %v %+v", out.Next, out.Reply)
	}
}

func TestBackFromAnyState(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	for _, st := range []State{Idle{}, AnimeSubmenu{}, PickingTitle{Category: storage.CatFilm}, PickingSeason{Category: storage.CatSeries, Title: "Dark"}} {
		if out := m.Step(context.Background(), st, BackLabel); out.Next != (Idle{}) {
			t.Fatalf("back from %v went to %v", st, out.Next)
		}
	}
}

func TestSearchFromIdle(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	out := m.Step(context.Background(), AnimeSubmenu{}, "tom")
	if out.Next != (AnimeSubmenu{}) {
		t.Fatalf("search must not change state, got %v", out.Next)
	}
	if len(out.Reply.Results) != 1 || out.Reply.Results[0] != (storage.Ref{Category: storage.CatCartoon, Title: "Tom and Jerry"}) {
		t.Fatalf("unexpected results %+v", out.Reply.Results)
	}

	out = m.Step(context.Background(), Idle{}, "to")
	if len(out.Reply.Results) != 0 || out.Reply.Keyboard != MainKeyboard {
		t.Fatalf("short query must fall back to the menu, got %+v", out.Reply)
	}
}

func TestSelectTitleFromSearch(t *testing.T) {
	m := NewMachine(newCatalog(t, sample))
	out := m.SelectTitle(context.Background(), storage.CatSeries, "Dark")
	if _, ok := out.Next.(PickingSeason); !ok {
		t.Fatalf("series search hit must open season picking, got %v", out.Next)
	}
	out = m.SelectTitle(context.Background(), storage.CatFilm, "Missing")
	if out.Next != (Idle{}) || out.Reply.Text != "❌ پیدا نشد." {
		t.Fatalf("unexpected outcome for a missing title %+v", out.Reply)
	}
}

func TestParseSeasonLabel(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"فصل 3", 3, true},
		{"فصل۱۲", 12, true},
		{"4", 4, true},
		{"فصل", 0, false},
		{"season 1", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSeasonLabel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseSeasonLabel(%q) = %d, %v", tt.in, got, ok)
		}
	}
}
