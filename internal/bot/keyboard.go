package bot

import (
	"strings"

	"catalog-tg-bot/internal/action"
	"catalog-tg-bot/internal/browse"
	"catalog-tg-bot/internal/storage"
	"catalog-tg-bot/internal/tg"
)

func mainKeyboard() tg.ReplyKeyboardMarkup {
	kb := tg.NewReplyKeyboard(pairs(browse.MainMenu))
	kb.IsPersistent = true
	return kb
}

func animeKeyboard() tg.ReplyKeyboardMarkup {
	rows := pairs(browse.AnimeMenu)
	rows = append(rows, []string{browse.BackLabel})
	kb := tg.NewReplyKeyboard(rows)
	kb.OneTimeKeyboard = true
	return kb
}

// addCategoryKeyboard is the main menu plus the anime series category, for /add.
func addCategoryKeyboard() tg.ReplyKeyboardMarkup {
	rows := [][]string{
		{string(storage.CatFilm), string(storage.CatSeries)},
		{string(storage.CatCartoon), string(storage.CatAnimation)},
		{string(storage.CatAnimeSeries)},
		{string(storage.CatIranianFilm), string(storage.CatIranianSerie)},
		{browse.BackLabel},
	}
	kb := tg.NewReplyKeyboard(rows)
	kb.OneTimeKeyboard = true
	return kb
}

func listKeyboard(options []string, perRow int) tg.ReplyKeyboardMarkup {
	var rows [][]string
	for i := 0; i < len(options); i += perRow {
		end := i + perRow
		if end > len(options) {
			end = len(options)
		}
		rows = append(rows, options[i:end])
	}
	rows = append(rows, []string{browse.BackLabel})
	kb := tg.NewReplyKeyboard(rows)
	kb.OneTimeKeyboard = true
	return kb
}

func pairs(cats []storage.Category) [][]string {
	labels := make([]string, 0, len(cats))
	for _, c := range cats {
		labels = append(labels, string(c))
	}
	var rows [][]string
	for i := 0; i < len(labels); i += 2 {
		end := i + 2
		if end > len(labels) {
			end = len(labels)
		}
		rows = append(rows, labels[i:end])
	}
	return rows
}

// searchKeyboard renders search hits as inline buttons. Hits whose callback data would
// exceed the Bot API limit are left out.
func searchKeyboard(refs []storage.Ref) tg.InlineKeyboardMarkup {
	rows := make([][]tg.InlineKeyboardButton, 0, len(refs))
	for _, r := range refs {
		data := action.Search{Category: r.Category, Title: r.Title}.Encode()
		if len(data) > action.MaxCallbackData {
			continue
		}
		rows = append(rows, []tg.InlineKeyboardButton{{Text: r.Title + " | " + string(r.Category), CallbackData: data}})
	}
	return tg.NewInlineKeyboardMarkup(rows)
}

// episodeNavKeyboard offers previous/next within the season (no wraparound) and season choice.
func episodeNavKeyboard(cat storage.Category, name string, season, ep int, eps []int) tg.InlineKeyboardMarkup {
	var row []tg.InlineKeyboardButton
	if prev, ok := neighbour(eps, ep, -1); ok {
		row = appendButton(row, "⬅ قسمت قبلی", action.Episode{Category: cat, Title: name, Season: season, Episode: prev})
	}
	if next, ok := neighbour(eps, ep, 1); ok {
		row = appendButton(row, "➡ قسمت بعدی", action.Episode{Category: cat, Title: name, Season: season, Episode: next})
	}
	var rows [][]tg.InlineKeyboardButton
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if pick := appendButton(nil, "📺 انتخاب فصل", action.PickSeason{Category: cat, Title: name}); len(pick) > 0 {
		rows = append(rows, pick)
	}
	return tg.NewInlineKeyboardMarkup(rows)
}

func appendButton(row []tg.InlineKeyboardButton, text string, a action.Action) []tg.InlineKeyboardButton {
	data := a.Encode()
	if len(data) > action.MaxCallbackData {
		return row
	}
	return append(row, tg.InlineKeyboardButton{Text: text, CallbackData: data})
}

// neighbour returns the episode next to ep in the sorted list, dir -1 or +1.
func neighbour(eps []int, ep, dir int) (int, bool) {
	for i, n := range eps {
		if n != ep {
			continue
		}
		j := i + dir
		if j < 0 || j >= len(eps) {
			return 0, false
		}
		return eps[j], true
	}
	return 0, false
}

func (b *Bot) renderReply(r *browse.Reply) tg.ReplyMarkup {
	if len(r.Results) > 0 {
		kb := searchKeyboard(r.Results)
		return &kb
	}
	var kb tg.ReplyKeyboardMarkup
	switch r.Keyboard {
	case browse.MainKeyboard:
		kb = mainKeyboard()
	case browse.AnimeKeyboard:
		kb = animeKeyboard()
	case browse.OptionsKeyboard:
		kb = listKeyboard(r.Options, 1)
	case browse.SeasonsKeyboard:
		kb = listKeyboard(r.Options, 2)
	default:
		return nil
	}
	return &kb
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
