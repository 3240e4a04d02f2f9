package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"catalog-tg-bot/internal/storage"
)

const defaultTopItems = 10

func (h *Handler) RegisterLibraryRoutes(rg *gin.RouterGroup) {
	rg.GET("/library", h.library)
	rg.GET("/library/item", h.libraryItem)
	rg.GET("/stats", h.stats)
}

type categoryView struct {
	Category storage.Category `json:"category"`
	Titles   []string         `json:"titles"`
}

type seasonView struct {
	Number    int   `json:"number"`
	Episodes  []int `json:"episodes"`
	HasPoster bool  `json:"has_poster"`
}

type itemView struct {
	Category storage.Category  `json:"category"`
	Title    string            `json:"title"`
	Type     storage.ItemType  `json:"type"`
	Media    storage.MediaKind `json:"media,omitempty"`
	Caption  string            `json:"caption,omitempty"`
	Seasons  []seasonView      `json:"seasons,omitempty"`
	Requests int               `json:"requests"`
}

func (h *Handler) library(c *gin.Context) {
	catalog := h.Store.Load(c.Request.Context())

	cats := storage.Categories
	if q := strings.TrimSpace(c.Query("category")); q != "" {
		cat := storage.Category(q)
		if !cat.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		cats = []storage.Category{cat}
	}

	out := make([]categoryView, 0, len(cats))
	for _, cat := range cats {
		titles := catalog.ListTitles(cat)
		if titles == nil {
			titles = []string{}
		}
		out = append(out, categoryView{Category: cat, Titles: titles})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) libraryItem(c *gin.Context) {
	cat := storage.Category(strings.TrimSpace(c.Query("category")))
	title := strings.TrimSpace(c.Query("title"))
	if title == "" || !cat.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category and title required"})
		return
	}

	catalog := h.Store.Load(c.Request.Context())
	it, ok := catalog.Find(cat, title)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	view := itemView{
		Category: cat,
		Title:    title,
		Type:     it.Type,
		Requests: catalog.Stats.ItemRequests[storage.StatKey{Category: cat, Title: title}.String()],
	}
	if it.Type == storage.TypeSeries {
		for _, n := range it.SeasonNumbers() {
			s := it.Seasons[n]
			_, poster := s.Poster()
			view.Seasons = append(view.Seasons, seasonView{Number: n, Episodes: s.Episodes(), HasPoster: poster})
		}
	} else {
		view.Media = it.Payload.Media
		view.Caption = it.Payload.Title
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) stats(c *gin.Context) {
	top := defaultTopItems
	if v, err := strconv.Atoi(c.Query("top")); err == nil && v > 0 {
		top = v
	}
	catalog := h.Store.Load(c.Request.Context())

	titles := 0
	for _, items := range catalog.Categories {
		titles += len(items)
	}
	registered := 0
	for _, e := range catalog.Uploads {
		if e.Registered {
			registered++
		}
	}

	topItems := make([]gin.H, 0, top)
	for _, it := range catalog.TopItems(top) {
		topItems = append(topItems, gin.H{"key": it.Key, "count": it.Count})
	}
	c.JSON(http.StatusOK, gin.H{
		"titles":             titles,
		"uploads":            len(catalog.Uploads),
		"uploads_registered": registered,
		"top_items":          topItems,
	})
}
